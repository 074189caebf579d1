package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Spanish month abbreviations as used by the central-bank APIs. Note Set,
// not Sep, for septiembre.
var spanishMonthAbbrev = map[string]time.Month{
	"ene": time.January,
	"feb": time.February,
	"mar": time.March,
	"abr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"ago": time.August,
	"set": time.September,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dic": time.December,
}

var spanishMonthFull = map[string]time.Month{
	"enero":      time.January,
	"febrero":    time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"junio":      time.June,
	"julio":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"setiembre":  time.September,
	"octubre":    time.October,
	"noviembre":  time.November,
	"diciembre":  time.December,
}

var (
	yearMonthRe  = regexp.MustCompile(`^(\d{4})M(\d{1,2})$`)
	dayAbbrevRe  = regexp.MustCompile(`^(\d{1,2})\.?([A-Za-zÁÉÍÓÚáéíóú]{3})\.?(\d{2})$`)
	monthYearRe  = regexp.MustCompile(`^([A-Za-zÁÉÍÓÚáéíóúñÑ]+)\s+(\d{4})$`)
	slashDateRe  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	excelSerialRe = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// excelEpoch is day zero of the 1900 date system used by spreadsheet
// serial dates.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseDate normalizes every calendar convention the sources use into a
// time-of-day-free UTC date. Formats are tried in order of preference:
//
//  1. ISO YYYY-MM-DD
//  2. locale-free spreadsheet datetimes and serial numbers
//  3. DD/MM/YYYY, day first
//  4. YYYYMmm (Banco Mundial style) -> first of that month
//  5. DDMmmYY / DD.Mmm.YY with Spanish month abbreviations
//  6. "Mes YYYY" with the full Spanish month name
//
// Anything else is a hard error.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, &Error{Input: raw, Reason: "empty date"}
	}

	if t, err := time.Parse("2006-01-02", s); err == nil {
		return midnight(t), nil
	}

	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return midnight(t), nil
		}
	}

	if excelSerialRe.MatchString(s) {
		if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 59 && serial < 80000 {
			return excelEpoch.AddDate(0, 0, int(serial)), nil
		}
	}

	if m := slashDateRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if err := checkYearMonth(year, month); err != nil {
			return time.Time{}, &Error{Input: raw, Reason: err.Error()}
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
	}

	if m := yearMonthRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return DateFromYearMonth(year, month)
	}

	if m := dayAbbrevRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, ok := spanishMonthAbbrev[strings.ToLower(stripAccents(m[2]))]
		if !ok {
			return time.Time{}, &Error{Input: raw, Reason: "unknown month abbreviation"}
		}
		yy, _ := strconv.Atoi(m[3])
		year := pivotYear(yy)
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
	}

	if m := monthYearRe.FindStringSubmatch(s); m != nil {
		month, ok := spanishMonthFull[strings.ToLower(stripAccents(m[1]))]
		if !ok {
			return time.Time{}, &Error{Input: raw, Reason: "unknown month name"}
		}
		year, _ := strconv.Atoi(m[2])
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), nil
	}

	return time.Time{}, &Error{Input: raw, Reason: "unrecognized date format"}
}

// DateFromYearMonth builds the first-of-month date for a (year, month)
// pair, validating both ranges.
func DateFromYearMonth(year, month int) (time.Time, error) {
	if err := checkYearMonth(year, month); err != nil {
		return time.Time{}, &Error{Input: strconv.Itoa(year) + "/" + strconv.Itoa(month), Reason: err.Error()}
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// MonthFromSpanish resolves a full or abbreviated Spanish month name.
func MonthFromSpanish(name string) (time.Month, bool) {
	key := strings.ToLower(stripAccents(strings.TrimSpace(name)))
	if m, ok := spanishMonthFull[key]; ok {
		return m, true
	}
	if len(key) >= 3 {
		if m, ok := spanishMonthAbbrev[key[:3]]; ok {
			return m, true
		}
	}
	return 0, false
}

// Two-digit years pivot at 50: 25 -> 2025, 99 -> 1999.
func pivotYear(yy int) int {
	if yy <= 50 {
		return 2000 + yy
	}
	return 1900 + yy
}

func checkYearMonth(year, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("month %d out of range", month)
	}
	if year < 1900 || year > 2100 {
		return fmt.Errorf("year %d out of range", year)
	}
	return nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func stripAccents(s string) string {
	replacer := strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
		"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U",
	)
	return replacer.Replace(s)
}
