package upsert

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/macrodatos/ingesta/ingesta/database/models"
	"github.com/macrodatos/ingesta/ingesta/database/repositories"
	"github.com/macrodatos/ingesta/ingesta/parse"
)

type fakeKey struct {
	variableID int
	countryID  int
}

type fakeMasters struct {
	masters      map[fakeKey]*models.Master
	resolveCalls int
}

func (f *fakeMasters) Resolve(_ context.Context, variableID, countryID int) (*models.Master, error) {
	f.resolveCalls++
	m, ok := f.masters[fakeKey{variableID, countryID}]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "master", ID: fmt.Sprintf("(%d,%d)", variableID, countryID)}
	}
	return m, nil
}

func (f *fakeMasters) GetActive(context.Context) ([]*models.Master, error) {
	return nil, nil
}

func (f *fakeMasters) Upsert(_ context.Context, m *models.Master) error {
	f.masters[fakeKey{m.VariableID, m.CountryID}] = m
	return nil
}

// fakeSeries stores points per master keyed by ISO date. Writes fail
// atomically when failNext is set.
type fakeSeries struct {
	store    map[fakeKey]map[string]decimal.Decimal
	failNext bool
}

func newFakeSeries() *fakeSeries {
	return &fakeSeries{store: make(map[fakeKey]map[string]decimal.Decimal)}
}

func (f *fakeSeries) ReplacePoints(_ context.Context, variableID, countryID int, points []models.SeriesPoint) (int, error) {
	if f.failNext {
		f.failNext = false
		return 0, errors.New("write failed")
	}
	fresh := make(map[string]decimal.Decimal, len(points))
	for _, p := range points {
		fresh[p.Date.Format("2006-01-02")] = p.Value
	}
	f.store[fakeKey{variableID, countryID}] = fresh
	return len(fresh), nil
}

func (f *fakeSeries) MergePoints(_ context.Context, variableID, countryID int, points []models.SeriesPoint) (int, int, error) {
	if f.failNext {
		f.failNext = false
		return 0, 0, errors.New("write failed")
	}
	key := fakeKey{variableID, countryID}
	existing, ok := f.store[key]
	if !ok {
		existing = make(map[string]decimal.Decimal)
		f.store[key] = existing
	}
	var inserted, updated int
	for _, p := range points {
		date := p.Date.Format("2006-01-02")
		if _, seen := existing[date]; seen {
			updated++
		} else {
			inserted++
		}
		existing[date] = p.Value
	}
	return inserted, updated, nil
}

func (f *fakeSeries) GetPoints(_ context.Context, variableID, countryID int) ([]models.SeriesPoint, error) {
	var out []models.SeriesPoint
	for date, value := range f.store[fakeKey{variableID, countryID}] {
		d, _ := time.Parse("2006-01-02", date)
		out = append(out, models.SeriesPoint{VariableID: variableID, CountryID: countryID, Date: d, Value: value})
	}
	return out, nil
}

func (f *fakeSeries) PointsSince(ctx context.Context, variableID, countryID int, from time.Time) ([]models.SeriesPoint, error) {
	all, _ := f.GetPoints(ctx, variableID, countryID)
	var out []models.SeriesPoint
	for _, p := range all {
		if !p.Date.Before(from) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeSeries) CountPoints(_ context.Context, variableID, countryID int) (int, error) {
	return len(f.store[fakeKey{variableID, countryID}]), nil
}

func testMaster(variableID, countryID int) *models.Master {
	return &models.Master{
		VariableID:  variableID,
		CountryID:   countryID,
		SourceLabel: "test",
		Periodicity: models.PeriodicityDaily,
		Active:      true,
	}
}

func testPoints(values map[string]string) []parse.Point {
	var out []parse.Point
	for date, value := range values {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			panic(err)
		}
		v, err := decimal.NewFromString(value)
		if err != nil {
			panic(err)
		}
		out = append(out, parse.Point{Date: d, Value: v})
	}
	return out
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{input: "", want: ModeFullReplace},
		{input: "replace", want: ModeFullReplace},
		{input: "merge", want: ModeMerge},
		{input: "upsert", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEngine_CommitSeries_FullReplace(t *testing.T) {
	masters := &fakeMasters{masters: map[fakeKey]*models.Master{
		{1, 100}: testMaster(1, 100),
	}}
	series := newFakeSeries()
	engine := NewEngine(masters, series)

	first, err := engine.CommitSeries(context.Background(), 1, 100,
		testPoints(map[string]string{"2025-01-01": "10", "2025-01-02": "11"}), ModeFullReplace)
	if err != nil {
		t.Fatalf("CommitSeries() error = %v", err)
	}
	if first.Inserted != 2 {
		t.Errorf("first commit inserted = %d, want 2", first.Inserted)
	}

	// A second full replace supersedes the first set entirely.
	second, err := engine.CommitSeries(context.Background(), 1, 100,
		testPoints(map[string]string{"2025-01-02": "20"}), ModeFullReplace)
	if err != nil {
		t.Fatalf("CommitSeries() error = %v", err)
	}
	if second.Inserted != 1 {
		t.Errorf("second commit inserted = %d, want 1", second.Inserted)
	}
	if second.Total != 1 {
		t.Errorf("second commit total = %d, want 1", second.Total)
	}

	count, _ := series.CountPoints(context.Background(), 1, 100)
	if count != 1 {
		t.Errorf("store holds %d points after replace, want 1", count)
	}
	if got := series.store[fakeKey{1, 100}]["2025-01-02"]; !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("store value = %s, want 20", got)
	}
}

func TestEngine_CommitSeries_Merge(t *testing.T) {
	masters := &fakeMasters{masters: map[fakeKey]*models.Master{
		{1, 100}: testMaster(1, 100),
	}}
	series := newFakeSeries()
	engine := NewEngine(masters, series)

	if _, err := engine.CommitSeries(context.Background(), 1, 100,
		testPoints(map[string]string{"2025-01-01": "10", "2025-01-02": "11"}), ModeFullReplace); err != nil {
		t.Fatalf("CommitSeries() error = %v", err)
	}

	result, err := engine.CommitSeries(context.Background(), 1, 100,
		testPoints(map[string]string{"2025-01-02": "99", "2025-01-03": "12"}), ModeMerge)
	if err != nil {
		t.Fatalf("CommitSeries() error = %v", err)
	}
	if result.Inserted != 1 || result.Updated != 1 {
		t.Errorf("merge = %d inserted, %d updated, want 1 and 1", result.Inserted, result.Updated)
	}
	if result.Total != 3 {
		t.Errorf("merge total = %d, want 3", result.Total)
	}

	count, _ := series.CountPoints(context.Background(), 1, 100)
	if count != 3 {
		t.Errorf("store holds %d points after merge, want 3", count)
	}
	if got := series.store[fakeKey{1, 100}]["2025-01-01"]; !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("untouched date value = %s, want 10", got)
	}
}

func TestEngine_CommitSeries_UnknownMaster(t *testing.T) {
	masters := &fakeMasters{masters: map[fakeKey]*models.Master{}}
	engine := NewEngine(masters, newFakeSeries())

	_, err := engine.CommitSeries(context.Background(), 9, 999,
		testPoints(map[string]string{"2025-01-01": "1"}), ModeFullReplace)
	if !repositories.IsNotFound(err) {
		t.Errorf("CommitSeries() error = %v, want NotFoundError", err)
	}
}

func TestEngine_CommitSeries_FailureLeavesStoreUntouched(t *testing.T) {
	masters := &fakeMasters{masters: map[fakeKey]*models.Master{
		{1, 100}: testMaster(1, 100),
	}}
	series := newFakeSeries()
	engine := NewEngine(masters, series)

	if _, err := engine.CommitSeries(context.Background(), 1, 100,
		testPoints(map[string]string{"2025-01-01": "10"}), ModeFullReplace); err != nil {
		t.Fatalf("CommitSeries() error = %v", err)
	}

	series.failNext = true
	if _, err := engine.CommitSeries(context.Background(), 1, 100,
		testPoints(map[string]string{"2025-01-01": "99"}), ModeFullReplace); err == nil {
		t.Fatal("CommitSeries() expected error, got nil")
	}

	if got := series.store[fakeKey{1, 100}]["2025-01-01"]; !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("store value after failed commit = %s, want 10", got)
	}
}

func TestEngine_CommitSeries_CachesResolvedMaster(t *testing.T) {
	masters := &fakeMasters{masters: map[fakeKey]*models.Master{
		{1, 100}: testMaster(1, 100),
	}}
	engine := NewEngine(masters, newFakeSeries())

	for i := 0; i < 3; i++ {
		if _, err := engine.CommitSeries(context.Background(), 1, 100,
			testPoints(map[string]string{"2025-01-01": "1"}), ModeFullReplace); err != nil {
			t.Fatalf("CommitSeries() error = %v", err)
		}
	}
	if masters.resolveCalls != 1 {
		t.Errorf("Resolve called %d times, want 1", masters.resolveCalls)
	}
}
