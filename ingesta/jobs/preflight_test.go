package jobs

import (
	"context"
	"reflect"
	"testing"

	"github.com/macrodatos/ingesta/ingesta"
	"github.com/macrodatos/ingesta/ingesta/database/models"
)

func TestPreflight(t *testing.T) {
	masters := &stubMasters{masters: map[[2]int]*models.Master{
		{1, 100}: {VariableID: 1, CountryID: 100, SourceLabel: "INE", Periodicity: models.PeriodicityMonthly, Active: true},
		{2, 100}: {VariableID: 2, CountryID: 100, SourceLabel: "BCU", Periodicity: models.PeriodicityDaily, Active: false},
	}}
	jobsCfg := []ingesta.JobConfig{
		{Name: "ipc", Active: true, VariableID: 1, CountryID: 100},
		{Name: "tc", Active: true, VariableID: 2, CountryID: 100},   // master exists but is inactive
		{Name: "pbi", Active: true, VariableID: 9, CountryID: 100},  // no master at all
		{Name: "viejo", Active: false, VariableID: 8, CountryID: 1}, // inactive jobs are not checked
	}

	got, err := Preflight(context.Background(), masters, jobsCfg)
	if err != nil {
		t.Fatalf("Preflight() error = %v", err)
	}
	want := []string{"tc", "pbi"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Preflight() = %v, want %v", got, want)
	}
}

func TestPreflight_AllCovered(t *testing.T) {
	masters := &stubMasters{masters: map[[2]int]*models.Master{
		{1, 100}: {VariableID: 1, CountryID: 100, SourceLabel: "INE", Periodicity: models.PeriodicityMonthly, Active: true},
	}}
	jobsCfg := []ingesta.JobConfig{
		{Name: "ipc", Active: true, VariableID: 1, CountryID: 100},
	}

	got, err := Preflight(context.Background(), masters, jobsCfg)
	if err != nil {
		t.Fatalf("Preflight() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Preflight() = %v, want no orphans", got)
	}
}
