package migration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/macrodatos/ingesta/ingesta/database/models"
)

type fakeCatalog struct {
	countries   map[int]*models.Country
	families    map[int]*models.Family
	subFamilies map[int]*models.SubFamily
	variables   map[int]*models.Variable
	failOn      string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		countries:   make(map[int]*models.Country),
		families:    make(map[int]*models.Family),
		subFamilies: make(map[int]*models.SubFamily),
		variables:   make(map[int]*models.Variable),
	}
}

func (f *fakeCatalog) GetCountry(_ context.Context, id int) (*models.Country, error) {
	return f.countries[id], nil
}

func (f *fakeCatalog) GetAllCountries(context.Context) ([]*models.Country, error) { return nil, nil }

func (f *fakeCatalog) GetVariable(_ context.Context, id int) (*models.Variable, error) {
	return f.variables[id], nil
}

func (f *fakeCatalog) GetAllVariables(context.Context) ([]*models.Variable, error) { return nil, nil }

func (f *fakeCatalog) UpsertCountry(_ context.Context, c *models.Country) error {
	if f.failOn == "countries" {
		return errors.New("boom")
	}
	f.countries[c.CountryID] = c
	return nil
}

func (f *fakeCatalog) UpsertFamily(_ context.Context, fam *models.Family) error {
	if f.failOn == "families" {
		return errors.New("boom")
	}
	f.families[fam.FamilyID] = fam
	return nil
}

func (f *fakeCatalog) UpsertSubFamily(_ context.Context, sf *models.SubFamily) error {
	if f.failOn == "sub_families" {
		return errors.New("boom")
	}
	f.subFamilies[sf.SubFamilyID] = sf
	return nil
}

func (f *fakeCatalog) UpsertVariable(_ context.Context, v *models.Variable) error {
	if f.failOn == "variables" {
		return errors.New("boom")
	}
	f.variables[v.VariableID] = v
	return nil
}

type fakeMasters struct {
	masters map[[2]int]*models.Master
}

func (f *fakeMasters) Resolve(_ context.Context, variableID, countryID int) (*models.Master, error) {
	return f.masters[[2]int{variableID, countryID}], nil
}

func (f *fakeMasters) GetActive(context.Context) ([]*models.Master, error) { return nil, nil }

func (f *fakeMasters) Upsert(_ context.Context, m *models.Master) error {
	f.masters[[2]int{m.VariableID, m.CountryID}] = m
	return nil
}

const exportFixture = `{
	"countries": [
		{"country_id": 100, "display_name": "Uruguay"},
		{"country_id": 999, "display_name": "Economía internacional"}
	],
	"families": [{"family_id": 1, "name": "Precios"}],
	"sub_families": [{"sub_family_id": 1, "family_id": 1, "name": "Inflación"}],
	"variables": [
		{"variable_id": 1, "canonical_name": "ipc", "sub_family_id": 1, "nominal_or_real": "n", "currency_code": "UYU"}
	],
	"masters": [
		{"variable_id": 1, "country_id": 100, "source_label": "INE", "periodicity": "M", "active": true, "link": "https://example.test"}
	]
}`

func writeExport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalogo.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write export fixture: %v", err)
	}
	return path
}

func TestMigrator_ImportFromJSON(t *testing.T) {
	catalog := newFakeCatalog()
	masters := &fakeMasters{masters: make(map[[2]int]*models.Master)}
	m := NewMigrator(catalog, masters)

	if err := m.ImportFromJSON(context.Background(), writeExport(t, exportFixture)); err != nil {
		t.Fatalf("ImportFromJSON() error = %v", err)
	}

	if len(catalog.countries) != 2 {
		t.Errorf("imported %d countries, want 2", len(catalog.countries))
	}
	if got := catalog.countries[999]; got == nil || got.DisplayName != "Economía internacional" {
		t.Errorf("international economy country = %+v", got)
	}
	if len(catalog.variables) != 1 {
		t.Errorf("imported %d variables, want 1", len(catalog.variables))
	}

	master := masters.masters[[2]int{1, 100}]
	if master == nil {
		t.Fatal("master (1,100) not imported")
	}
	if master.SourceLabel != "INE" || master.Periodicity != "M" || !master.Active {
		t.Errorf("master = %+v", master)
	}
}

func TestMigrator_ImportFromJSON_StopsOnError(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.failOn = "families"
	masters := &fakeMasters{masters: make(map[[2]int]*models.Master)}
	m := NewMigrator(catalog, masters)

	err := m.ImportFromJSON(context.Background(), writeExport(t, exportFixture))
	if err == nil {
		t.Fatal("ImportFromJSON() expected error, got nil")
	}
	if len(masters.masters) != 0 {
		t.Error("masters were imported after an earlier failure")
	}
}

func TestMigrator_ImportFromJSON_BadFile(t *testing.T) {
	m := NewMigrator(newFakeCatalog(), &fakeMasters{masters: make(map[[2]int]*models.Master)})

	if err := m.ImportFromJSON(context.Background(), writeExport(t, "no json")); err == nil {
		t.Error("ImportFromJSON() with invalid JSON expected error, got nil")
	}
	if err := m.ImportFromJSON(context.Background(), "/no/existe.json"); err == nil {
		t.Error("ImportFromJSON() with missing file expected error, got nil")
	}
}

func TestMigrator_ImportFromMongo_NotConfigured(t *testing.T) {
	m := NewMigrator(newFakeCatalog(), &fakeMasters{masters: make(map[[2]int]*models.Master)})
	if err := m.ImportFromMongo(context.Background()); err == nil {
		t.Error("ImportFromMongo() without UseMongo expected error, got nil")
	}
}
