package repositories

import (
	"context"
	"fmt"

	"github.com/macrodatos/ingesta/ingesta/database/models"
	"github.com/uptrace/bun"
)

// CatalogRepository serves the read-mostly reference tables: countries,
// families, sub-families and variables. Write paths exist only for the
// migration tool; ingestion never creates catalog rows.
type CatalogRepository interface {
	GetCountry(ctx context.Context, countryID int) (*models.Country, error)
	GetAllCountries(ctx context.Context) ([]*models.Country, error)
	GetVariable(ctx context.Context, variableID int) (*models.Variable, error)
	GetAllVariables(ctx context.Context) ([]*models.Variable, error)

	UpsertCountry(ctx context.Context, country *models.Country) error
	UpsertFamily(ctx context.Context, family *models.Family) error
	UpsertSubFamily(ctx context.Context, subFamily *models.SubFamily) error
	UpsertVariable(ctx context.Context, variable *models.Variable) error
}

type catalogRepository struct {
	db *bun.DB
	*BaseRepository
}

func NewCatalogRepository(db *bun.DB) CatalogRepository {
	return &catalogRepository{
		db:             db,
		BaseRepository: NewBaseRepository(db),
	}
}

func (r *catalogRepository) GetCountry(ctx context.Context, countryID int) (*models.Country, error) {
	country := new(models.Country)
	err := r.db.NewSelect().Model(country).Where("country_id = ?", countryID).Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "country", countryID, err)
	}
	return country, nil
}

func (r *catalogRepository) GetAllCountries(ctx context.Context) ([]*models.Country, error) {
	var countries []*models.Country
	err := r.db.NewSelect().Model(&countries).Order("country_id ASC").Scan(ctx)
	return countries, r.HandleError("get_all", "country", err)
}

func (r *catalogRepository) GetVariable(ctx context.Context, variableID int) (*models.Variable, error) {
	variable := new(models.Variable)
	err := r.db.NewSelect().Model(variable).Where("variable_id = ?", variableID).Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "variable", variableID, err)
	}
	return variable, nil
}

func (r *catalogRepository) GetAllVariables(ctx context.Context) ([]*models.Variable, error) {
	var variables []*models.Variable
	err := r.db.NewSelect().Model(&variables).Order("variable_id ASC").Scan(ctx)
	return variables, r.HandleError("get_all", "variable", err)
}

func (r *catalogRepository) UpsertCountry(ctx context.Context, country *models.Country) error {
	_, err := r.db.NewInsert().
		Model(country).
		On("CONFLICT (country_id) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Exec(ctx)
	return r.HandleErrorWithID("upsert", "country", country.CountryID, err)
}

func (r *catalogRepository) UpsertFamily(ctx context.Context, family *models.Family) error {
	_, err := r.db.NewInsert().
		Model(family).
		On("CONFLICT (family_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Exec(ctx)
	return r.HandleErrorWithID("upsert", "family", family.FamilyID, err)
}

func (r *catalogRepository) UpsertSubFamily(ctx context.Context, subFamily *models.SubFamily) error {
	exists, err := r.db.NewSelect().
		Model((*models.Family)(nil)).
		Where("family_id = ?", subFamily.FamilyID).
		Exists(ctx)
	if err != nil {
		return r.HandleError("upsert", "sub_family", err)
	}
	if !exists {
		return &ForeignKeyError{Entity: "sub_family", Reference: "family", ID: subFamily.FamilyID}
	}

	_, err = r.db.NewInsert().
		Model(subFamily).
		On("CONFLICT (sub_family_id) DO UPDATE").
		Set("family_id = EXCLUDED.family_id").
		Set("name = EXCLUDED.name").
		Exec(ctx)
	return r.HandleErrorWithID("upsert", "sub_family", subFamily.SubFamilyID, err)
}

func (r *catalogRepository) UpsertVariable(ctx context.Context, variable *models.Variable) error {
	if variable.NominalOrReal != models.KindNominal && variable.NominalOrReal != models.KindReal {
		return fmt.Errorf("variable %d: nominal_or_real must be %q or %q, got %q",
			variable.VariableID, models.KindNominal, models.KindReal, variable.NominalOrReal)
	}

	exists, err := r.db.NewSelect().
		Model((*models.SubFamily)(nil)).
		Where("sub_family_id = ?", variable.SubFamilyID).
		Exists(ctx)
	if err != nil {
		return r.HandleError("upsert", "variable", err)
	}
	if !exists {
		return &ForeignKeyError{Entity: "variable", Reference: "sub_family", ID: variable.SubFamilyID}
	}

	// (canonical_name, nominal_or_real) is unique across variables
	dup, err := r.db.NewSelect().
		Model((*models.Variable)(nil)).
		Where("canonical_name = ?", variable.CanonicalName).
		Where("nominal_or_real = ?", variable.NominalOrReal).
		Where("variable_id != ?", variable.VariableID).
		Exists(ctx)
	if err != nil {
		return r.HandleError("upsert", "variable", err)
	}
	if dup {
		return &ConflictError{Entity: "variable", Field: "canonical_name", Value: variable.CanonicalName}
	}

	_, err = r.db.NewInsert().
		Model(variable).
		On("CONFLICT (variable_id) DO UPDATE").
		Set("canonical_name = EXCLUDED.canonical_name").
		Set("sub_family_id = EXCLUDED.sub_family_id").
		Set("nominal_or_real = EXCLUDED.nominal_or_real").
		Set("currency_code = EXCLUDED.currency_code").
		Exec(ctx)
	return r.HandleErrorWithID("upsert", "variable", variable.VariableID, err)
}
