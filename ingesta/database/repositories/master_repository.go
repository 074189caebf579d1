package repositories

import (
	"context"
	"fmt"

	"github.com/macrodatos/ingesta/ingesta/database/models"
	"github.com/uptrace/bun"
)

// MasterRepository resolves and maintains master rows, the compound
// (variable_id, country_id) identity every series point belongs to.
type MasterRepository interface {
	Resolve(ctx context.Context, variableID, countryID int) (*models.Master, error)
	GetActive(ctx context.Context) ([]*models.Master, error)
	// Upsert inserts the master or updates its mutable columns. The key is
	// never reassigned: an existing (variable_id, country_id) row keeps its
	// identity and only source_label/periodicity/active/link change.
	Upsert(ctx context.Context, master *models.Master) error
}

type masterRepository struct {
	db *bun.DB
	*BaseRepository
}

func NewMasterRepository(db *bun.DB) MasterRepository {
	return &masterRepository{
		db:             db,
		BaseRepository: NewBaseRepository(db),
	}
}

func (r *masterRepository) Resolve(ctx context.Context, variableID, countryID int) (*models.Master, error) {
	master := new(models.Master)
	err := r.db.NewSelect().
		Model(master).
		Where("variable_id = ?", variableID).
		Where("country_id = ?", countryID).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("resolve", "master",
			fmt.Sprintf("(%d,%d)", variableID, countryID), err)
	}
	return master, nil
}

func (r *masterRepository) GetActive(ctx context.Context) ([]*models.Master, error) {
	var masters []*models.Master
	err := r.db.NewSelect().
		Model(&masters).
		Where("active = ?", true).
		Order("variable_id ASC", "country_id ASC").
		Scan(ctx)
	return masters, r.HandleError("get_active", "master", err)
}

func (r *masterRepository) Upsert(ctx context.Context, master *models.Master) error {
	if master.Periodicity != models.PeriodicityDaily &&
		master.Periodicity != models.PeriodicityWeekly &&
		master.Periodicity != models.PeriodicityMonthly {
		return fmt.Errorf("master (%d,%d): periodicity must be D, W or M, got %q",
			master.VariableID, master.CountryID, master.Periodicity)
	}

	varExists, err := r.db.NewSelect().
		Model((*models.Variable)(nil)).
		Where("variable_id = ?", master.VariableID).
		Exists(ctx)
	if err != nil {
		return r.HandleError("upsert", "master", err)
	}
	if !varExists {
		return &ForeignKeyError{Entity: "master", Reference: "variable", ID: master.VariableID}
	}

	countryExists, err := r.db.NewSelect().
		Model((*models.Country)(nil)).
		Where("country_id = ?", master.CountryID).
		Exists(ctx)
	if err != nil {
		return r.HandleError("upsert", "master", err)
	}
	if !countryExists {
		return &ForeignKeyError{Entity: "master", Reference: "country", ID: master.CountryID}
	}

	_, err = r.db.NewInsert().
		Model(master).
		On("CONFLICT (variable_id, country_id) DO UPDATE").
		Set("source_label = EXCLUDED.source_label").
		Set("periodicity = EXCLUDED.periodicity").
		Set("active = EXCLUDED.active").
		Set("link = EXCLUDED.link").
		Exec(ctx)
	return r.HandleErrorWithID("upsert", "master",
		fmt.Sprintf("(%d,%d)", master.VariableID, master.CountryID), err)
}
