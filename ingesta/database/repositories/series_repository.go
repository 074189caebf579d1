package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/macrodatos/ingesta/ingesta/database/models"
	"github.com/uptrace/bun"
)

// SeriesRepository owns the series_points table. All write operations are
// transactional: on any row-level error the whole batch rolls back.
type SeriesRepository interface {
	// ReplacePoints deletes every point of the master and inserts the
	// supplied set, atomically. Returns the number of inserted points.
	ReplacePoints(ctx context.Context, variableID, countryID int, points []models.SeriesPoint) (int, error)
	// MergePoints updates the value of dates already present and inserts
	// the rest. Used only by jobs that explicitly opt in to incremental mode.
	MergePoints(ctx context.Context, variableID, countryID int, points []models.SeriesPoint) (inserted, updated int, err error)
	GetPoints(ctx context.Context, variableID, countryID int) ([]models.SeriesPoint, error)
	PointsSince(ctx context.Context, variableID, countryID int, from time.Time) ([]models.SeriesPoint, error)
	CountPoints(ctx context.Context, variableID, countryID int) (int, error)
}

type seriesRepository struct {
	db *bun.DB
	*BaseRepository
}

func NewSeriesRepository(db *bun.DB) SeriesRepository {
	return &seriesRepository{
		db:             db,
		BaseRepository: NewBaseRepository(db),
	}
}

func (r *seriesRepository) masterExists(ctx context.Context, tx bun.Tx, variableID, countryID int) error {
	exists, err := tx.NewSelect().
		Model((*models.Master)(nil)).
		Where("variable_id = ?", variableID).
		Where("country_id = ?", countryID).
		Exists(ctx)
	if err != nil {
		return r.HandleError("resolve", "master", err)
	}
	if !exists {
		return &NotFoundError{Entity: "master", ID: fmt.Sprintf("(%d,%d)", variableID, countryID)}
	}
	return nil
}

func (r *seriesRepository) ReplacePoints(ctx context.Context, variableID, countryID int, points []models.SeriesPoint) (int, error) {
	var inserted int
	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := r.masterExists(ctx, tx, variableID, countryID); err != nil {
			return err
		}

		if _, err := tx.NewDelete().
			Model((*models.SeriesPoint)(nil)).
			Where("variable_id = ?", variableID).
			Where("country_id = ?", countryID).
			Exec(ctx); err != nil {
			return r.HandleError("replace_delete", "series_point", err)
		}

		if len(points) == 0 {
			return nil
		}

		for i := range points {
			points[i].VariableID = variableID
			points[i].CountryID = countryID
		}

		res, err := tx.NewInsert().Model(&points).Exec(ctx)
		if err != nil {
			return r.HandleError("replace_insert", "series_point", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted = int(n)
		} else {
			inserted = len(points)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *seriesRepository) MergePoints(ctx context.Context, variableID, countryID int, points []models.SeriesPoint) (int, int, error) {
	var inserted, updated int
	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := r.masterExists(ctx, tx, variableID, countryID); err != nil {
			return err
		}

		var existingDates []time.Time
		if err := tx.NewSelect().
			Model((*models.SeriesPoint)(nil)).
			Column("date").
			Where("variable_id = ?", variableID).
			Where("country_id = ?", countryID).
			Scan(ctx, &existingDates); err != nil {
			return r.HandleError("merge_select", "series_point", err)
		}

		existing := make(map[string]bool, len(existingDates))
		for _, d := range existingDates {
			existing[d.Format("2006-01-02")] = true
		}

		var toInsert []models.SeriesPoint
		for _, p := range points {
			p.VariableID = variableID
			p.CountryID = countryID
			if existing[p.Date.Format("2006-01-02")] {
				if _, err := tx.NewUpdate().
					Model((*models.SeriesPoint)(nil)).
					Set("value = ?", p.Value).
					Where("variable_id = ?", variableID).
					Where("country_id = ?", countryID).
					Where("date = ?", p.Date).
					Exec(ctx); err != nil {
					return r.HandleError("merge_update", "series_point", err)
				}
				updated++
			} else {
				toInsert = append(toInsert, p)
			}
		}

		if len(toInsert) > 0 {
			if _, err := tx.NewInsert().Model(&toInsert).Exec(ctx); err != nil {
				return r.HandleError("merge_insert", "series_point", err)
			}
			inserted = len(toInsert)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}

func (r *seriesRepository) GetPoints(ctx context.Context, variableID, countryID int) ([]models.SeriesPoint, error) {
	var points []models.SeriesPoint
	err := r.db.NewSelect().
		Model(&points).
		Where("variable_id = ?", variableID).
		Where("country_id = ?", countryID).
		Order("date ASC").
		Scan(ctx)
	return points, r.HandleError("get_points", "series_point", err)
}

func (r *seriesRepository) PointsSince(ctx context.Context, variableID, countryID int, from time.Time) ([]models.SeriesPoint, error) {
	var points []models.SeriesPoint
	err := r.db.NewSelect().
		Model(&points).
		Where("variable_id = ?", variableID).
		Where("country_id = ?", countryID).
		Where("date >= ?", from).
		Order("date ASC").
		Scan(ctx)
	return points, r.HandleError("points_since", "series_point", err)
}

func (r *seriesRepository) CountPoints(ctx context.Context, variableID, countryID int) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.SeriesPoint)(nil)).
		Where("variable_id = ?", variableID).
		Where("country_id = ?", countryID).
		Count(ctx)
	return count, r.HandleError("count_points", "series_point", err)
}
