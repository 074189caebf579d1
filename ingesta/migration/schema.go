package migration

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Schema DDL. No uniqueness constraint on series_points beyond the
// composite index: the upsert protocol deletes the range it is about to
// write, so duplicates cannot appear through the supported write paths.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS countries (
		country_id   INTEGER PRIMARY KEY,
		display_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS families (
		family_id INTEGER PRIMARY KEY,
		name      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sub_families (
		sub_family_id INTEGER PRIMARY KEY,
		family_id     INTEGER NOT NULL REFERENCES families (family_id),
		name          TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS variables (
		variable_id     INTEGER PRIMARY KEY,
		canonical_name  TEXT NOT NULL,
		sub_family_id   INTEGER NOT NULL REFERENCES sub_families (sub_family_id),
		nominal_or_real TEXT NOT NULL CHECK (nominal_or_real IN ('n', 'r')),
		currency_code   TEXT,
		UNIQUE (canonical_name, nominal_or_real)
	)`,
	`CREATE TABLE IF NOT EXISTS masters (
		variable_id  INTEGER NOT NULL REFERENCES variables (variable_id),
		country_id   INTEGER NOT NULL REFERENCES countries (country_id),
		source_label TEXT NOT NULL,
		periodicity  TEXT NOT NULL CHECK (periodicity IN ('D', 'W', 'M')),
		active       BOOLEAN NOT NULL DEFAULT TRUE,
		link         TEXT,
		PRIMARY KEY (variable_id, country_id)
	)`,
	`CREATE TABLE IF NOT EXISTS series_points (
		variable_id INTEGER NOT NULL,
		country_id  INTEGER NOT NULL,
		date        DATE NOT NULL,
		value       NUMERIC(18,6) NOT NULL,
		FOREIGN KEY (variable_id, country_id)
			REFERENCES masters (variable_id, country_id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_series_points_master_date
		ON series_points (variable_id, country_id, date)`,
}

// CreateSchema creates the catalog tables when missing.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
