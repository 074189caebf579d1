package models

import (
	"github.com/uptrace/bun"
)

// Periodicity markers for Master.Periodicity.
const (
	PeriodicityDaily   = "D"
	PeriodicityWeekly  = "W"
	PeriodicityMonthly = "M"
)

// Master is the narrow identity every series point hangs off:
// one (variable, country) pair with its source metadata.
type Master struct {
	bun.BaseModel `bun:"table:masters,alias:ma"`

	VariableID  int    `bun:"variable_id,pk"`
	CountryID   int    `bun:"country_id,pk"`
	SourceLabel string `bun:"source_label,notnull"`
	Periodicity string `bun:"periodicity,notnull"`
	Active      bool   `bun:"active,notnull"`
	Link        string `bun:"link"`

	// Relations
	Variable *Variable `bun:"rel:belongs-to,join:variable_id=variable_id"`
	Country  *Country  `bun:"rel:belongs-to,join:country_id=country_id"`
}
