package models

import (
	"github.com/uptrace/bun"
)

// InternationalEconomyID is the sentinel country used by aggregate series
// that do not belong to a single economy.
const InternationalEconomyID = 999

type Country struct {
	bun.BaseModel `bun:"table:countries,alias:co"`

	CountryID   int    `bun:"country_id,pk"`
	DisplayName string `bun:"display_name,notnull"`
}
