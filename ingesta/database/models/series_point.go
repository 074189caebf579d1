package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// SeriesPoint is one observation of a master series. There is no uniqueness
// constraint on (variable_id, country_id, date) at the storage level;
// duplicates are prevented by the upsert protocol, which deletes the range
// it is about to write.
type SeriesPoint struct {
	bun.BaseModel `bun:"table:series_points,alias:sp"`

	VariableID int             `bun:"variable_id,notnull"`
	CountryID  int             `bun:"country_id,notnull"`
	Date       time.Time       `bun:"date,notnull,type:date"`
	Value      decimal.Decimal `bun:"value,notnull,type:numeric(18,6)"`
}
