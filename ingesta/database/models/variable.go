package models

import (
	"github.com/uptrace/bun"
)

// Nominal/real kind markers for Variable.NominalOrReal.
const (
	KindNominal = "n"
	KindReal    = "r"
)

// Variable identifies one measured quantity. The same canonical name may
// exist once as nominal and once as real, never twice as the same kind.
type Variable struct {
	bun.BaseModel `bun:"table:variables,alias:va"`

	VariableID    int    `bun:"variable_id,pk"`
	CanonicalName string `bun:"canonical_name,notnull"`
	SubFamilyID   int    `bun:"sub_family_id,notnull"`
	NominalOrReal string `bun:"nominal_or_real,notnull"`
	CurrencyCode  string `bun:"currency_code"`

	// Relations
	SubFamily *SubFamily `bun:"rel:belongs-to,join:sub_family_id=sub_family_id"`
}
