package models

import (
	"github.com/uptrace/bun"
)

type Family struct {
	bun.BaseModel `bun:"table:families,alias:fam"`

	FamilyID int    `bun:"family_id,pk"`
	Name     string `bun:"name,notnull"`
}

// SubFamily belongs to exactly one family.
type SubFamily struct {
	bun.BaseModel `bun:"table:sub_families,alias:sfam"`

	SubFamilyID int    `bun:"sub_family_id,pk"`
	FamilyID    int    `bun:"family_id,notnull"`
	Name        string `bun:"name,notnull"`

	// Relations
	Family *Family `bun:"rel:belongs-to,join:family_id=family_id"`
}
