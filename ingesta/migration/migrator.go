// Package migration seeds the catalog from the authoritative spreadsheet
// export and, for installations coming from the previous system, straight
// from its legacy MongoDB. Ingestion never creates catalog rows; this tool
// is the only write path for countries, families, variables and masters.
package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/macrodatos/ingesta/ingesta/database/models"
	"github.com/macrodatos/ingesta/ingesta/database/repositories"
)

type Migrator struct {
	catalog repositories.CatalogRepository
	masters repositories.MasterRepository

	// Optional direct Mongo access to the legacy catalog
	mongoDB   *mongo.Database
	collNames map[string]string

	stats  Stats
	logger *slog.Logger
}

type Stats struct {
	StartTime time.Time
	Upserted  map[string]int
	Errors    []string
}

func NewMigrator(catalog repositories.CatalogRepository, masters repositories.MasterRepository) *Migrator {
	return &Migrator{
		catalog: catalog,
		masters: masters,
		collNames: map[string]string{
			"countries":    "paises",
			"families":     "familias",
			"sub_families": "subfamilias",
			"variables":    "variables",
			"masters":      "maestro",
		},
		stats: Stats{
			StartTime: time.Now(),
			Upserted:  make(map[string]int),
		},
		logger: slog.With(slog.String("service", "migration")),
	}
}

// UseMongo points the migrator at the legacy database.
func (m *Migrator) UseMongo(client *mongo.Client, dbName string) {
	if client != nil {
		m.mongoDB = client.Database(dbName)
	}
}

// SetMongoCollectionName overrides one legacy collection name.
func (m *Migrator) SetMongoCollectionName(kind, name string) {
	if _, ok := m.collNames[kind]; ok && name != "" {
		m.collNames[kind] = name
	}
}

// catalogExport mirrors the JSON export of the authoritative spreadsheet.
type catalogExport struct {
	Countries []struct {
		CountryID   int    `json:"country_id"`
		DisplayName string `json:"display_name"`
	} `json:"countries"`
	Families []struct {
		FamilyID int    `json:"family_id"`
		Name     string `json:"name"`
	} `json:"families"`
	SubFamilies []struct {
		SubFamilyID int    `json:"sub_family_id"`
		FamilyID    int    `json:"family_id"`
		Name        string `json:"name"`
	} `json:"sub_families"`
	Variables []struct {
		VariableID    int    `json:"variable_id"`
		CanonicalName string `json:"canonical_name"`
		SubFamilyID   int    `json:"sub_family_id"`
		NominalOrReal string `json:"nominal_or_real"`
		CurrencyCode  string `json:"currency_code"`
	} `json:"variables"`
	Masters []struct {
		VariableID  int    `json:"variable_id"`
		CountryID   int    `json:"country_id"`
		SourceLabel string `json:"source_label"`
		Periodicity string `json:"periodicity"`
		Active      bool   `json:"active"`
		Link        string `json:"link"`
	} `json:"masters"`
}

// ImportFromJSON upserts the whole catalog from a spreadsheet export,
// parents before children so every FK resolves.
func (m *Migrator) ImportFromJSON(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog export: %w", err)
	}
	var export catalogExport
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("catalog export is not valid JSON: %w", err)
	}

	for _, c := range export.Countries {
		if err := m.catalog.UpsertCountry(ctx, &models.Country{
			CountryID: c.CountryID, DisplayName: c.DisplayName,
		}); err != nil {
			return m.fail("countries", err)
		}
		m.stats.Upserted["countries"]++
	}
	for _, f := range export.Families {
		if err := m.catalog.UpsertFamily(ctx, &models.Family{
			FamilyID: f.FamilyID, Name: f.Name,
		}); err != nil {
			return m.fail("families", err)
		}
		m.stats.Upserted["families"]++
	}
	for _, sf := range export.SubFamilies {
		if err := m.catalog.UpsertSubFamily(ctx, &models.SubFamily{
			SubFamilyID: sf.SubFamilyID, FamilyID: sf.FamilyID, Name: sf.Name,
		}); err != nil {
			return m.fail("sub_families", err)
		}
		m.stats.Upserted["sub_families"]++
	}
	for _, v := range export.Variables {
		if err := m.catalog.UpsertVariable(ctx, &models.Variable{
			VariableID:    v.VariableID,
			CanonicalName: v.CanonicalName,
			SubFamilyID:   v.SubFamilyID,
			NominalOrReal: v.NominalOrReal,
			CurrencyCode:  v.CurrencyCode,
		}); err != nil {
			return m.fail("variables", err)
		}
		m.stats.Upserted["variables"]++
	}
	for _, ma := range export.Masters {
		if err := m.masters.Upsert(ctx, &models.Master{
			VariableID:  ma.VariableID,
			CountryID:   ma.CountryID,
			SourceLabel: ma.SourceLabel,
			Periodicity: ma.Periodicity,
			Active:      ma.Active,
			Link:        ma.Link,
		}); err != nil {
			return m.fail("masters", err)
		}
		m.stats.Upserted["masters"]++
	}

	m.logStats()
	return nil
}

// ImportFromMongo pulls the catalog out of the legacy system's collections
// and upserts it, parents before children.
func (m *Migrator) ImportFromMongo(ctx context.Context) error {
	if m.mongoDB == nil {
		return fmt.Errorf("mongo not configured; call UseMongo first")
	}

	if err := eachDoc(ctx, m.mongoDB.Collection(m.collNames["countries"]), func(doc bson.M) error {
		m.stats.Upserted["countries"]++
		return m.catalog.UpsertCountry(ctx, &models.Country{
			CountryID:   asInt(doc["country_id"]),
			DisplayName: asString(doc["display_name"]),
		})
	}); err != nil {
		return m.fail("countries", err)
	}

	if err := eachDoc(ctx, m.mongoDB.Collection(m.collNames["families"]), func(doc bson.M) error {
		m.stats.Upserted["families"]++
		return m.catalog.UpsertFamily(ctx, &models.Family{
			FamilyID: asInt(doc["family_id"]),
			Name:     asString(doc["name"]),
		})
	}); err != nil {
		return m.fail("families", err)
	}

	if err := eachDoc(ctx, m.mongoDB.Collection(m.collNames["sub_families"]), func(doc bson.M) error {
		m.stats.Upserted["sub_families"]++
		return m.catalog.UpsertSubFamily(ctx, &models.SubFamily{
			SubFamilyID: asInt(doc["sub_family_id"]),
			FamilyID:    asInt(doc["family_id"]),
			Name:        asString(doc["name"]),
		})
	}); err != nil {
		return m.fail("sub_families", err)
	}

	if err := eachDoc(ctx, m.mongoDB.Collection(m.collNames["variables"]), func(doc bson.M) error {
		m.stats.Upserted["variables"]++
		return m.catalog.UpsertVariable(ctx, &models.Variable{
			VariableID:    asInt(doc["variable_id"]),
			CanonicalName: asString(doc["canonical_name"]),
			SubFamilyID:   asInt(doc["sub_family_id"]),
			NominalOrReal: asString(doc["nominal_or_real"]),
			CurrencyCode:  asString(doc["currency_code"]),
		})
	}); err != nil {
		return m.fail("variables", err)
	}

	if err := eachDoc(ctx, m.mongoDB.Collection(m.collNames["masters"]), func(doc bson.M) error {
		m.stats.Upserted["masters"]++
		active := true
		if v, ok := doc["active"]; ok {
			active = asInt(v) != 0
		}
		return m.masters.Upsert(ctx, &models.Master{
			VariableID:  asInt(doc["variable_id"]),
			CountryID:   asInt(doc["country_id"]),
			SourceLabel: asString(doc["source_label"]),
			Periodicity: asString(doc["periodicity"]),
			Active:      active,
			Link:        asString(doc["link"]),
		})
	}); err != nil {
		return m.fail("masters", err)
	}

	m.logStats()
	return nil
}

func eachDoc(ctx context.Context, coll *mongo.Collection, fn func(bson.M) error) error {
	cursor, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (m *Migrator) fail(table string, err error) error {
	m.stats.Errors = append(m.stats.Errors, fmt.Sprintf("%s: %v", table, err))
	m.logStats()
	return fmt.Errorf("catalog import failed at %s: %w", table, err)
}

func (m *Migrator) logStats() {
	m.logger.Info("Catalog import summary",
		slog.String("type", "db"),
		slog.Duration("took", time.Since(m.stats.StartTime)),
		slog.Any("upserted", m.stats.Upserted),
		slog.Int("errors", len(m.stats.Errors)))
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
