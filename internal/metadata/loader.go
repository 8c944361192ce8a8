package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"modeladmin/internal/logger"
)

// Rows is the subset of database/sql the system-table loader needs.
type Rows interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Definitions is the on-disk shape of a definitions file.
type Definitions struct {
	Entities  []*Entity   `json:"entities" yaml:"entities"`
	Relations []*Relation `json:"relations" yaml:"relations"`
}

// LoadFiles reads every *.yaml / *.yml file in dir, validates the combined
// definitions and populates the registry.
func LoadFiles(dir string, reg *Registry, log *logger.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read definitions dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var all Definitions
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		defs, err := ParseDefinitions(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		all.Entities = append(all.Entities, defs.Entities...)
		all.Relations = append(all.Relations, defs.Relations...)
	}

	if err := Validate(all.Entities, all.Relations); err != nil {
		return err
	}
	reg.Load(all.Entities, all.Relations)

	log.Info("definitions loaded", "files", len(names), "entities", len(all.Entities), "relations", len(all.Relations))
	return nil
}

// ParseDefinitions decodes a YAML definitions document.
func ParseDefinitions(data []byte) (*Definitions, error) {
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, err
	}
	return &defs, nil
}

// LoadAll reads all entities and relations from the system tables and populates the registry.
func LoadAll(ctx context.Context, db Rows, reg *Registry, log *logger.Logger) error {
	entities, err := loadEntities(ctx, db, log)
	if err != nil {
		return fmt.Errorf("load entities: %w", err)
	}

	relations, err := loadRelations(ctx, db, log)
	if err != nil {
		return fmt.Errorf("load relations: %w", err)
	}

	if err := Validate(entities, relations); err != nil {
		return err
	}
	reg.Load(entities, relations)

	log.Info("definitions loaded from system tables", "entities", len(entities), "relations", len(relations))
	return nil
}

func loadEntities(ctx context.Context, db Rows, log *logger.Logger) ([]*Entity, error) {
	rows, err := db.QueryContext(ctx, "SELECT name, definition FROM _entities ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		var name string
		var defJSON []byte
		if err := rows.Scan(&name, &defJSON); err != nil {
			return nil, fmt.Errorf("scan entity row: %w", err)
		}

		var entity Entity
		if err := json.Unmarshal(defJSON, &entity); err != nil {
			log.Warn("skipping entity with invalid definition", "entity", name, "error", err)
			continue
		}
		entities = append(entities, &entity)
	}
	return entities, rows.Err()
}

func loadRelations(ctx context.Context, db Rows, log *logger.Logger) ([]*Relation, error) {
	rows, err := db.QueryContext(ctx, "SELECT name, definition FROM _relations ORDER BY position, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var relations []*Relation
	for rows.Next() {
		var name string
		var defJSON []byte
		if err := rows.Scan(&name, &defJSON); err != nil {
			return nil, fmt.Errorf("scan relation row: %w", err)
		}

		var rel Relation
		if err := json.Unmarshal(defJSON, &rel); err != nil {
			log.Warn("skipping relation with invalid definition", "relation", name, "error", err)
			continue
		}
		relations = append(relations, &rel)
	}
	return relations, rows.Err()
}
