package store

import (
	"context"
	"fmt"
	"strings"

	"modeladmin/internal/logger"
	"modeladmin/internal/metadata"
)

// Migrator creates missing entity and join tables. Existing tables are
// left untouched.
type Migrator struct {
	store *SQLStore
	log   *logger.Logger
}

func NewMigrator(store *SQLStore, log *logger.Logger) *Migrator {
	return &Migrator{store: store, log: log}
}

// MigrateAll creates tables for every registered entity and join tables
// for every many-to-many relation.
func (m *Migrator) MigrateAll(ctx context.Context, reg *metadata.Registry) error {
	entities := reg.AllEntities()
	for _, e := range entities {
		if err := m.Migrate(ctx, e); err != nil {
			return err
		}
	}
	for _, e := range entities {
		for _, rel := range reg.GetRelationsForSource(e.Name) {
			if !rel.IsManyToMany() {
				continue
			}
			target := reg.GetEntity(rel.Target)
			if err := m.MigrateJoinTable(ctx, rel, e, target); err != nil {
				return err
			}
		}
	}
	return nil
}

// Migrate creates the entity's table if it doesn't exist.
func (m *Migrator) Migrate(ctx context.Context, entity *metadata.Entity) error {
	exists, err := m.store.Dialect.TableExists(ctx, m.store.DB, entity.Table)
	if err != nil {
		return fmt.Errorf("check table exists: %w", err)
	}
	if exists {
		return nil
	}
	return m.createTable(ctx, entity)
}

// MigrateJoinTable creates a join table for a many-to-many relation if it doesn't exist.
func (m *Migrator) MigrateJoinTable(ctx context.Context, rel *metadata.Relation, sourceEntity, targetEntity *metadata.Entity) error {
	exists, err := m.store.Dialect.TableExists(ctx, m.store.DB, rel.JoinTable)
	if err != nil {
		return fmt.Errorf("check join table exists: %w", err)
	}
	if exists {
		return nil
	}

	sourceField := sourceEntity.GetField(sourceEntity.PrimaryKey.Field)
	targetField := targetEntity.GetField(targetEntity.PrimaryKey.Field)
	if sourceField == nil || targetField == nil {
		return fmt.Errorf("cannot resolve key types for join table %s", rel.JoinTable)
	}

	sourceKey, targetKey := rel.JoinKeys()
	d := m.store.Dialect
	ddl := fmt.Sprintf(
		`CREATE TABLE %s (
			%s %s NOT NULL,
			%s %s NOT NULL,
			PRIMARY KEY (%s, %s)
		)`,
		rel.JoinTable,
		sourceKey, d.ColumnType(sourceField.Kind(), 0),
		targetKey, d.ColumnType(targetField.Kind(), 0),
		sourceKey, targetKey,
	)

	if _, err := m.store.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create join table %s: %w", rel.JoinTable, err)
	}
	m.log.Info("created join table", "table", rel.JoinTable, "relation", rel.Name)
	return nil
}

func (m *Migrator) createTable(ctx context.Context, entity *metadata.Entity) error {
	var cols []string
	for i := range entity.Fields {
		cols = append(cols, m.buildColumnDef(entity, &entity.Fields[i]))
	}

	ddl := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", entity.Table, strings.Join(cols, ",\n  "))
	if _, err := m.store.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", entity.Table, err)
	}

	if err := m.createIndexes(ctx, entity); err != nil {
		return fmt.Errorf("create indexes for %s: %w", entity.Table, err)
	}
	m.log.Info("created table", "table", entity.Table, "entity", entity.Name)
	return nil
}

func (m *Migrator) buildColumnDef(entity *metadata.Entity, f *metadata.Field) string {
	d := m.store.Dialect
	isPK := f.Name == entity.PrimaryKey.Field

	if isPK && entity.PrimaryKey.Generated && entity.HasIntegerKey() {
		return f.Name + " " + d.IdentityColumn(f.Kind()) + " PRIMARY KEY"
	}

	col := f.Name + " " + d.ColumnType(f.Kind(), f.Precision)
	if isPK {
		return col + " PRIMARY KEY"
	}

	if f.Required && !f.Nullable && !f.IsAuto() {
		col += " NOT NULL"
	}

	if f.Default != nil {
		switch v := f.Default.(type) {
		case string:
			col += fmt.Sprintf(" DEFAULT '%s'", strings.ReplaceAll(v, "'", "''"))
		case bool:
			if d.NeedsBoolFix() {
				if v {
					col += " DEFAULT 1"
				} else {
					col += " DEFAULT 0"
				}
			} else {
				col += fmt.Sprintf(" DEFAULT %t", v)
			}
		case int, int64, float64:
			col += fmt.Sprintf(" DEFAULT %v", v)
		default:
			col += fmt.Sprintf(" DEFAULT '%v'", v)
		}
	}

	return col
}

func (m *Migrator) createIndexes(ctx context.Context, entity *metadata.Entity) error {
	for _, f := range entity.Fields {
		if !f.Unique || f.Name == entity.PrimaryKey.Field {
			continue
		}
		ddl := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)",
			entity.Table, f.Name, entity.Table, f.Name)
		if _, err := m.store.DB.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create unique index on %s.%s: %w", entity.Table, f.Name, err)
		}
	}
	return nil
}
