package store

import (
	"context"
	"encoding/json"
	"fmt"

	"modeladmin/internal/metadata"
)

// Bootstrap creates the definition tables if they do not exist.
func (s *SQLStore) Bootstrap(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, s.Dialect.SystemTablesSQL()); err != nil {
		return fmt.Errorf("bootstrap system tables: %w", err)
	}
	return nil
}

// SaveDefinitions replaces the contents of the system tables with the given
// definitions. Relation order is kept in the position column.
func (s *SQLStore) SaveDefinitions(ctx context.Context, entities []*metadata.Entity, relations []*metadata.Relation) error {
	return s.InTx(ctx, func(st Store) error {
		q := st.(*SQLStore).q
		ph := s.Dialect.Placeholder

		for _, table := range []string{"_relations", "_entities"} {
			if _, err := Exec(ctx, q, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		entitySQL := fmt.Sprintf(`INSERT INTO _entities (name, table_name, definition) VALUES (%s, %s, %s)
ON CONFLICT (name) DO UPDATE SET table_name = excluded.table_name, definition = excluded.definition`,
			ph(1), ph(2), ph(3))
		for _, e := range entities {
			def, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encode entity %s: %w", e.Name, err)
			}
			if _, err := Exec(ctx, q, entitySQL, e.Name, e.Table, string(def)); err != nil {
				return fmt.Errorf("save entity %s: %w", e.Name, s.Dialect.MapError(err))
			}
		}

		relationSQL := fmt.Sprintf(`INSERT INTO _relations (name, source, target, position, definition) VALUES (%s, %s, %s, %s, %s)
ON CONFLICT (source, name) DO UPDATE SET target = excluded.target, position = excluded.position, definition = excluded.definition`,
			ph(1), ph(2), ph(3), ph(4), ph(5))
		for i, r := range relations {
			def, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode relation %s: %w", r.Name, err)
			}
			if _, err := Exec(ctx, q, relationSQL, r.Name, r.Source, r.Target, i, string(def)); err != nil {
				return fmt.Errorf("save relation %s.%s: %w", r.Source, r.Name, s.Dialect.MapError(err))
			}
		}
		return nil
	})
}
