package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"modeladmin/internal/composite"
	"modeladmin/internal/metadata"
)

// SQLiteDialect implements Dialect for SQLite via modernc.org/sqlite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) Placeholder(index int) string {
	return fmt.Sprintf("?%d", index)
}

func (d *SQLiteDialect) NewParamBuilder() ParamBuilder {
	return &sqliteParamBuilder{}
}

func (d *SQLiteDialect) NeedsBoolFix() bool { return true }

// EncodeTime stores timestamps as RFC 3339 text.
func (d *SQLiteDialect) EncodeTime(t time.Time) any {
	return t.UTC().Format(time.RFC3339Nano)
}

func (d *SQLiteDialect) ColumnType(kind metadata.Kind, precision int) string {
	switch kind {
	case metadata.KindInt, metadata.KindSmallInt, metadata.KindBigInt, metadata.KindIntEnum, metadata.KindBoolean:
		return "INTEGER"
	case metadata.KindFloat, metadata.KindDecimal:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (d *SQLiteDialect) IdentityColumn(metadata.Kind) string {
	return "INTEGER"
}

func (d *SQLiteDialect) SystemTablesSQL() string {
	return sqliteSystemTablesSQL
}

func (d *SQLiteDialect) TableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?1",
		tableName,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EncodeComposite stores composites as JSON arrays in TEXT columns.
func (d *SQLiteDialect) EncodeComposite(kind metadata.Kind, _ int, v any) (any, error) {
	switch v.(type) {
	case composite.Tuple, []composite.Tuple:
	default:
		return nil, fmt.Errorf("%w: %s value %T", composite.ErrCompositeType, kind, v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *SQLiteDialect) DecodeComposite(kind metadata.Kind, _ int, src any) (any, error) {
	text, ok := src.(string)
	if !ok {
		return nil, fmt.Errorf("%w: scanned %T", composite.ErrCompositeType, src)
	}
	if kind == metadata.KindPolygon {
		var out []composite.Tuple
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			return nil, fmt.Errorf("decode polygon: %w", err)
		}
		return out, nil
	}
	var out composite.Tuple
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return out, nil
}

func (d *SQLiteDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return &ConstraintError{Detail: sqliteErr.Error(), err: err}
		}
		return err
	}
	if strings.Contains(err.Error(), "constraint failed") {
		return &ConstraintError{Detail: err.Error(), err: err}
	}
	return err
}

// --- SQLite DDL ---

const sqliteSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS _entities (
    name        TEXT PRIMARY KEY,
    table_name  TEXT NOT NULL UNIQUE,
    definition  TEXT NOT NULL,
    created_at  TEXT DEFAULT (datetime('now')),
    updated_at  TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS _relations (
    name        TEXT NOT NULL,
    source      TEXT NOT NULL REFERENCES _entities(name) ON DELETE CASCADE,
    target      TEXT NOT NULL REFERENCES _entities(name) ON DELETE CASCADE,
    position    INTEGER NOT NULL DEFAULT 0,
    definition  TEXT NOT NULL,
    created_at  TEXT DEFAULT (datetime('now')),
    updated_at  TEXT DEFAULT (datetime('now')),
    PRIMARY KEY (source, name)
);
`

// Compile-time check
var _ Dialect = (*SQLiteDialect)(nil)
