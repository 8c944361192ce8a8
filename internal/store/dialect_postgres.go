package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"modeladmin/internal/composite"
	"modeladmin/internal/metadata"
)

// PostgresDialect implements Dialect for PostgreSQL via pgx/stdlib.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *PostgresDialect) NewParamBuilder() ParamBuilder {
	return &pgParamBuilder{}
}

func (d *PostgresDialect) NeedsBoolFix() bool { return false }

func (d *PostgresDialect) EncodeTime(t time.Time) any { return t }

func (d *PostgresDialect) ColumnType(kind metadata.Kind, precision int) string {
	switch kind {
	case metadata.KindString, metadata.KindText, metadata.KindEnum:
		return "TEXT"
	case metadata.KindInt:
		return "INTEGER"
	case metadata.KindSmallInt, metadata.KindIntEnum:
		return "SMALLINT"
	case metadata.KindBigInt:
		return "BIGINT"
	case metadata.KindFloat:
		return "DOUBLE PRECISION"
	case metadata.KindDecimal:
		if precision > 0 {
			return fmt.Sprintf("NUMERIC(18,%d)", precision)
		}
		return "NUMERIC"
	case metadata.KindBoolean:
		return "BOOLEAN"
	case metadata.KindUUID:
		return "UUID"
	case metadata.KindDatetime:
		return "TIMESTAMPTZ"
	case metadata.KindDate:
		return "DATE"
	case metadata.KindTime:
		return "TIME"
	case metadata.KindJSON, metadata.KindSet:
		return "JSONB"
	case metadata.KindPoint:
		return "POINT"
	case metadata.KindPolygon:
		return "POLYGON"
	case metadata.KindRange:
		if precision > 0 {
			return "NUMRANGE"
		}
		return "INT4RANGE"
	default:
		return "TEXT"
	}
}

func (d *PostgresDialect) IdentityColumn(kind metadata.Kind) string {
	if kind == metadata.KindBigInt {
		return "BIGINT GENERATED BY DEFAULT AS IDENTITY"
	}
	return "INTEGER GENERATED BY DEFAULT AS IDENTITY"
}

func (d *PostgresDialect) SystemTablesSQL() string {
	return pgSystemTablesSQL
}

func (d *PostgresDialect) TableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = $1 AND table_schema = 'public')`,
		tableName,
	).Scan(&exists)
	return exists, err
}

// EncodeComposite sends points and polygons as pgtype geometric values and
// ranges as range literals.
func (d *PostgresDialect) EncodeComposite(kind metadata.Kind, precision int, v any) (any, error) {
	switch kind {
	case metadata.KindPoint:
		t, ok := v.(composite.Tuple)
		if !ok {
			return nil, fmt.Errorf("%w: point value %T", composite.ErrCompositeType, v)
		}
		return pgtype.Point{P: pgtype.Vec2{X: t[0], Y: t[1]}, Valid: true}, nil
	case metadata.KindPolygon:
		ts, ok := v.([]composite.Tuple)
		if !ok {
			return nil, fmt.Errorf("%w: polygon value %T", composite.ErrCompositeType, v)
		}
		pts := make([]pgtype.Vec2, len(ts))
		for i, t := range ts {
			pts[i] = pgtype.Vec2{X: t[0], Y: t[1]}
		}
		return pgtype.Polygon{P: pts, Valid: true}, nil
	case metadata.KindRange:
		t, ok := v.(composite.Tuple)
		if !ok {
			return nil, fmt.Errorf("%w: range value %T", composite.ErrCompositeType, v)
		}
		return rangeLiteral(t), nil
	}
	return nil, fmt.Errorf("%w: %s is not composite", composite.ErrCompositeType, kind)
}

func (d *PostgresDialect) DecodeComposite(kind metadata.Kind, precision int, src any) (any, error) {
	text, ok := src.(string)
	if !ok {
		return nil, fmt.Errorf("%w: scanned %T", composite.ErrCompositeType, src)
	}
	switch kind {
	case metadata.KindPoint:
		var p pgtype.Point
		if err := p.Scan(text); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		return composite.Tuple{p.P.X, p.P.Y}, nil
	case metadata.KindPolygon:
		var p pgtype.Polygon
		if err := p.Scan(text); err != nil {
			return nil, fmt.Errorf("scan polygon: %w", err)
		}
		out := make([]composite.Tuple, len(p.P))
		for i, v := range p.P {
			out[i] = composite.Tuple{v.X, v.Y}
		}
		return out, nil
	case metadata.KindRange:
		return parseRangeLiteral(text, precision == 0)
	}
	return nil, fmt.Errorf("%w: %s is not composite", composite.ErrCompositeType, kind)
}

// MapError maps integrity constraint violations (SQLSTATE class 23) to
// ErrConstraintViolation.
func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "23") {
			return &ConstraintError{Constraint: pgErr.ConstraintName, Column: pgErr.ColumnName, Detail: pgErr.Detail, err: err}
		}
		return err
	}
	if strings.Contains(err.Error(), "duplicate key") {
		return &ConstraintError{Detail: err.Error(), err: err}
	}
	return err
}

// --- PostgreSQL DDL ---

const pgSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS _entities (
    name        TEXT PRIMARY KEY,
    table_name  TEXT NOT NULL UNIQUE,
    definition  JSONB NOT NULL,
    created_at  TIMESTAMPTZ DEFAULT NOW(),
    updated_at  TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _relations (
    name        TEXT NOT NULL,
    source      TEXT NOT NULL REFERENCES _entities(name) ON DELETE CASCADE,
    target      TEXT NOT NULL REFERENCES _entities(name) ON DELETE CASCADE,
    position    INTEGER NOT NULL DEFAULT 0,
    definition  JSONB NOT NULL,
    created_at  TIMESTAMPTZ DEFAULT NOW(),
    updated_at  TIMESTAMPTZ DEFAULT NOW(),
    PRIMARY KEY (source, name)
);
`

// Compile-time check
var _ Dialect = (*PostgresDialect)(nil)
