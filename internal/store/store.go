package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"modeladmin/internal/composite"
	"modeladmin/internal/metadata"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")
)

// ConstraintError carries the driver's description of a violated
// uniqueness, nullability or foreign-key constraint.
type ConstraintError struct {
	Constraint string
	Column     string
	Detail     string
	err        error
}

func (e *ConstraintError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", ErrConstraintViolation, e.Detail)
	}
	return ErrConstraintViolation.Error()
}

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraintViolation }

func (e *ConstraintError) Unwrap() error { return e.err }

// Record is one row keyed by column name.
type Record = map[string]any

// Store is the persistence contract the upsert engine and the HTTP layer
// are written against.
type Store interface {
	// Get fetches one record by primary key. Missing rows yield ErrNotFound.
	Get(ctx context.Context, entity *metadata.Entity, id any) (Record, error)
	// Create inserts attrs and returns the stored row with its primary key.
	Create(ctx context.Context, entity *metadata.Entity, attrs Record) (Record, error)
	// Update writes attrs onto an existing row. Missing rows yield ErrNotFound.
	Update(ctx context.Context, entity *metadata.Entity, id any, attrs Record) (Record, error)
	// List returns one page of records plus the total row count.
	List(ctx context.Context, entity *metadata.Entity, q ListQuery) ([]Record, int64, error)
	// ListRelated returns the target ids currently linked to the owner
	// through a reverse or many-to-many relation.
	ListRelated(ctx context.Context, rel *metadata.Relation, target *metadata.Entity, ownerID any) ([]any, error)
	// AddToManyToMany links targetIDs to the owner, skipping existing links.
	AddToManyToMany(ctx context.Context, rel *metadata.Relation, ownerID any, targetIDs []any) error
	// SetForeignKey points column on one target row at ownerID.
	SetForeignKey(ctx context.Context, target *metadata.Entity, targetID any, column string, ownerID any) error
}

// Transactor is implemented by stores that can run a function inside one
// transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// ListQuery selects one page of a listing.
type ListQuery struct {
	Sort   []SortField
	Limit  int
	Offset int
}

type SortField struct {
	Column string
	Desc   bool
}

// Querier is implemented by both *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// QueryRows executes a query and returns results as []map[string]any.
func QueryRows(ctx context.Context, q Querier, sqlStr string, args ...any) ([]map[string]any, error) {
	rows, err := q.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return results, nil
}

// QueryRow executes a query and returns a single row as map[string]any.
func QueryRow(ctx context.Context, q Querier, sqlStr string, args ...any) (map[string]any, error) {
	rows, err := QueryRows(ctx, q, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Exec executes a statement and returns the number of rows affected.
func Exec(ctx context.Context, q Querier, sqlStr string, args ...any) (int64, error) {
	result, err := q.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// normalizeValue converts database-specific types to JSON-serializable Go types.
func normalizeValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case []byte:
		// database/sql often returns []byte for TEXT columns
		return string(val)
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	default:
		return val
	}
}

// parseTime reads the text timestamps SQLite hands back.
func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeBooleans converts integer 0/1 values to bool for specified fields.
// This is needed for SQLite where BOOLEAN columns are stored as INTEGER.
func NormalizeBooleans(rows []map[string]any, boolFields []string) {
	if len(boolFields) == 0 || len(rows) == 0 {
		return
	}
	boolSet := make(map[string]bool, len(boolFields))
	for _, f := range boolFields {
		boolSet[f] = true
	}
	for _, row := range rows {
		for k, v := range row {
			if !boolSet[k] {
				continue
			}
			switch val := v.(type) {
			case int64:
				row[k] = val != 0
			case int:
				row[k] = val != 0
			case float64:
				row[k] = val != 0
			}
		}
	}
}

func rangeLiteral(t composite.Tuple) string {
	return "[" + strconv.FormatFloat(t[0], 'f', -1, 64) + "," + strconv.FormatFloat(t[1], 'f', -1, 64) + "]"
}

// parseRangeLiteral reads a Postgres range literal such as "[1,6)". Integer
// ranges come back canonicalized to half-open form and are turned into
// closed bounds.
func parseRangeLiteral(s string, integer bool) (composite.Tuple, error) {
	s = strings.TrimSpace(s)
	if len(s) < 3 || s == "empty" {
		return nil, fmt.Errorf("%w: range %q", composite.ErrCompositeType, s)
	}
	lowerInc, upperInc := s[0] == '[', s[len(s)-1] == ']'
	parts := strings.SplitN(s[1:len(s)-1], ",", 2)
	if len(parts) != 2 {
		return nil, &composite.ArityError{Want: 2, Got: len(parts)}
	}
	from, err := strconv.ParseFloat(strings.Trim(parts[0], `" `), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: range lower bound %q", composite.ErrCompositeType, parts[0])
	}
	to, err := strconv.ParseFloat(strings.Trim(parts[1], `" `), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: range upper bound %q", composite.ErrCompositeType, parts[1])
	}
	if integer {
		if !lowerInc {
			from++
		}
		if !upperInc {
			to--
		}
		from, to = math.Trunc(from), math.Trunc(to)
	}
	return composite.Tuple{from, to}, nil
}
