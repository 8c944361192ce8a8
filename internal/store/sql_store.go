package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	_ "modernc.org/sqlite"             // Register sqlite as database/sql driver

	"modeladmin/internal/config"
	"modeladmin/internal/metadata"
)

// SQLStore implements Store over database/sql.
type SQLStore struct {
	DB      *sql.DB
	Dialect Dialect
	q       Querier
	inTx    bool
}

// Open connects to the configured database.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*SQLStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	dialect := NewDialect(driver)
	db, err := sql.Open(dialect.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == "sqlite" {
		// SQLite: single writer, WAL mode for concurrent reads
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	} else if cfg.PoolSize > 0 {
		db.SetMaxOpenConns(cfg.PoolSize)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return NewSQLStore(db, dialect), nil
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{DB: db, Dialect: dialect, q: db}
}

// Close closes the database connection.
func (s *SQLStore) Close() {
	s.DB.Close()
}

// InTx runs fn against a store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *SQLStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &SQLStore{DB: s.DB, Dialect: s.Dialect, q: tx, inTx: true}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", s.Dialect.MapError(err))
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, entity *metadata.Entity, id any) (Record, error) {
	pb := s.Dialect.NewParamBuilder()
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s", entity.Table, entity.PrimaryKey.Field, pb.Add(id))
	row, err := QueryRow(ctx, s.q, query, pb.Params()...)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s %v: %w", entity.Name, id, ErrNotFound)
		}
		return nil, s.Dialect.MapError(err)
	}
	return s.decode(entity, row)
}

func (s *SQLStore) Create(ctx context.Context, entity *metadata.Entity, attrs Record) (Record, error) {
	values, err := s.encode(entity, attrs)
	if err != nil {
		return nil, err
	}
	pk := entity.PrimaryKey.Field
	if _, ok := values[pk]; !ok {
		if key, ok := NewKey(entity.PrimaryKey); ok {
			values[pk] = key
		}
	}
	now := s.now()
	for _, f := range entity.Fields {
		if f.IsAuto() {
			values[f.Name] = now
		}
	}

	var query string
	pb := s.Dialect.NewParamBuilder()
	if len(values) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", entity.Table)
	} else {
		cols := sortedKeys(values)
		phs := make([]string, len(cols))
		for i, col := range cols {
			phs[i] = pb.Add(values[col])
		}
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
			entity.Table, strings.Join(cols, ", "), strings.Join(phs, ", "))
	}

	row, err := QueryRow(ctx, s.q, query, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", entity.Name, s.Dialect.MapError(err))
	}
	return s.decode(entity, row)
}

func (s *SQLStore) Update(ctx context.Context, entity *metadata.Entity, id any, attrs Record) (Record, error) {
	values, err := s.encode(entity, attrs)
	if err != nil {
		return nil, err
	}
	delete(values, entity.PrimaryKey.Field)
	if len(values) == 0 {
		return s.Get(ctx, entity, id)
	}
	now := s.now()
	for _, f := range entity.Fields {
		if f.Auto == "update" {
			values[f.Name] = now
		}
	}

	pb := s.Dialect.NewParamBuilder()
	cols := sortedKeys(values)
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = %s", col, pb.Add(values[col]))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s RETURNING *",
		entity.Table, strings.Join(sets, ", "), entity.PrimaryKey.Field, pb.Add(id))

	row, err := QueryRow(ctx, s.q, query, pb.Params()...)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s %v: %w", entity.Name, id, ErrNotFound)
		}
		return nil, fmt.Errorf("update %s: %w", entity.Name, s.Dialect.MapError(err))
	}
	return s.decode(entity, row)
}

func (s *SQLStore) List(ctx context.Context, entity *metadata.Entity, q ListQuery) ([]Record, int64, error) {
	var total int64
	if err := s.q.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", entity.Table)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", entity.Name, err)
	}

	var orderBy []string
	for _, sf := range q.Sort {
		if !entity.HasField(sf.Column) {
			return nil, 0, fmt.Errorf("sort %s: unknown column %q", entity.Name, sf.Column)
		}
		dir := "ASC"
		if sf.Desc {
			dir = "DESC"
		}
		orderBy = append(orderBy, sf.Column+" "+dir)
	}
	if len(orderBy) == 0 {
		orderBy = []string{entity.PrimaryKey.Field + " ASC"}
	}

	pb := s.Dialect.NewParamBuilder()
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s", entity.Table, strings.Join(orderBy, ", "))
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %s OFFSET %s", pb.Add(q.Limit), pb.Add(q.Offset))
	}

	rows, err := QueryRows(ctx, s.q, query, pb.Params()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", entity.Name, err)
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := s.decode(entity, row)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, nil
}

func (s *SQLStore) ListRelated(ctx context.Context, rel *metadata.Relation, target *metadata.Entity, ownerID any) ([]any, error) {
	pb := s.Dialect.NewParamBuilder()
	var query, col string
	if rel.IsManyToMany() {
		sourceKey, targetKey := rel.JoinKeys()
		col = targetKey
		query = fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s",
			targetKey, rel.JoinTable, sourceKey, pb.Add(ownerID), targetKey)
	} else {
		col = target.PrimaryKey.Field
		query = fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s",
			col, target.Table, rel.BackReference(), pb.Add(ownerID), col)
	}

	rows, err := QueryRows(ctx, s.q, query, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", rel.Name, err)
	}
	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row[col])
	}
	return ids, nil
}

func (s *SQLStore) AddToManyToMany(ctx context.Context, rel *metadata.Relation, ownerID any, targetIDs []any) error {
	if len(targetIDs) == 0 {
		return nil
	}
	sourceKey, targetKey := rel.JoinKeys()

	pb := s.Dialect.NewParamBuilder()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s AND %s",
		targetKey, rel.JoinTable, sourceKey, pb.Add(ownerID), InExpr(targetKey, pb, targetIDs))
	rows, err := QueryRows(ctx, s.q, query, pb.Params()...)
	if err != nil {
		return fmt.Errorf("read %s links: %w", rel.JoinTable, err)
	}
	linked := make(map[string]bool, len(rows))
	for _, row := range rows {
		linked[KeyString(row[targetKey])] = true
	}

	for _, id := range targetIDs {
		k := KeyString(id)
		if linked[k] {
			continue
		}
		linked[k] = true
		ins := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s)",
			rel.JoinTable, sourceKey, targetKey, s.Dialect.Placeholder(1), s.Dialect.Placeholder(2))
		if _, err := Exec(ctx, s.q, ins, ownerID, id); err != nil {
			return fmt.Errorf("link %s %v: %w", rel.Name, id, s.Dialect.MapError(err))
		}
	}
	return nil
}

func (s *SQLStore) SetForeignKey(ctx context.Context, target *metadata.Entity, targetID any, column string, ownerID any) error {
	pb := s.Dialect.NewParamBuilder()
	query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
		target.Table, column, pb.Add(ownerID), target.PrimaryKey.Field, pb.Add(targetID))
	n, err := Exec(ctx, s.q, query, pb.Params()...)
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", target.Name, column, s.Dialect.MapError(err))
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", target.Name, targetID, ErrNotFound)
	}
	return nil
}

// encode converts attribute values into driver arguments, keyed by column.
func (s *SQLStore) encode(entity *metadata.Entity, attrs Record) (map[string]any, error) {
	out := make(map[string]any, len(attrs))
	for name, v := range attrs {
		f := entity.GetField(name)
		if f == nil {
			return nil, fmt.Errorf("%s: unknown column %q", entity.Name, name)
		}
		if v == nil {
			out[name] = nil
			continue
		}
		kind := f.Kind()
		switch {
		case kind.IsComposite():
			enc, err := s.Dialect.EncodeComposite(kind, f.Precision, v)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", entity.Name, name, err)
			}
			out[name] = enc
		case kind == metadata.KindJSON || kind == metadata.KindSet:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", entity.Name, name, err)
			}
			out[name] = string(b)
		default:
			if t, ok := v.(time.Time); ok {
				v = s.Dialect.EncodeTime(t)
			}
			out[name] = v
		}
	}
	return out, nil
}

// decode turns a scanned row into typed values according to the entity's
// field kinds.
func (s *SQLStore) decode(entity *metadata.Entity, row map[string]any) (Record, error) {
	for _, f := range entity.Fields {
		v, ok := row[f.Name]
		if !ok || v == nil {
			continue
		}
		kind := f.Kind()
		switch {
		case kind.IsComposite():
			dec, err := s.Dialect.DecodeComposite(kind, f.Precision, v)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", entity.Name, f.Name, err)
			}
			row[f.Name] = dec
		case kind == metadata.KindJSON || kind == metadata.KindSet:
			if text, ok := v.(string); ok {
				var parsed any
				if err := json.Unmarshal([]byte(text), &parsed); err != nil {
					return nil, fmt.Errorf("%s.%s: %w", entity.Name, f.Name, err)
				}
				row[f.Name] = parsed
			}
		case kind == metadata.KindDecimal || kind == metadata.KindFloat:
			switch n := v.(type) {
			case string:
				if parsed, err := strconv.ParseFloat(n, 64); err == nil {
					row[f.Name] = parsed
				}
			case int64:
				row[f.Name] = float64(n)
			}
		case kind == metadata.KindBoolean && s.Dialect.NeedsBoolFix():
			NormalizeBooleans([]map[string]any{row}, []string{f.Name})
		case kind == metadata.KindDatetime:
			if text, ok := v.(string); ok {
				if t, ok := parseTime(text); ok {
					row[f.Name] = t
				}
			}
		}
	}
	return row, nil
}

func (s *SQLStore) now() any {
	return s.Dialect.EncodeTime(time.Now().UTC())
}

// KeyString renders a key value for comparison across driver types.
func KeyString(v any) string {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
	case []byte:
		return string(n)
	}
	return fmt.Sprint(v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Compile-time checks
var (
	_ Store      = (*SQLStore)(nil)
	_ Transactor = (*SQLStore)(nil)
)
