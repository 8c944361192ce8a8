package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"modeladmin/internal/metadata"
	"modeladmin/internal/store"
)

// memStore is an in-memory store.Store used to observe and break individual
// store calls.
type memStore struct {
	mu     sync.Mutex
	rows   map[string]map[string]store.Record
	order  map[string][]string
	joins  map[string]map[string][]any
	nextID map[string]int64

	failSetForeignKey func(target string, id any) error
	failAddManyToMany func(rel string) error
}

func newMemStore() *memStore {
	return &memStore{
		rows:   make(map[string]map[string]store.Record),
		order:  make(map[string][]string),
		joins:  make(map[string]map[string][]any),
		nextID: make(map[string]int64),
	}
}

func copyRecord(r store.Record) store.Record {
	out := make(store.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (s *memStore) Get(_ context.Context, entity *metadata.Entity, id any) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[entity.Name][store.KeyString(id)]
	if !ok {
		return nil, fmt.Errorf("%s %v: %w", entity.Name, id, store.ErrNotFound)
	}
	return copyRecord(rec), nil
}

func (s *memStore) Create(_ context.Context, entity *metadata.Entity, attrs store.Record) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := copyRecord(attrs)
	for _, f := range entity.Fields {
		if _, ok := rec[f.Name]; !ok {
			rec[f.Name] = f.Default
		}
	}
	pk := entity.PrimaryKey.Field
	if key, ok := store.NewKey(entity.PrimaryKey); ok {
		rec[pk] = key
	} else if entity.HasIntegerKey() && entity.PrimaryKey.Generated {
		s.nextID[entity.Name]++
		rec[pk] = s.nextID[entity.Name]
	}
	if s.rows[entity.Name] == nil {
		s.rows[entity.Name] = make(map[string]store.Record)
	}
	k := store.KeyString(rec[pk])
	s.rows[entity.Name][k] = rec
	s.order[entity.Name] = append(s.order[entity.Name], k)
	return copyRecord(rec), nil
}

func (s *memStore) Update(_ context.Context, entity *metadata.Entity, id any, attrs store.Record) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[entity.Name][store.KeyString(id)]
	if !ok {
		return nil, fmt.Errorf("%s %v: %w", entity.Name, id, store.ErrNotFound)
	}
	for k, v := range attrs {
		rec[k] = v
	}
	return copyRecord(rec), nil
}

func (s *memStore) List(_ context.Context, entity *metadata.Entity, q store.ListQuery) ([]store.Record, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.order[entity.Name]
	out := make([]store.Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, copyRecord(s.rows[entity.Name][k]))
	}
	total := int64(len(out))
	if q.Limit > 0 {
		start := min(q.Offset, len(out))
		end := min(start+q.Limit, len(out))
		out = out[start:end]
	}
	return out, total, nil
}

func (s *memStore) ListRelated(_ context.Context, rel *metadata.Relation, target *metadata.Entity, ownerID any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := store.KeyString(ownerID)
	if rel.IsManyToMany() {
		ids := append([]any(nil), s.joins[rel.JoinTable][owner]...)
		return ids, nil
	}
	var ids []any
	for _, k := range s.order[target.Name] {
		rec := s.rows[target.Name][k]
		if v := rec[rel.BackReference()]; v != nil && store.KeyString(v) == owner {
			ids = append(ids, rec[target.PrimaryKey.Field])
		}
	}
	sort.Slice(ids, func(i, j int) bool { return store.KeyString(ids[i]) < store.KeyString(ids[j]) })
	return ids, nil
}

func (s *memStore) AddToManyToMany(_ context.Context, rel *metadata.Relation, ownerID any, targetIDs []any) error {
	if s.failAddManyToMany != nil {
		if err := s.failAddManyToMany(rel.Name); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joins[rel.JoinTable] == nil {
		s.joins[rel.JoinTable] = make(map[string][]any)
	}
	owner := store.KeyString(ownerID)
	have := make(map[string]bool)
	for _, id := range s.joins[rel.JoinTable][owner] {
		have[store.KeyString(id)] = true
	}
	for _, id := range targetIDs {
		if have[store.KeyString(id)] {
			continue
		}
		have[store.KeyString(id)] = true
		s.joins[rel.JoinTable][owner] = append(s.joins[rel.JoinTable][owner], id)
	}
	return nil
}

func (s *memStore) SetForeignKey(_ context.Context, target *metadata.Entity, targetID any, column string, ownerID any) error {
	if s.failSetForeignKey != nil {
		if err := s.failSetForeignKey(target.Name, targetID); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[target.Name][store.KeyString(targetID)]
	if !ok {
		return fmt.Errorf("%s %v: %w", target.Name, targetID, store.ErrNotFound)
	}
	rec[column] = ownerID
	return nil
}

var _ store.Store = (*memStore)(nil)

func orderDefinitions() ([]*metadata.Entity, []*metadata.Relation) {
	intKey := metadata.PrimaryKey{Field: "id", Type: "int", Generated: true}
	entities := []*metadata.Entity{
		{
			Name: "customer", Table: "customers", PrimaryKey: intKey,
			Fields: []metadata.Field{
				{Name: "id", Type: "int"},
				{Name: "name", Type: "string", Required: true},
			},
		},
		{
			Name: "order", Table: "orders", PrimaryKey: intKey,
			Repr: `"Order " + string(id)`,
			Fields: []metadata.Field{
				{Name: "id", Type: "int"},
				{Name: "total", Type: "decimal", Precision: 2, Required: true},
				{Name: "status", Type: "enum", Enum: []metadata.EnumMember{{Name: "open", Value: "open"}, {Name: "closed", Value: "closed"}}},
				{Name: "span", Type: "range"},
				{Name: "location", Type: "point", Precision: 3},
				{Name: "customer_id", Type: "int", Nullable: true},
				{Name: "created_at", Type: "timestamp", Auto: "create"},
			},
		},
		{
			Name: "item", Table: "items", PrimaryKey: intKey,
			Fields: []metadata.Field{
				{Name: "id", Type: "int"},
				{Name: "name", Type: "string"},
				{Name: "order_id", Type: "int", Nullable: true},
			},
		},
		{
			Name: "tag", Table: "tags", PrimaryKey: intKey, NameField: "label",
			Fields: []metadata.Field{
				{Name: "id", Type: "int"},
				{Name: "label", Type: "string"},
			},
		},
		{
			Name: "invoice", Table: "invoices", PrimaryKey: intKey,
			Fields: []metadata.Field{
				{Name: "id", Type: "int"},
				{Name: "number", Type: "string"},
				{Name: "order_id", Type: "int", Nullable: true},
			},
		},
	}
	relations := []*metadata.Relation{
		{Name: "customer", Type: "many_to_one", Source: "order", Target: "customer", Nullable: true},
		{Name: "items", Type: "reverse_one_to_many", Source: "order", Target: "item", ForeignKey: "order_id"},
		{Name: "tags", Type: "many_to_many", Source: "order", Target: "tag", JoinTable: "order_tags"},
		{Name: "invoice", Type: "reverse_one_to_one", Source: "order", Target: "invoice", ForeignKey: "order_id"},
	}
	return entities, relations
}

func newTestEngine(opts ...Option) (*Engine, *memStore) {
	entities, relations := orderDefinitions()
	reg := metadata.NewRegistry()
	reg.Load(entities, relations)
	s := newMemStore()
	return New(s, metadata.NewIntrospector(reg), opts...), s
}

// seed creates one record directly in the store.
func seed(s *memStore, e *Engine, entity string, attrs store.Record) store.Record {
	rec, err := s.Create(context.Background(), e.intro.Registry().GetEntity(entity), attrs)
	if err != nil {
		panic(err)
	}
	return rec
}
