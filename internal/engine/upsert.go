package engine

import (
	"context"
	"errors"
	"fmt"

	"modeladmin/internal/logger"
	"modeladmin/internal/metadata"
	"modeladmin/internal/store"
)

// Engine applies relation-aware upserts against a Store.
type Engine struct {
	store  store.Store
	intro  *metadata.Introspector
	atomic bool
	repr   *Representer
	log    *logger.Logger
}

type Option func(*Engine)

// WithAtomic wraps the scalar write and every relation bucket in one
// transaction when the store implements store.Transactor.
func WithAtomic(atomic bool) Option {
	return func(e *Engine) { e.atomic = atomic }
}

func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func New(s store.Store, intro *metadata.Introspector, opts ...Option) *Engine {
	e := &Engine{store: s, intro: intro, log: logger.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	e.repr = NewRepresenter(e.log)
	return e
}

// Introspector returns the metadata source the engine plans against.
func (e *Engine) Introspector() *metadata.Introspector {
	return e.intro
}

func (e *Engine) Representer() *Representer {
	return e.repr
}

// Upsert creates a record (existingID nil) or updates an existing one from a
// flat payload mixing attributes and relation edges, then returns the stored
// record with its relation fields populated.
//
// Outside atomic mode a failure after the scalar write is reported as a
// *RelationError; the record and the relations listed in its Applied field
// stay committed.
func (e *Engine) Upsert(ctx context.Context, entityName string, payload map[string]any, existingID any) (store.Record, error) {
	m, err := e.intro.Model(entityName)
	if err != nil {
		return nil, err
	}

	var id any
	if existingID != nil {
		var ok bool
		if id, ok = coerceKey(m.Entity, existingID); !ok {
			return nil, fmt.Errorf("%s %v: %w", m.Entity.Name, existingID, store.ErrNotFound)
		}
	}

	plan, details := PlanUpsert(m, e.intro.Registry(), payload, id)
	if len(details) > 0 {
		return nil, ValidationError(details)
	}

	if e.atomic {
		if tx, ok := e.store.(store.Transactor); ok {
			return e.applyInTx(ctx, tx, plan)
		}
		e.log.Warn("store has no transactions, upsert is not atomic", "entity", m.Entity.Name)
	}
	return e.apply(ctx, e.store, plan)
}

func (e *Engine) applyInTx(ctx context.Context, tx store.Transactor, plan *UpsertPlan) (store.Record, error) {
	var rec store.Record
	err := tx.InTx(ctx, func(s store.Store) error {
		var err error
		rec, err = e.apply(ctx, s, plan)
		return err
	})
	if err != nil {
		// Everything was rolled back, so nothing is partially applied.
		var relErr *RelationError
		if errors.As(err, &relErr) {
			return nil, fmt.Errorf("%s.%s: %w", plan.Model.Entity.Name, relErr.Relation, relErr.Err)
		}
		return nil, err
	}
	return rec, nil
}

func (e *Engine) apply(ctx context.Context, s store.Store, plan *UpsertPlan) (store.Record, error) {
	entity := plan.Model.Entity

	var rec store.Record
	var err error
	if plan.IsCreate() {
		rec, err = s.Create(ctx, entity, plan.Attrs)
	} else {
		rec, err = s.Update(ctx, entity, plan.ID, plan.Attrs)
	}
	if err != nil {
		return nil, err
	}
	ownerID := rec[entity.PrimaryKey.Field]

	writes := plan.Writes()
	states := make(map[string]RelationState, len(writes))
	for _, w := range writes {
		states[w.Relation.Name] = Unapplied
	}
	var applied []string
	for _, w := range writes {
		name := w.Relation.Name
		states[name] = Applying
		failedID, err := e.applyRelation(ctx, s, w, ownerID)
		if err != nil {
			states[name] = Failed
			e.log.Warn("relation write failed",
				"entity", entity.Name, "id", ownerID, "relation", name, "applied", applied, "error", err)
			return nil, &RelationError{
				Relation:    name,
				Cardinality: w.Relation.Cardinality(),
				ID:          failedID,
				OwnerID:     ownerID,
				Applied:     applied,
				States:      states,
				Err:         err,
			}
		}
		states[name] = Applied
		applied = append(applied, name)
		e.log.Debug("relation applied", "entity", entity.Name, "id", ownerID, "relation", name, "count", len(w.IDs))
	}

	rec, err = s.Get(ctx, entity, ownerID)
	if err != nil {
		return nil, fmt.Errorf("refresh %s %v: %w", entity.Name, ownerID, err)
	}
	return Materialize(ctx, s, e.intro.Registry(), plan.Model, rec)
}

// applyRelation resolves every target id before writing anything for the
// relation. It returns the offending id when a target is missing.
func (e *Engine) applyRelation(ctx context.Context, s store.Store, w RelationWrite, ownerID any) (any, error) {
	for _, id := range w.IDs {
		if _, err := s.Get(ctx, w.Target, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return id, fmt.Errorf("%s %v: %w", w.Target.Name, id, ErrRelationTargetNotFound)
			}
			return id, err
		}
	}

	if w.Relation.IsManyToMany() {
		return nil, s.AddToManyToMany(ctx, w.Relation, ownerID, w.IDs)
	}

	column := w.Relation.BackReference()
	for _, id := range w.IDs {
		if err := s.SetForeignKey(ctx, w.Target, id, column, ownerID); err != nil {
			return id, err
		}
	}
	return nil, nil
}

// Materialize replaces foreign-key shadow columns of rec with relation-named
// values: the FK value for forward relations, an id list for many-valued
// relations and the single id (or nil) for reverse one-to-one.
func Materialize(ctx context.Context, s store.Store, reg *metadata.Registry, m *metadata.Model, rec store.Record) (store.Record, error) {
	ownerID := rec[m.PrimaryKey]
	for _, rel := range m.Relations {
		if rel.IsForward() {
			col := rel.ForeignKeyColumn()
			rec[rel.Name] = rec[col]
			if col != rel.Name {
				delete(rec, col)
			}
			continue
		}

		target := reg.GetEntity(rel.Target)
		if target == nil {
			return nil, fmt.Errorf("%w: %s", metadata.ErrUnknownEntity, rel.Target)
		}
		ids, err := s.ListRelated(ctx, rel, target, ownerID)
		if err != nil {
			return nil, fmt.Errorf("load %s.%s: %w", m.Entity.Name, rel.Name, err)
		}
		if rel.Cardinality().IsMulti() {
			if ids == nil {
				ids = []any{}
			}
			rec[rel.Name] = ids
			continue
		}
		if len(ids) > 0 {
			rec[rel.Name] = ids[0]
		} else {
			rec[rel.Name] = nil
		}
	}
	return rec, nil
}
