package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"modeladmin/internal/form"
	"modeladmin/internal/logger"
	"modeladmin/internal/metadata"
	"modeladmin/internal/store"
)

// Representer renders the human-readable label of a record. Compiled repr
// expressions are cached by expression string.
type Representer struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
	log   *logger.Logger
}

func NewRepresenter(log *logger.Logger) *Representer {
	if log == nil {
		log = logger.Nop()
	}
	return &Representer{cache: make(map[string]*vm.Program), log: log}
}

// Repr evaluates the entity's repr expression against the record. Without
// one, or when it fails, the name field is used, then "<entity> #<pk>".
func (r *Representer) Repr(entity *metadata.Entity, rec store.Record) string {
	if entity.Repr != "" {
		s, err := r.eval(entity.Repr, rec)
		if err == nil {
			return s
		}
		r.log.Warn("repr expression failed", "entity", entity.Name, "expression", entity.Repr, "error", err)
	}
	if v, ok := rec[entity.DisplayField()]; ok && v != nil {
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return fmt.Sprintf("%s #%v", entity.Name, rec[entity.PrimaryKey.Field])
}

func (r *Representer) eval(expression string, rec store.Record) (string, error) {
	r.mu.RLock()
	prog, ok := r.cache[expression]
	r.mu.RUnlock()
	if !ok {
		var err error
		prog, err = expr.Compile(expression)
		if err != nil {
			return "", fmt.Errorf("compile repr: %w", err)
		}
		r.mu.Lock()
		r.cache[expression] = prog
		r.mu.Unlock()
	}

	result, err := expr.Run(prog, map[string]any(rec))
	if err != nil {
		return "", fmt.Errorf("evaluate repr: %w", err)
	}
	if result == nil {
		return "", fmt.Errorf("repr evaluated to nil")
	}
	return fmt.Sprint(result), nil
}

// LoadOptions builds the select options of every relation of m from the
// current contents of each target entity, labelled with Repr.
func (r *Representer) LoadOptions(ctx context.Context, s store.Store, reg *metadata.Registry, m *metadata.Model) (form.OptionsMap, error) {
	byTarget := make(map[string][]form.Option)
	out := make(form.OptionsMap, len(m.Relations))
	for _, rel := range m.Relations {
		if opts, ok := byTarget[rel.Target]; ok {
			out[rel.Name] = opts
			continue
		}
		target := reg.GetEntity(rel.Target)
		if target == nil {
			return nil, fmt.Errorf("%w: %s", metadata.ErrUnknownEntity, rel.Target)
		}
		rows, _, err := s.List(ctx, target, store.ListQuery{})
		if err != nil {
			return nil, fmt.Errorf("load %s options: %w", rel.Name, err)
		}
		opts := make([]form.Option, 0, len(rows))
		for _, row := range rows {
			opts = append(opts, form.Option{Value: row[target.PrimaryKey.Field], Label: r.Repr(target, row)})
		}
		byTarget[rel.Target] = opts
		out[rel.Name] = opts
	}
	return out, nil
}

// Describe classifies every field of the named entity, loading relation
// options from the store first.
func (e *Engine) Describe(ctx context.Context, entityName string) (*metadata.Model, map[string]form.InputDescriptor, error) {
	m, err := e.intro.Model(entityName)
	if err != nil {
		return nil, nil, err
	}
	opts, err := e.repr.LoadOptions(ctx, e.store, e.intro.Registry(), m)
	if err != nil {
		return nil, nil, err
	}
	descriptors, err := form.ClassifyAll(m, opts)
	if err != nil {
		return nil, nil, err
	}
	return m, descriptors, nil
}

// RelationPack is the compact form of a related record: its id, entity name
// and label.
type RelationPack struct {
	ID   any    `json:"id"`
	Type string `json:"type"`
	Repr string `json:"repr"`
}

// packer builds RelationPacks, fetching each related record once.
type packer struct {
	engine *Engine
	store  store.Store
	seen   map[string]RelationPack
}

func (e *Engine) newPacker(s store.Store) *packer {
	return &packer{engine: e, store: s, seen: make(map[string]RelationPack)}
}

// Expand replaces the relation ids of a materialized record with
// RelationPacks. Many-valued relations become lists of packs and an empty
// single relation becomes "".
func (e *Engine) Expand(ctx context.Context, m *metadata.Model, rec store.Record) (store.Record, error) {
	return e.newPacker(e.store).expand(ctx, m, rec)
}

func (p *packer) expand(ctx context.Context, m *metadata.Model, rec store.Record) (store.Record, error) {
	reg := p.engine.intro.Registry()
	for _, rel := range m.Relations {
		target := reg.GetEntity(rel.Target)
		if target == nil {
			return nil, fmt.Errorf("%w: %s", metadata.ErrUnknownEntity, rel.Target)
		}

		if rel.Cardinality().IsMulti() {
			ids, _ := rec[rel.Name].([]any)
			packs := make([]RelationPack, 0, len(ids))
			for _, id := range ids {
				pack, err := p.pack(ctx, target, id)
				if err != nil {
					return nil, err
				}
				packs = append(packs, pack)
			}
			rec[rel.Name] = packs
			continue
		}

		id := rec[rel.Name]
		if id == nil {
			rec[rel.Name] = ""
			continue
		}
		pack, err := p.pack(ctx, target, id)
		if err != nil {
			return nil, err
		}
		rec[rel.Name] = pack
	}
	return rec, nil
}

func (p *packer) pack(ctx context.Context, target *metadata.Entity, id any) (RelationPack, error) {
	key := target.Name + "\x00" + store.KeyString(id)
	if pack, ok := p.seen[key]; ok {
		return pack, nil
	}

	row, err := p.store.Get(ctx, target, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Dangling references still render with the fallback label.
		row = store.Record{target.PrimaryKey.Field: id}
	case err != nil:
		return RelationPack{}, fmt.Errorf("load %s %v: %w", target.Name, id, err)
	}

	pack := RelationPack{ID: id, Type: target.Name, Repr: p.engine.repr.Repr(target, row)}
	p.seen[key] = pack
	return pack, nil
}
