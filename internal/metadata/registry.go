package metadata

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownEntity is returned when an entity has no registered metadata.
var ErrUnknownEntity = errors.New("unknown entity")

// ErrInvalidDefinition is returned when entity or relation definitions are inconsistent.
var ErrInvalidDefinition = errors.New("invalid definition")

type Registry struct {
	mu                sync.RWMutex
	generation        uint64
	order             []string
	entities          map[string]*Entity
	relationsBySource map[string][]*Relation // keyed by source entity name
}

func NewRegistry() *Registry {
	return &Registry{
		entities:          make(map[string]*Entity),
		relationsBySource: make(map[string][]*Relation),
	}
}

// GetEntity returns the entity with the given name, or nil.
func (r *Registry) GetEntity(name string) *Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entities[name]
}

// AllEntities returns all registered entities in load order.
func (r *Registry) AllEntities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entities := make([]*Entity, 0, len(r.order))
	for _, name := range r.order {
		entities = append(entities, r.entities[name])
	}
	return entities
}

// GetRelationsForSource returns all relations declared on the given entity,
// in declaration order.
func (r *Registry) GetRelationsForSource(entityName string) []*Relation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.relationsBySource[entityName]
}

// AllRelations returns every relation grouped by source entity in load order.
func (r *Registry) AllRelations() []*Relation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var relations []*Relation
	for _, name := range r.order {
		relations = append(relations, r.relationsBySource[name]...)
	}
	return relations
}

// Generation increments on every Load; caches key off it.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Load replaces all entities and relations in the registry.
// Called during startup and after definitions change.
func (r *Registry) Load(entities []*Entity, relations []*Relation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation++
	r.order = make([]string, 0, len(entities))
	r.entities = make(map[string]*Entity, len(entities))
	for _, e := range entities {
		if _, dup := r.entities[e.Name]; !dup {
			r.order = append(r.order, e.Name)
		}
		r.entities[e.Name] = e
	}

	r.relationsBySource = make(map[string][]*Relation)
	for _, rel := range relations {
		r.relationsBySource[rel.Source] = append(r.relationsBySource[rel.Source], rel)
	}
}

// Validate checks definitions before they are loaded: names are unique per
// entity, relation cardinalities are known, and both ends exist.
func Validate(entities []*Entity, relations []*Relation) error {
	byName := make(map[string]*Entity, len(entities))
	for _, e := range entities {
		if e.Name == "" || e.Table == "" {
			return fmt.Errorf("%w: entity %q needs a name and a table", ErrInvalidDefinition, e.Name)
		}
		if e.PrimaryKey.Field == "" {
			return fmt.Errorf("%w: entity %s has no primary key", ErrInvalidDefinition, e.Name)
		}
		seen := make(map[string]bool, len(e.Fields))
		for _, f := range e.Fields {
			if seen[f.Name] {
				return fmt.Errorf("%w: duplicate field %s.%s", ErrInvalidDefinition, e.Name, f.Name)
			}
			seen[f.Name] = true
		}
		if !seen[e.PrimaryKey.Field] {
			return fmt.Errorf("%w: primary key %s.%s is not a declared field", ErrInvalidDefinition, e.Name, e.PrimaryKey.Field)
		}
		byName[e.Name] = e
	}

	for _, rel := range relations {
		if rel.Cardinality() == CardinalityUnknown {
			return fmt.Errorf("%w: relation %s has unknown type %q", ErrInvalidDefinition, rel.Name, rel.Type)
		}
		source, target := byName[rel.Source], byName[rel.Target]
		if source == nil || target == nil {
			return fmt.Errorf("%w: relation %s links unknown entities %s -> %s", ErrInvalidDefinition, rel.Name, rel.Source, rel.Target)
		}
		if source.HasField(rel.Name) {
			return fmt.Errorf("%w: relation %s collides with field %s.%s", ErrInvalidDefinition, rel.Name, source.Name, rel.Name)
		}
		switch {
		case rel.IsForward():
			if !source.HasField(rel.ForeignKeyColumn()) {
				return fmt.Errorf("%w: relation %s needs column %s.%s", ErrInvalidDefinition, rel.Name, source.Name, rel.ForeignKeyColumn())
			}
		case rel.IsManyToMany():
			if rel.JoinTable == "" {
				return fmt.Errorf("%w: relation %s needs a join_table", ErrInvalidDefinition, rel.Name)
			}
		default:
			if !target.HasField(rel.BackReference()) {
				return fmt.Errorf("%w: relation %s needs column %s.%s", ErrInvalidDefinition, rel.Name, target.Name, rel.BackReference())
			}
		}
	}
	return nil
}
