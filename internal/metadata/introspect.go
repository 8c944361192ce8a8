package metadata

import (
	"fmt"
	"strings"
	"sync"
)

// FieldSpec is the normalized description of one public attribute of an
// entity: a declared column or a relation.
type FieldSpec struct {
	Name      string
	Kind      Kind
	Nullable  bool
	Unique    bool
	Generated bool
	Precision int
	Enum      []EnumMember
	Relation  *Relation // set when Kind == KindRelation
}

// Required is the inverse of Nullable.
func (s FieldSpec) Required() bool {
	return !s.Nullable
}

// Model is the introspected view of an entity.
type Model struct {
	Entity     *Entity
	Fields     []FieldSpec
	Relations  []*Relation
	PrimaryKey string
}

// Field returns the FieldSpec with the given name.
func (m *Model) Field(name string) (FieldSpec, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Relation returns the relation with the given name, or nil.
func (m *Model) Relation(name string) *Relation {
	for _, rel := range m.Relations {
		if rel.Name == name {
			return rel
		}
	}
	return nil
}

// Introspector derives Models from a Registry and caches them until the
// registry is reloaded.
type Introspector struct {
	reg *Registry

	mu         sync.RWMutex
	generation uint64
	cache      map[string]*Model
}

func NewIntrospector(reg *Registry) *Introspector {
	return &Introspector{reg: reg, cache: make(map[string]*Model)}
}

// Registry returns the registry models are derived from.
func (in *Introspector) Registry() *Registry {
	return in.reg
}

// Model returns the normalized metadata for the named entity.
func (in *Introspector) Model(name string) (*Model, error) {
	gen := in.reg.Generation()

	in.mu.RLock()
	if in.generation == gen {
		if m, ok := in.cache[name]; ok {
			in.mu.RUnlock()
			return m, nil
		}
	}
	in.mu.RUnlock()

	entity := in.reg.GetEntity(name)
	if entity == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	m := derive(entity, in.reg.GetRelationsForSource(name))

	in.mu.Lock()
	if in.generation != gen {
		in.cache = make(map[string]*Model)
		in.generation = gen
	}
	// name may alias a reused request buffer.
	in.cache[strings.Clone(name)] = m
	in.mu.Unlock()

	return m, nil
}

func derive(entity *Entity, relations []*Relation) *Model {
	shadow := make(map[string]bool, len(relations))
	for _, rel := range relations {
		shadow[rel.Name+"_id"] = true
		if rel.IsForward() {
			shadow[rel.ForeignKeyColumn()] = true
		}
	}

	m := &Model{
		Entity:     entity,
		Relations:  relations,
		PrimaryKey: entity.PrimaryKey.Field,
	}
	for i := range entity.Fields {
		f := &entity.Fields[i]
		if shadow[f.Name] {
			continue
		}
		m.Fields = append(m.Fields, FieldSpec{
			Name:      f.Name,
			Kind:      f.Kind(),
			Nullable:  f.IsNullable(),
			Unique:    f.Unique,
			Generated: entity.IsGenerated(f),
			Precision: f.Precision,
			Enum:      f.Enum,
		})
	}
	for _, rel := range relations {
		m.Fields = append(m.Fields, FieldSpec{
			Name:     rel.Name,
			Kind:     KindRelation,
			Nullable: rel.IsNullable(),
			Relation: rel,
		})
	}
	return m
}
