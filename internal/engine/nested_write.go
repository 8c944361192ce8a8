package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"modeladmin/internal/composite"
	"modeladmin/internal/metadata"
	"modeladmin/internal/store"
)

// RelationWrite is one relation edge of an upsert, resolved to target ids.
type RelationWrite struct {
	Relation *metadata.Relation
	Target   *metadata.Entity
	IDs      []any
}

// UpsertPlan describes the full set of operations for one upsert.
type UpsertPlan struct {
	Model *metadata.Model
	ID    any // nil for create
	Attrs store.Record

	ManyToMany  []RelationWrite
	ReverseMany []RelationWrite
	ReverseOne  []RelationWrite
}

// IsCreate reports whether the plan inserts a new record.
func (p *UpsertPlan) IsCreate() bool {
	return p.ID == nil
}

// Writes returns the relation writes in the order they are applied.
func (p *UpsertPlan) Writes() []RelationWrite {
	out := make([]RelationWrite, 0, len(p.ManyToMany)+len(p.ReverseMany)+len(p.ReverseOne))
	out = append(out, p.ManyToMany...)
	out = append(out, p.ReverseMany...)
	return append(out, p.ReverseOne...)
}

// PlanUpsert builds an UpsertPlan from the payload without touching the
// store. The payload is split in place. Every problem found is returned as
// an ErrorDetail; a nil plan is returned when there are any.
func PlanUpsert(m *metadata.Model, reg *metadata.Registry, payload map[string]any, existingID any) (*UpsertPlan, []ErrorDetail) {
	entity := m.Entity
	scalars, edges := Split(payload, m.Relations)

	plan := &UpsertPlan{Model: m, ID: existingID, Attrs: store.Record{}}
	var errs []ErrorDetail

	for _, key := range sortedKeys(scalars) {
		f := entity.GetField(key)
		if f == nil {
			errs = append(errs, ErrorDetail{
				Field:   key,
				Rule:    "unknown",
				Message: fmt.Sprintf("Unknown field or relation: %s", key),
			})
			continue
		}
		if entity.IsGenerated(f) {
			continue
		}
		v, detail := coerceField(f, scalars[key])
		if detail != nil {
			errs = append(errs, *detail)
			continue
		}
		plan.Attrs[key] = v
	}

	for _, rel := range m.Relations {
		raw, ok := edges[rel.Name]
		if !ok {
			continue
		}
		target := reg.GetEntity(rel.Target)
		if target == nil {
			errs = append(errs, ErrorDetail{Field: rel.Name, Rule: "relation", Message: fmt.Sprintf("Unknown target entity: %s", rel.Target)})
			continue
		}

		if rel.IsForward() {
			if isEmptyEdge(raw) {
				plan.Attrs[rel.ForeignKeyColumn()] = nil
				continue
			}
			id, ok := coerceKey(target, raw)
			if !ok {
				errs = append(errs, invalidID(rel, raw))
				continue
			}
			plan.Attrs[rel.ForeignKeyColumn()] = id
			continue
		}

		if rel.Cardinality().IsMulti() {
			if raw == nil {
				continue
			}
			list, ok := toList(raw)
			if !ok {
				errs = append(errs, ErrorDetail{Field: rel.Name, Rule: "type", Message: fmt.Sprintf("%s expects a list of ids", rel.Name)})
				continue
			}
			w := RelationWrite{Relation: rel, Target: target}
			bad := false
			for _, item := range list {
				id, ok := coerceKey(target, item)
				if !ok {
					errs = append(errs, invalidID(rel, item))
					bad = true
					continue
				}
				w.IDs = append(w.IDs, id)
			}
			if bad || len(w.IDs) == 0 {
				continue
			}
			if rel.IsManyToMany() {
				plan.ManyToMany = append(plan.ManyToMany, w)
			} else {
				plan.ReverseMany = append(plan.ReverseMany, w)
			}
			continue
		}

		// reverse one-to-one
		if isEmptyEdge(raw) {
			continue
		}
		if _, isList := toList(raw); isList {
			errs = append(errs, ErrorDetail{Field: rel.Name, Rule: "type", Message: fmt.Sprintf("%s expects a single id", rel.Name)})
			continue
		}
		id, ok := coerceKey(target, raw)
		if !ok {
			errs = append(errs, invalidID(rel, raw))
			continue
		}
		plan.ReverseOne = append(plan.ReverseOne, RelationWrite{Relation: rel, Target: target, IDs: []any{id}})
	}

	errs = append(errs, checkRequired(m, plan)...)
	if len(errs) > 0 {
		return nil, errs
	}
	return plan, nil
}

// checkRequired reports non-nullable fields and forward relations that are
// missing on create or explicitly cleared on update.
func checkRequired(m *metadata.Model, plan *UpsertPlan) []ErrorDetail {
	var errs []ErrorDetail
	shadow := make(map[string]bool)
	for _, rel := range m.Relations {
		if !rel.IsForward() {
			continue
		}
		col := rel.ForeignKeyColumn()
		shadow[col] = true
		if rel.IsNullable() {
			continue
		}
		if missing(plan, col) {
			errs = append(errs, ErrorDetail{Field: rel.Name, Rule: "required", Message: fmt.Sprintf("%s is required", rel.Name)})
		}
	}

	entity := m.Entity
	for i := range entity.Fields {
		f := &entity.Fields[i]
		if shadow[f.Name] || f.IsNullable() || entity.IsGenerated(f) || f.Default != nil {
			continue
		}
		if missing(plan, f.Name) {
			errs = append(errs, ErrorDetail{Field: f.Name, Rule: "required", Message: fmt.Sprintf("%s is required", f.Name)})
		}
	}
	return errs
}

func missing(plan *UpsertPlan, col string) bool {
	v, ok := plan.Attrs[col]
	if plan.IsCreate() {
		return !ok || v == nil
	}
	return ok && v == nil
}

// coerceField validates one scalar value against its field definition.
func coerceField(f *metadata.Field, v any) (any, *ErrorDetail) {
	if v == nil {
		return nil, nil
	}
	switch kind := f.Kind(); kind {
	case metadata.KindPoint, metadata.KindRange:
		codec := composite.PointCodec(f.Precision)
		if kind == metadata.KindRange {
			codec = composite.RangeCodec(f.Precision)
		}
		t, err := codec.Parse(v)
		if err != nil {
			return nil, compositeDetail(f.Name, err)
		}
		return t, nil
	case metadata.KindPolygon:
		ts, err := composite.NewPolygonCodec(f.Precision).Parse(v)
		if err != nil {
			return nil, compositeDetail(f.Name, err)
		}
		return ts, nil
	case metadata.KindEnum, metadata.KindIntEnum:
		if !isMember(f.Enum, v) {
			return nil, &ErrorDetail{Field: f.Name, Rule: "enum", Message: fmt.Sprintf("%s must be one of %s", f.Name, memberNames(f.Enum))}
		}
		return v, nil
	case metadata.KindSet:
		list, ok := toList(v)
		if !ok {
			return nil, &ErrorDetail{Field: f.Name, Rule: "type", Message: fmt.Sprintf("%s expects a list", f.Name)}
		}
		for _, item := range list {
			if !isMember(f.Enum, item) {
				return nil, &ErrorDetail{Field: f.Name, Rule: "enum", Message: fmt.Sprintf("%s must be a subset of %s", f.Name, memberNames(f.Enum))}
			}
		}
		return list, nil
	}
	return v, nil
}

func compositeDetail(field string, err error) *ErrorDetail {
	rule := "composite"
	switch {
	case errors.Is(err, composite.ErrCompositeArity):
		rule = "arity"
	case errors.Is(err, composite.ErrCompositePrecision):
		rule = "precision"
	case errors.Is(err, composite.ErrCompositeOrder):
		rule = "order"
	case errors.Is(err, composite.ErrCompositeType):
		rule = "type"
	}
	return &ErrorDetail{Field: field, Rule: rule, Message: fmt.Sprintf("%s: %v", field, err)}
}

func isMember(members []metadata.EnumMember, v any) bool {
	for _, m := range members {
		if store.KeyString(m.Value) == store.KeyString(v) {
			return true
		}
	}
	return false
}

func memberNames(members []metadata.EnumMember) string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = fmt.Sprint(m.Value)
	}
	return strings.Join(names, ", ")
}

func invalidID(rel *metadata.Relation, v any) ErrorDetail {
	return ErrorDetail{Field: rel.Name, Rule: "id", Message: fmt.Sprintf("Invalid %s id: %v", rel.Target, v)}
}

// isEmptyEdge treats null and the empty select option as "no target".
func isEmptyEdge(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	case []int64:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

// coerceKey converts a payload or URL id into the target's key type.
// Integer keys accept whole JSON numbers and numeric strings.
func coerceKey(target *metadata.Entity, v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	if target.HasIntegerKey() {
		switch n := v.(type) {
		case int:
			return int64(n), true
		case int32:
			return int64(n), true
		case int64:
			return n, true
		case float64:
			if n != math.Trunc(n) || n < math.MinInt64 || n >= -math.MinInt64 {
				return nil, false
			}
			return int64(n), true
		case json.Number:
			i, err := n.Int64()
			return i, err == nil
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
			return i, err == nil
		}
		return nil, false
	}
	switch s := v.(type) {
	case string:
		return s, s != ""
	case int, int64, float64, json.Number:
		return store.KeyString(s), true
	}
	return nil, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
