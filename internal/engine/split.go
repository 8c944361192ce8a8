package engine

import "modeladmin/internal/metadata"

// Split moves every relation-named key of payload into a separate edge map.
// payload is modified in place and returned as the scalar attributes.
// Values are not inspected, and splitting an already-split payload is a no-op.
func Split(payload map[string]any, relations []*metadata.Relation) (scalars, edges map[string]any) {
	edges = make(map[string]any)
	if payload == nil {
		return map[string]any{}, edges
	}
	for _, rel := range relations {
		if v, ok := payload[rel.Name]; ok {
			edges[rel.Name] = v
			delete(payload, rel.Name)
		}
	}
	return payload, edges
}
