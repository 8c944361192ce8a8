package form

import "modeladmin/internal/metadata"

// Column describes one list column.
type Column struct {
	Name      string `json:"name"`
	Orderable bool   `json:"orderable"`
}

// DescribeColumns lists the model's fields in order. Reverse and
// many-to-many relations are fetch-only and cannot be ordered by.
func DescribeColumns(m *metadata.Model) []Column {
	cols := make([]Column, 0, len(m.Fields))
	for _, f := range m.Fields {
		orderable := true
		if f.Kind == metadata.KindRelation && !f.Relation.IsForward() {
			orderable = false
		}
		cols = append(cols, Column{Name: f.Name, Orderable: orderable})
	}
	return cols
}

// Orderable reports whether the named column can be sorted on.
func Orderable(m *metadata.Model, name string) bool {
	for _, c := range DescribeColumns(m) {
		if c.Name == name {
			return c.Orderable
		}
	}
	return false
}
