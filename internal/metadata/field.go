package metadata

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Field struct {
	Name      string       `json:"name" yaml:"name"`
	Type      string       `json:"type" yaml:"type"`
	Required  bool         `json:"required,omitempty" yaml:"required,omitempty"`
	Unique    bool         `json:"unique,omitempty" yaml:"unique,omitempty"`
	Default   any          `json:"default,omitempty" yaml:"default,omitempty"`
	Nullable  bool         `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Enum      []EnumMember `json:"enum,omitempty" yaml:"enum,omitempty"`
	Precision int          `json:"precision,omitempty" yaml:"precision,omitempty"`
	Auto      string       `json:"auto,omitempty" yaml:"auto,omitempty"` // "create" or "update"
}

// EnumMember is one declared value of an enum, int_enum or set field.
// A bare string in a definition is shorthand for {name: s, value: s}.
type EnumMember struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

func (m *EnumMember) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		m.Name, m.Value = s, s
		return nil
	}
	type plain EnumMember
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("enum member: %w", err)
	}
	*m = EnumMember(p)
	if m.Value == nil {
		m.Value = m.Name
	}
	return nil
}

func (m *EnumMember) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		m.Name, m.Value = node.Value, node.Value
		return nil
	}
	type plain EnumMember
	var p plain
	if err := node.Decode(&p); err != nil {
		return fmt.Errorf("enum member: %w", err)
	}
	*m = EnumMember(p)
	if m.Value == nil {
		m.Value = m.Name
	}
	return nil
}

// Label is the human-readable form of an int_enum or set member name.
func (m EnumMember) Label() string {
	return strings.ReplaceAll(m.Name, "_", " ")
}

// Kind returns the closed kind for the declared type name.
func (f Field) Kind() Kind {
	return ParseKind(f.Type)
}

// IsAuto returns true if the field is auto-managed by the engine.
func (f Field) IsAuto() bool {
	return f.Auto == "create" || f.Auto == "update"
}

// IsNullable reports whether the column may hold NULL. A field is only
// non-nullable when it is required and not explicitly nullable.
func (f Field) IsNullable() bool {
	return f.Nullable || !f.Required
}
