package metadata

type Entity struct {
	Name       string     `json:"name" yaml:"name"`
	Table      string     `json:"table" yaml:"table"`
	PrimaryKey PrimaryKey `json:"primary_key" yaml:"primary_key"`
	NameField  string     `json:"name_field,omitempty" yaml:"name_field,omitempty"` // field used by repr, default "name"
	Repr       string     `json:"repr,omitempty" yaml:"repr,omitempty"`             // optional expr-lang expression
	Fields     []Field    `json:"fields" yaml:"fields"`

	// Menu hints for admin UIs.
	Icon     string `json:"icon,omitempty" yaml:"icon,omitempty"`
	Position int    `json:"order,omitempty" yaml:"order,omitempty"`
	Hidden   bool   `json:"hidden,omitempty" yaml:"hidden,omitempty"`
}

type PrimaryKey struct {
	Field     string `json:"field" yaml:"field"`
	Type      string `json:"type" yaml:"type"` // int, bigint, uuid, ulid, string
	Generated bool   `json:"generated" yaml:"generated"`
}

// GetField returns a pointer to the field with the given name, or nil.
func (e *Entity) GetField(name string) *Field {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i]
		}
	}
	return nil
}

// HasField returns true if the entity has a field with the given name.
func (e *Entity) HasField(name string) bool {
	return e.GetField(name) != nil
}

// DisplayField returns the designated name field, defaulting to "name".
func (e *Entity) DisplayField() string {
	if e.NameField != "" {
		return e.NameField
	}
	return "name"
}

// IsGenerated reports whether the store assigns the field's value.
func (e *Entity) IsGenerated(f *Field) bool {
	if f.Name == e.PrimaryKey.Field && e.PrimaryKey.Generated {
		return true
	}
	return f.IsAuto()
}

// HasIntegerKey reports whether the primary key holds whole numbers.
func (e *Entity) HasIntegerKey() bool {
	switch e.PrimaryKey.Type {
	case "int", "integer", "bigint", "smallint":
		return true
	}
	return false
}
