package metadata

type Relation struct {
	Name          string `json:"name" yaml:"name"`
	Type          string `json:"type" yaml:"type"` // many_to_one, one_to_one, reverse_one_to_many, reverse_one_to_one, many_to_many
	Source        string `json:"source" yaml:"source"`
	Target        string `json:"target" yaml:"target"`
	SourceField   string `json:"source_field,omitempty" yaml:"source_field,omitempty"` // FK column on the source (forward relations)
	ForeignKey    string `json:"foreign_key,omitempty" yaml:"foreign_key,omitempty"`   // FK column on the target (reverse relations)
	JoinTable     string `json:"join_table,omitempty" yaml:"join_table,omitempty"`
	SourceJoinKey string `json:"source_join_key,omitempty" yaml:"source_join_key,omitempty"`
	TargetJoinKey string `json:"target_join_key,omitempty" yaml:"target_join_key,omitempty"`
	Nullable      bool   `json:"nullable,omitempty" yaml:"nullable,omitempty"`
}

func (r *Relation) Cardinality() Cardinality {
	return ParseCardinality(r.Type)
}

func (r *Relation) IsManyToMany() bool {
	return r.Cardinality() == CardinalityManyToMany
}

// IsForward reports whether the source entity carries the FK column.
func (r *Relation) IsForward() bool {
	return r.Cardinality().IsForward()
}

// ForeignKeyColumn returns the FK column on the source for forward relations,
// defaulting to "<name>_id".
func (r *Relation) ForeignKeyColumn() string {
	if r.SourceField != "" {
		return r.SourceField
	}
	return r.Name + "_id"
}

// BackReference returns the FK column on the target for reverse relations,
// defaulting to "<source>_id".
func (r *Relation) BackReference() string {
	if r.ForeignKey != "" {
		return r.ForeignKey
	}
	return r.Source + "_id"
}

// JoinKeys returns the join table columns, defaulting to "<source>_id" and
// "<target>_id".
func (r *Relation) JoinKeys() (source, target string) {
	source, target = r.SourceJoinKey, r.TargetJoinKey
	if source == "" {
		source = r.Source + "_id"
	}
	if target == "" {
		target = r.Target + "_id"
	}
	return source, target
}

// StorageColumn is the column a relation is joined through: the FK on the
// source, the back-reference on the target, or the target join key.
func (r *Relation) StorageColumn() string {
	switch {
	case r.IsForward():
		return r.ForeignKeyColumn()
	case r.IsManyToMany():
		_, target := r.JoinKeys()
		return target
	default:
		return r.BackReference()
	}
}

// IsNullable reports whether the relation may be left empty. Only forward
// relations can be required; the others store nothing on the owner.
func (r *Relation) IsNullable() bool {
	if r.IsForward() {
		return r.Nullable
	}
	return true
}
