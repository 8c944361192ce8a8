package form

import "errors"

var (
	ErrUnclassifiableField = errors.New("unclassifiable field")
	ErrOptionsNotLoaded    = errors.New("relation options not loaded")
)

// InputKind tags how a field is rendered.
type InputKind string

const (
	InputText      InputKind = "text"
	InputMultiline InputKind = "multiline"
	InputNumber    InputKind = "number"
	InputCheckbox  InputKind = "checkbox"
	InputSelect    InputKind = "select"
	InputComposite InputKind = "composite"
	InputList      InputKind = "list"
)

// InputDescriptor describes how one field should be rendered and validated.
// Base describes the component type of composite and list inputs.
type InputDescriptor struct {
	Input       InputKind        `json:"input"`
	Type        string           `json:"type,omitempty"`
	Step        string           `json:"step,omitempty"`
	Rows        string           `json:"rows,omitempty"`
	Options     []Option         `json:"options,omitempty"`
	Multiple    bool             `json:"multiple,omitempty"`
	Required    bool             `json:"required"`
	Auto        bool             `json:"auto,omitempty"`
	SourceField string           `json:"source_field,omitempty"`
	Labels      []string         `json:"labels,omitempty"`
	Base        *InputDescriptor `json:"base,omitempty"`
}

// Option is one choice of a select input.
type Option struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}

// EmptyOption is prepended to the options of nullable relations.
var EmptyOption = Option{Value: "", Label: "Empty"}

// OptionsProvider supplies the repr options for a relation field. ok is false
// when the options for that relation have not been loaded.
type OptionsProvider interface {
	Options(relation string) (opts []Option, ok bool)
}

// OptionsMap is an OptionsProvider keyed by relation name.
type OptionsMap map[string][]Option

func (m OptionsMap) Options(relation string) ([]Option, bool) {
	opts, ok := m[relation]
	return opts, ok
}
