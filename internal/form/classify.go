// Package form classifies entity fields into UI-agnostic input descriptors.
package form

import (
	"fmt"

	"modeladmin/internal/composite"
	"modeladmin/internal/metadata"
)

const (
	integerStep = "1"
	decimalStep = "0.01"
	floatStep   = "0.001"
	textRows    = "2"
)

// Classify builds the descriptor for one field. options holds the repr
// options of the relation target and is only consulted for relation fields;
// a nil slice means the options were never loaded.
func Classify(spec metadata.FieldSpec, options []Option) (InputDescriptor, error) {
	d, err := base(spec, options)
	if err != nil {
		return InputDescriptor{}, err
	}
	d.Required = spec.Required()
	if spec.Generated {
		d.Auto = true
	}
	return d, nil
}

func base(spec metadata.FieldSpec, options []Option) (InputDescriptor, error) {
	switch spec.Kind {
	case metadata.KindString, metadata.KindUUID, metadata.KindJSON:
		return InputDescriptor{Input: InputText}, nil
	case metadata.KindText:
		return InputDescriptor{Input: InputMultiline, Rows: textRows}, nil
	case metadata.KindInt, metadata.KindSmallInt, metadata.KindBigInt:
		return InputDescriptor{Input: InputNumber, Step: integerStep}, nil
	case metadata.KindDecimal:
		return InputDescriptor{Input: InputNumber, Step: stepOr(spec.Precision, decimalStep)}, nil
	case metadata.KindFloat:
		return InputDescriptor{Input: InputNumber, Step: stepOr(spec.Precision, floatStep)}, nil
	case metadata.KindBoolean:
		return InputDescriptor{Input: InputCheckbox}, nil
	case metadata.KindDate:
		return InputDescriptor{Input: InputText, Type: "date"}, nil
	case metadata.KindTime:
		return InputDescriptor{Input: InputText, Type: "time"}, nil
	case metadata.KindDatetime:
		return InputDescriptor{Input: InputText, Type: "datetime"}, nil
	case metadata.KindEnum:
		opts := make([]Option, 0, len(spec.Enum))
		for _, m := range spec.Enum {
			opts = append(opts, Option{Value: m.Value, Label: m.Name})
		}
		return InputDescriptor{Input: InputSelect, Options: opts}, nil
	case metadata.KindIntEnum:
		return InputDescriptor{Input: InputSelect, Options: enumLabels(spec.Enum)}, nil
	case metadata.KindSet:
		return InputDescriptor{Input: InputSelect, Options: enumLabels(spec.Enum), Multiple: true}, nil
	case metadata.KindPoint:
		return compositeDescriptor(composite.PointCodec(spec.Precision)), nil
	case metadata.KindRange:
		return compositeDescriptor(composite.RangeCodec(spec.Precision)), nil
	case metadata.KindPolygon:
		point := compositeDescriptor(composite.PointCodec(spec.Precision))
		return InputDescriptor{Input: InputList, Base: &point}, nil
	case metadata.KindRelation:
		return relationDescriptor(spec, options)
	case metadata.KindUnknown:
		return InputDescriptor{}, fmt.Errorf("%w: %s has an unknown type", ErrUnclassifiableField, spec.Name)
	}
	return InputDescriptor{}, fmt.Errorf("%w: %s has kind %s", ErrUnclassifiableField, spec.Name, spec.Kind)
}

func stepOr(precision int, fallback string) string {
	if s := composite.Step(precision); s != "" {
		return s
	}
	return fallback
}

func enumLabels(members []metadata.EnumMember) []Option {
	opts := make([]Option, 0, len(members))
	for _, m := range members {
		opts = append(opts, Option{Value: m.Value, Label: m.Label()})
	}
	return opts
}

// compositeDescriptor nests a number descriptor for the component type.
// Integer components step by 1; float components step by the declared
// precision, or by the float default when none is declared.
func compositeDescriptor(c composite.Codec) InputDescriptor {
	component := InputDescriptor{Input: InputNumber, Required: true}
	if c.Integer() {
		component.Step = integerStep
	} else {
		component.Step = stepOr(c.Precision(), floatStep)
	}
	return InputDescriptor{
		Input:  InputComposite,
		Step:   c.Step(),
		Labels: c.Labels(),
		Base:   &component,
	}
}

func relationDescriptor(spec metadata.FieldSpec, options []Option) (InputDescriptor, error) {
	rel := spec.Relation
	if rel == nil {
		return InputDescriptor{}, fmt.Errorf("%w: relation field %s has no relation", ErrUnclassifiableField, spec.Name)
	}
	if options == nil {
		return InputDescriptor{}, fmt.Errorf("%w: %s", ErrOptionsNotLoaded, spec.Name)
	}

	opts := make([]Option, 0, len(options)+1)
	if spec.Nullable {
		opts = append(opts, EmptyOption)
	}
	opts = append(opts, options...)

	return InputDescriptor{
		Input:       InputSelect,
		Options:     opts,
		Multiple:    rel.Cardinality().IsMulti(),
		SourceField: rel.StorageColumn(),
	}, nil
}

// ClassifyAll classifies every field of the model. Relation options are
// taken from the provider.
func ClassifyAll(m *metadata.Model, provider OptionsProvider) (map[string]InputDescriptor, error) {
	out := make(map[string]InputDescriptor, len(m.Fields))
	for _, spec := range m.Fields {
		var options []Option
		if spec.Kind == metadata.KindRelation {
			opts, ok := provider.Options(spec.Name)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrOptionsNotLoaded, m.Entity.Name, spec.Name)
			}
			if opts == nil {
				opts = []Option{}
			}
			options = opts
		}
		d, err := Classify(spec, options)
		if err != nil {
			return nil, fmt.Errorf("classify %s.%s: %w", m.Entity.Name, spec.Name, err)
		}
		out[spec.Name] = d
	}
	return out, nil
}
