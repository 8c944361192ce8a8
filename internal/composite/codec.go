// Package composite encodes non-scalar field values (points, numeric ranges
// and polygons) to and from ordered component tuples.
//
// A Codec fixes the component labels and the numeric precision. Precision 0
// declares integer components (except for points, which are always float);
// precision p > 0 declares float components with at most p fractional digits,
// advertised to forms as the step "0.0…1".
package composite

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrCompositeArity     = errors.New("composite arity mismatch")
	ErrCompositeType      = errors.New("composite component is not numeric")
	ErrCompositePrecision = errors.New("composite component exceeds declared precision")
	ErrCompositeOrder     = errors.New("range lower bound exceeds upper bound")
)

// ArityError reports how many components were expected and received.
type ArityError struct {
	Want, Got int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s: want %d components, got %d", ErrCompositeArity, e.Want, e.Got)
}

func (e *ArityError) Unwrap() error { return ErrCompositeArity }

// Tuple is the ordered component form of a composite value.
type Tuple []float64

type Shape int

const (
	ShapePoint Shape = iota
	ShapeRange
)

// Point is a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Range is a closed numeric interval.
type Range struct {
	From float64
	To   float64
}

var (
	pointLabels = []string{"lat", "lon"}
	rangeLabels = []string{"from", "to"}
)

// Codec converts between domain values and Tuples for one declared field.
type Codec struct {
	shape     Shape
	labels    []string
	precision int
	integer   bool
}

// PointCodec returns the codec for a point field. Components are floats.
func PointCodec(precision int) Codec {
	return Codec{shape: ShapePoint, labels: pointLabels, precision: precision}
}

// RangeCodec returns the codec for a range field. Components are integers
// when precision is 0.
func RangeCodec(precision int) Codec {
	return Codec{shape: ShapeRange, labels: rangeLabels, precision: precision, integer: precision == 0}
}

// Labels returns a copy of the component labels in order.
func (c Codec) Labels() []string {
	return append([]string(nil), c.labels...)
}

func (c Codec) Precision() int { return c.precision }

// Integer reports whether components are whole numbers.
func (c Codec) Integer() bool { return c.integer }

// Step returns the input step for the declared precision, or "" when the
// precision does not constrain it.
func (c Codec) Step() string {
	return Step(c.precision)
}

// Step formats precision p as "0." followed by p-1 zeros and a 1.
func Step(precision int) string {
	if precision <= 0 {
		return ""
	}
	return "0." + strings.Repeat("0", precision-1) + "1"
}

// Encode converts a Point or Range into its Tuple.
func (c Codec) Encode(v any) (Tuple, error) {
	var t Tuple
	switch val := v.(type) {
	case Point:
		if c.shape != ShapePoint {
			return nil, fmt.Errorf("%w: point given to range codec", ErrCompositeType)
		}
		t = Tuple{val.Lat, val.Lon}
	case Range:
		if c.shape != ShapeRange {
			return nil, fmt.Errorf("%w: range given to point codec", ErrCompositeType)
		}
		t = Tuple{val.From, val.To}
	case Tuple:
		t = val
	default:
		return nil, fmt.Errorf("%w: cannot encode %T", ErrCompositeType, v)
	}
	return c.Normalize(t)
}

// Decode validates a Tuple against the codec and converts it to a Point or
// Range.
func (c Codec) Decode(t Tuple) (any, error) {
	n, err := c.Normalize(t)
	if err != nil {
		return nil, err
	}
	if c.shape == ShapePoint {
		return Point{Lat: n[0], Lon: n[1]}, nil
	}
	return Range{From: n[0], To: n[1]}, nil
}

// Normalize checks arity and precision, truncating integer components.
func (c Codec) Normalize(t Tuple) (Tuple, error) {
	if len(t) != len(c.labels) {
		return nil, &ArityError{Want: len(c.labels), Got: len(t)}
	}
	out := make(Tuple, len(t))
	for i, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s is not finite", ErrCompositeType, c.labels[i])
		}
		switch {
		case c.integer:
			v = math.Trunc(v)
		case c.precision > 0 && !fitsPrecision(v, c.precision):
			return nil, fmt.Errorf("%w: %s=%v allows %d decimals", ErrCompositePrecision, c.labels[i], v, c.precision)
		}
		out[i] = v
	}
	if c.shape == ShapeRange && out[0] > out[1] {
		return nil, fmt.Errorf("%w: %v > %v", ErrCompositeOrder, out[0], out[1])
	}
	return out, nil
}

// Parse reads a tuple from a payload value: a list of numbers or numeric
// strings, a map keyed by label, or text such as "(1.5,2)" or "[1,5]".
func (c Codec) Parse(raw any) (Tuple, error) {
	var comps []any
	switch v := raw.(type) {
	case Tuple:
		return c.Normalize(v)
	case []float64:
		return c.Normalize(Tuple(v))
	case []any:
		comps = v
	case []int:
		for _, n := range v {
			comps = append(comps, n)
		}
	case map[string]any:
		for _, label := range c.labels {
			comp, ok := v[label]
			if !ok {
				return nil, fmt.Errorf("%w: missing %q", &ArityError{Want: len(c.labels), Got: len(v)}, label)
			}
			comps = append(comps, comp)
		}
		if len(v) != len(c.labels) {
			return nil, &ArityError{Want: len(c.labels), Got: len(v)}
		}
	case string:
		comps = splitText(v)
	default:
		return nil, fmt.Errorf("%w: cannot parse %T", ErrCompositeType, raw)
	}

	t := make(Tuple, len(comps))
	for i, comp := range comps {
		f, err := toFloat(comp)
		if err != nil {
			return nil, err
		}
		t[i] = f
	}
	return c.Normalize(t)
}

func splitText(s string) []any {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "([{")
	s = strings.TrimRight(s, ")]}")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrCompositeType, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrCompositeType, v)
	}
}

// fitsPrecision reports whether v has at most p fractional digits in its
// shortest decimal form.
func fitsPrecision(v float64, p int) bool {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return true
	}
	return len(s)-dot-1 <= p
}
