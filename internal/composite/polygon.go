package composite

import "fmt"

// Polygon is an ordered sequence of points.
type Polygon []Point

// PolygonCodec converts polygons to and from sequences of point tuples. The
// number of points is not fixed.
type PolygonCodec struct {
	Point Codec
}

func NewPolygonCodec(precision int) PolygonCodec {
	return PolygonCodec{Point: PointCodec(precision)}
}

func (c PolygonCodec) Encode(p Polygon) ([]Tuple, error) {
	out := make([]Tuple, len(p))
	for i, pt := range p {
		t, err := c.Point.Encode(pt)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

func (c PolygonCodec) Decode(ts []Tuple) (Polygon, error) {
	out := make(Polygon, len(ts))
	for i, t := range ts {
		v, err := c.Point.Decode(t)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		out[i] = v.(Point)
	}
	return out, nil
}

// Parse reads a polygon from a payload value: a list whose elements are
// anything the point codec can parse.
func (c PolygonCodec) Parse(raw any) ([]Tuple, error) {
	switch v := raw.(type) {
	case []Tuple:
		out := make([]Tuple, len(v))
		for i, t := range v {
			n, err := c.Point.Normalize(t)
			if err != nil {
				return nil, fmt.Errorf("point %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case []any:
		out := make([]Tuple, len(v))
		for i, item := range v {
			t, err := c.Point.Parse(item)
			if err != nil {
				return nil, fmt.Errorf("point %d: %w", i, err)
			}
			out[i] = t
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: cannot parse polygon from %T", ErrCompositeType, raw)
	}
}
