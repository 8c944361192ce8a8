package composite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep(t *testing.T) {
	assert.Equal(t, "", Step(0))
	assert.Equal(t, "0.1", Step(1))
	assert.Equal(t, "0.01", Step(2))
	assert.Equal(t, "0.001", Step(3))
}

func TestRangeCodec_PrecisionMapping(t *testing.T) {
	ints := RangeCodec(0)
	assert.True(t, ints.Integer())
	assert.Equal(t, "", ints.Step())

	floats := RangeCodec(3)
	assert.False(t, floats.Integer())
	assert.Equal(t, "0.001", floats.Step())
	assert.Equal(t, []string{"from", "to"}, floats.Labels())
}

func TestPointCodec_RoundTrip(t *testing.T) {
	c := PointCodec(6)
	p := Point{Lat: 52.520008, Lon: 13.404954}

	tup, err := c.Encode(p)
	require.NoError(t, err)
	assert.Equal(t, Tuple{52.520008, 13.404954}, tup)

	back, err := c.Decode(tup)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestRangeCodec_RoundTrip(t *testing.T) {
	c := RangeCodec(2)
	r := Range{From: 1.25, To: 9.5}

	tup, err := c.Encode(r)
	require.NoError(t, err)
	back, err := c.Decode(tup)
	require.NoError(t, err)
	assert.Equal(t, r, back)
}

func TestDecode_Arity(t *testing.T) {
	_, err := PointCodec(0).Decode(Tuple{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCompositeArity))

	var arity *ArityError
	require.True(t, errors.As(err, &arity))
	assert.Equal(t, 2, arity.Want)
	assert.Equal(t, 3, arity.Got)
}

func TestDecode_IntegerTruncates(t *testing.T) {
	v, err := RangeCodec(0).Decode(Tuple{1.9, 5.2})
	require.NoError(t, err)
	assert.Equal(t, Range{From: 1, To: 5}, v)
}

func TestDecode_FloatRejectsExtraDigits(t *testing.T) {
	_, err := RangeCodec(2).Decode(Tuple{1.234, 5})
	assert.ErrorIs(t, err, ErrCompositePrecision)

	_, err = RangeCodec(2).Decode(Tuple{1.23, 5})
	assert.NoError(t, err)
}

func TestDecode_RangeOrder(t *testing.T) {
	_, err := RangeCodec(0).Decode(Tuple{5, 1})
	assert.ErrorIs(t, err, ErrCompositeOrder)
}

func TestEncode_WrongShape(t *testing.T) {
	_, err := PointCodec(0).Encode(Range{From: 1, To: 2})
	assert.ErrorIs(t, err, ErrCompositeType)

	_, err = RangeCodec(0).Encode("nope")
	assert.ErrorIs(t, err, ErrCompositeType)
}

func TestParse_Representations(t *testing.T) {
	c := PointCodec(3)

	cases := []struct {
		name string
		raw  any
	}{
		{"list", []any{1.5, 2.25}},
		{"strings", []any{"1.5", "2.25"}},
		{"floats", []float64{1.5, 2.25}},
		{"labeled", map[string]any{"lat": 1.5, "lon": 2.25}},
		{"text", "(1.5, 2.25)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tup, err := c.Parse(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, Tuple{1.5, 2.25}, tup)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	c := RangeCodec(0)

	_, err := c.Parse([]any{1})
	assert.ErrorIs(t, err, ErrCompositeArity)

	_, err = c.Parse(map[string]any{"from": 1})
	assert.ErrorIs(t, err, ErrCompositeArity)

	_, err = c.Parse([]any{"x", 2})
	assert.ErrorIs(t, err, ErrCompositeType)

	_, err = c.Parse(true)
	assert.ErrorIs(t, err, ErrCompositeType)

	tup, err := c.Parse("[1,5]")
	require.NoError(t, err)
	assert.Equal(t, Tuple{1, 5}, tup)
}

func TestNormalize_LargeMagnitudes(t *testing.T) {
	cases := []struct {
		precision int
		value     float64
	}{
		{3, 34079227.8},
		{2, 4797854206.4},
		{2, 12345678.91},
		{1, 9999999999.9},
		{3, 10000000.125},
	}
	for _, tc := range cases {
		c := RangeCodec(tc.precision)
		got, err := c.Normalize(Tuple{tc.value, tc.value})
		require.NoError(t, err, "%v at precision %d", tc.value, tc.precision)
		assert.Equal(t, Tuple{tc.value, tc.value}, got)

		decoded, err := c.Decode(Tuple{tc.value, tc.value})
		require.NoError(t, err)
		encoded, err := c.Encode(decoded)
		require.NoError(t, err)
		assert.Equal(t, Tuple{tc.value, tc.value}, encoded)
	}

	_, err := RangeCodec(2).Normalize(Tuple{12345678.123, 12345679})
	assert.ErrorIs(t, err, ErrCompositePrecision)
}

func TestPolygonCodec(t *testing.T) {
	c := NewPolygonCodec(1)
	poly := Polygon{{Lat: 0, Lon: 0}, {Lat: 1.5, Lon: 0}, {Lat: 1.5, Lon: 2.5}}

	ts, err := c.Encode(poly)
	require.NoError(t, err)
	require.Len(t, ts, 3)

	back, err := c.Decode(ts)
	require.NoError(t, err)
	assert.Equal(t, poly, back)

	parsed, err := c.Parse([]any{[]any{0, 0}, "(1.5,0)", map[string]any{"lat": 1.5, "lon": 2.5}})
	require.NoError(t, err)
	assert.Equal(t, ts, parsed)

	_, err = c.Parse([]any{[]any{1, 2, 3}})
	assert.ErrorIs(t, err, ErrCompositeArity)

	_, err = c.Parse([]any{[]any{1.25, 2}})
	assert.ErrorIs(t, err, ErrCompositePrecision)
}
