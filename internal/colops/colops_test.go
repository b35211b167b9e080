package colops

import (
	"math"
	"testing"

	"geodata/internal/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor_Polygon(t *testing.T) {
	_, err := For(dataset.Polygon)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestCompare_ConsistentWithEquality(t *testing.T) {
	cases := []struct {
		typ  dataset.Type
		a, b any
	}{
		{dataset.Integer, int64(3), int64(7)},
		{dataset.Double, 1.25, 9.5},
		{dataset.String, "apple", "banana"},
	}
	for _, tc := range cases {
		t.Run(tc.typ.String(), func(t *testing.T) {
			o, err := For(tc.typ)
			require.NoError(t, err)
			assert.Equal(t, 0, o.Compare(tc.a, tc.a))
			assert.Negative(t, o.Compare(tc.a, tc.b))
			assert.Positive(t, o.Compare(tc.b, tc.a))
		})
	}
}

func TestParse(t *testing.T) {
	o, _ := For(dataset.Integer)
	v, err := o.Parse(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	_, err = o.Parse("4.2")
	assert.ErrorIs(t, err, ErrBadLiteral)

	o, _ = For(dataset.Double)
	v, err = o.Parse("4.5")
	require.NoError(t, err)
	assert.Equal(t, 4.5, v)

	o, _ = For(dataset.String)
	v, err = o.Parse(" raw ")
	require.NoError(t, err)
	assert.Equal(t, " raw ", v)
}

func TestRangePredicate(t *testing.T) {
	tests := []struct {
		op   string
		want []int64
	}{
		{">", []int64{15, 20}},
		{">=", []int64{10, 15, 20}},
		{"=", []int64{10}},
		{"<=", []int64{5, 10}},
		{"<", []int64{5}},
		{"!=", []int64{5, 15, 20}},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			p, err := RangePredicate(dataset.Integer, tt.op, "10")
			require.NoError(t, err)
			var got []int64
			for _, v := range []int64{5, 10, 15, 20} {
				if p(v) {
					got = append(got, v)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRangePredicate_Errors(t *testing.T) {
	_, err := RangePredicate(dataset.Integer, "~", "1")
	assert.ErrorIs(t, err, ErrUnknownOperator)
	_, err = RangePredicate(dataset.Polygon, ">", "1")
	assert.ErrorIs(t, err, ErrUnsupportedType)
	_, err = RangePredicate(dataset.Double, ">", "abc")
	assert.ErrorIs(t, err, ErrBadLiteral)
}

func TestMemberPredicate(t *testing.T) {
	p, err := MemberPredicate(dataset.Double, []string{"1.5", "2"})
	require.NoError(t, err)
	assert.True(t, p(1.5))
	assert.True(t, p(2.0))
	assert.False(t, p(3.0))

	_, err = MemberPredicate(dataset.Integer, []string{"1", "x"})
	assert.ErrorIs(t, err, ErrBadLiteral)
	_, err = MemberPredicate(dataset.Polygon, nil)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestMemberPredicate_NaNAgreesWithCompare(t *testing.T) {
	o, err := For(dataset.Double)
	require.NoError(t, err)
	nan := math.NaN()
	require.Zero(t, o.Compare(nan, nan))

	eq, err := RangePredicate(dataset.Double, "=", "NaN")
	require.NoError(t, err)
	in, err := MemberPredicate(dataset.Double, []string{"NaN"})
	require.NoError(t, err)
	for _, v := range []any{nan, 1.5} {
		assert.Equal(t, eq(v), in(v), "value %v", v)
	}
	assert.True(t, in(nan))
	assert.False(t, in(1.5))
}
