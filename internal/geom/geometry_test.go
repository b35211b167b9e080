package geom

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeometry_BBoxEnclosesAllRings(t *testing.T) {
	g, err := NewGeometry([]Ring{
		{{X: 1, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 4}},
		{{X: -2, Y: 0}, {X: 0, Y: -5}},
	})
	require.NoError(t, err)
	assert.Equal(t, BBox{MinX: -2, MinY: -5, MaxX: 3, MaxY: 4}, g.BBox())
	for _, r := range g.Rings() {
		for _, p := range r {
			assert.True(t, g.BBox().Contains(p))
		}
	}
	assert.Equal(t, 2, g.NumRings())
}

func TestNewGeometry_Rejects(t *testing.T) {
	_, err := NewGeometry(nil)
	assert.ErrorIs(t, err, ErrNoRings)
	_, err = NewGeometry([]Ring{{}})
	assert.ErrorIs(t, err, ErrEmptyRing)
}

func TestGeometry_Immutable(t *testing.T) {
	in := []Ring{{{X: 1, Y: 2}}}
	g, err := NewGeometry(in)
	require.NoError(t, err)
	in[0][0].X = 100
	rs := g.Rings()
	rs[0][0].Y = 100
	assert.Equal(t, Point{X: 1, Y: 2}, g.Rings()[0][0])
}

func TestPointGeometry(t *testing.T) {
	g := PointGeometry(-79.9, 40.4)
	assert.Equal(t, 1, g.NumRings())
	assert.Equal(t, BBox{MinX: -79.9, MinY: 40.4, MaxX: -79.9, MaxY: 40.4}, g.BBox())
	assert.False(t, g.IsZero())
	assert.True(t, Geometry{}.IsZero())
}

func TestScaled(t *testing.T) {
	g := PointGeometry(1.5, 2.25)
	s := g.Scaled(10000)
	assert.Equal(t, [][]ScaledPoint{{{X: 15000, Y: -22500}}}, s)
}

func TestGeometry_JSONRoundTrip(t *testing.T) {
	g, err := NewGeometry([]Ring{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}})
	require.NoError(t, err)
	b, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"bbox":[0,0,1,1]`)

	var back Geometry
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, g.Equal(back))
	assert.Equal(t, g.BBox(), back.BBox())
}
