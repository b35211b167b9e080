package plugins

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodata/internal/dataset"
)

type stubSource struct {
	name string
	hb   error
}

func (s *stubSource) Name() string             { return s.name }
func (s *stubSource) InputSpec() []InputConfig { return nil }
func (s *stubSource) Load(context.Context, Params) (*dataset.Table, error) {
	return dataset.New(nil, nil, nil)
}
func (s *stubSource) Heartbeat(context.Context) error { return s.hb }

type stubDisplay struct{ name string }

func (d stubDisplay) Name() string                                  { return d.name }
func (d stubDisplay) ConfigSpec(map[dataset.Type][]string) []InputConfig { return nil }
func (d stubDisplay) FilterSpec(Params) []FilterConfig                  { return nil }
func (d stubDisplay) Render(*dataset.Table, int, int, Params) (any, error) {
	return nil, nil
}

func TestManager_RegistrationOrder(t *testing.T) {
	m := NewManager()
	m.RegisterSource(&stubSource{name: "b"})
	m.RegisterSource(&stubSource{name: "a"})
	m.RegisterSource(&stubSource{name: "b"})
	m.RegisterDisplay(stubDisplay{name: "table"})
	m.RegisterDisplay(stubDisplay{name: "chart"})

	assert.Equal(t, []string{"b", "a"}, m.SourceNames())
	assert.Equal(t, []string{"table", "chart"}, m.DisplayNames())
	_, ok := m.Source("a")
	assert.True(t, ok)
	_, ok = m.Source("zzz")
	assert.False(t, ok)
	_, ok = m.Display("chart")
	assert.True(t, ok)
}

func TestManager_HeartbeatMarksUnhealthy(t *testing.T) {
	m := NewManager()
	bad := &stubSource{name: "bad", hb: errors.New("down")}
	m.RegisterSource(bad)
	m.RegisterSource(&stubSource{name: "good"})

	m.doHeartbeat(context.Background())
	assert.Equal(t, []string{"good"}, m.SourceNames())
	_, ok := m.Source("bad")
	assert.False(t, ok)

	bad.hb = nil
	m.doHeartbeat(context.Background())
	assert.Equal(t, []string{"bad", "good"}, m.SourceNames())
}

func TestNewInput_TextDropsChoices(t *testing.T) {
	c := NewInput("Path", Text, []string{"x"})
	assert.Empty(t, c.Choices)
	src := []string{"a", "b"}
	c = NewInput("Pick", Multi, src)
	src[0] = "z"
	assert.Equal(t, []string{"a", "b"}, c.Choices)
}

func TestParseCell(t *testing.T) {
	v, err := ParseCell(dataset.Integer, " 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	_, err = ParseCell(dataset.Double, "abc")
	assert.Error(t, err)
	g, err := ParseCell(dataset.Polygon, `{"type":"MultiPolygon","coordinates":[[[1,2],[3,4]]]}`)
	require.NoError(t, err)
	assert.True(t, dataset.Polygon.Check(g))
}

func TestParams_First(t *testing.T) {
	p := Params{"a": {" x "}, "b": {}}
	assert.Equal(t, "x", p.First("a"))
	assert.Equal(t, "", p.First("b"))
	assert.Equal(t, "", p.First("c"))
}
