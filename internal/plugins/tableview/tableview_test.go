package tableview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodata/internal/dataset"
	"geodata/internal/geom"
	"geodata/internal/plugins"
)

func sampleTable(t *testing.T, n int) *dataset.Table {
	t.Helper()
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{"city", int64(i), 1.5, geom.PointGeometry(2, 3)}
	}
	tbl, err := dataset.New([]string{"Name", "Rank", "Score", "Shape"},
		[]dataset.Type{dataset.String, dataset.Integer, dataset.Double, dataset.Polygon}, rows)
	require.NoError(t, err)
	return tbl
}

func TestConfigSpec(t *testing.T) {
	spec := New().ConfigSpec(sampleTable(t, 1).Preview())
	require.Len(t, spec, 6)
	assert.Equal(t, []string{"Name", "Rank", "Score", "Shape"}, spec[0].Choices)
	assert.Equal(t, []string{"Name", "Rank"}, spec[1].Choices)
	assert.Equal(t, []string{"Name", "Rank", "Score"}, spec[2].Choices)
	assert.Equal(t, plugins.Text, spec[5].Kind)
}

func TestFilterSpec(t *testing.T) {
	fs := New().FilterSpec(plugins.Params{FilterBy: {"Name"}, SortBy: {"Rank"}, Order: {"desc"}})
	assert.Equal(t, []plugins.FilterConfig{
		{Label: "Name", Kind: plugins.Multi},
		{Label: "Rank", Kind: plugins.Multi, Sort: plugins.Descending},
	}, fs)
	assert.Empty(t, New().FilterSpec(plugins.Params{}))
}

func TestRender(t *testing.T) {
	out, err := New().Render(sampleTable(t, 3), 1200, 450, plugins.Params{Columns: {"Name", "Score", "Shape"}, Title: {"Cities"}})
	require.NoError(t, err)
	s, ok := out.(string)
	require.True(t, ok)
	s = strings.ToLower(s)
	assert.Contains(t, s, "cities")
	assert.Contains(t, s, "1.5")
	assert.Contains(t, s, "1 ring(s)")
	assert.NotContains(t, s, "rank")
}

func TestRender_TruncatesByHeight(t *testing.T) {
	out, err := New().Render(sampleTable(t, 40), 0, 180, nil)
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out.(string)), "30 more rows")
}

func TestRender_EmptyAndUnknownColumn(t *testing.T) {
	out, err := New().Render(sampleTable(t, 0), 600, 450, nil)
	assert.NoError(t, err)
	assert.Nil(t, out)

	_, err = New().Render(sampleTable(t, 1), 600, 450, plugins.Params{Columns: {"Nope"}})
	assert.True(t, plugins.IsArgument(err))
}
