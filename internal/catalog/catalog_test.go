package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodata/internal/colops"
	"geodata/internal/dataset"
	"geodata/internal/geocode"
	"geodata/internal/geom"
	"geodata/internal/plugins"
	"geodata/internal/transform"
)

type fakeGeocoder struct {
	mu    sync.Mutex
	calls int
	known map[string]geocode.Result
}

func (f *fakeGeocoder) Geocode(_ context.Context, k geocode.AddressKey) (geocode.Result, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	r, ok := f.known[k.String()]
	return r, ok, nil
}

func hit(lon, lat float64) geocode.Result {
	return geocode.Result{Lon: lon, Lat: lat, Geometry: geom.PointGeometry(lon, lat)}
}

type recorder struct {
	mu      sync.Mutex
	created []string
	deleted []string
}

func (r *recorder) DatasetCreated(n string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, n)
}

func (r *recorder) DatasetDeleted(n string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, n)
}

type panicky struct{}

func (panicky) DatasetCreated(string) { panic("boom") }
func (panicky) DatasetDeleted(string) { panic("boom") }

type stubSource struct {
	table *dataset.Table
	err   error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) InputSpec() []plugins.InputConfig {
	return []plugins.InputConfig{plugins.NewInput("Path", plugins.Text, nil)}
}

func (s *stubSource) Load(context.Context, plugins.Params) (*dataset.Table, error) {
	return s.table, s.err
}

func cities(t *testing.T) *dataset.Table {
	t.Helper()
	tbl, err := dataset.New(
		[]string{"City", "Country", "Score"},
		[]dataset.Type{dataset.String, dataset.String, dataset.Integer},
		[][]any{
			{"Paris", "France", int64(15)},
			{"Atlantis", "Nowhere", int64(5)},
			{"Lyon", "France", int64(20)},
			{"Paris", "France", int64(10)},
			{"El Dorado", "Nowhere", int64(10)},
		})
	require.NoError(t, err)
	return tbl
}

func newCatalog(t *testing.T) (*Catalog, *fakeGeocoder) {
	t.Helper()
	f := &fakeGeocoder{known: map[string]geocode.Result{
		"Paris":         hit(2.35, 48.85),
		"Lyon":          hit(4.83, 45.76),
		"France, Paris": hit(2.35, 48.85),
		"France, Lyon":  hit(4.83, 45.76),
	}}
	return New(geocode.NewResolver(f)), f
}

func TestRegister_NameRules(t *testing.T) {
	c, _ := newCatalog(t)
	require.NoError(t, c.Register("cities", cities(t)))
	assert.ErrorIs(t, c.Register("cities", cities(t)), ErrDuplicateName)
	assert.ErrorIs(t, c.Register("  ", cities(t)), ErrEmptyName)
	assert.Equal(t, []string{"cities"}, c.Names())
}

func TestRegister_ConcurrentSameName(t *testing.T) {
	c, _ := newCatalog(t)
	tbl := cities(t)
	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Register("race", tbl) == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, ok.Load())
}

func TestListeners(t *testing.T) {
	c, _ := newCatalog(t)
	r := &recorder{}
	c.Subscribe(panicky{})
	c.Subscribe(r)
	c.Subscribe(nil)

	require.NoError(t, c.Register("a", cities(t)))
	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, []string{"a"}, r.created)
	assert.Equal(t, []string{"a"}, r.deleted)
}

func TestLoad(t *testing.T) {
	c, _ := newCatalog(t)
	src := &stubSource{table: cities(t)}
	c.RegisterSource(src)
	assert.Equal(t, []string{"stub"}, c.SourceNames())

	spec, err := c.SourceInputSpec("stub")
	require.NoError(t, err)
	assert.Len(t, spec, 1)
	_, err = c.SourceInputSpec("nope")
	assert.ErrorIs(t, err, ErrPluginNotFound)

	require.NoError(t, c.Load(context.Background(), "stub", "loaded", nil))
	got, ok := c.Get("loaded")
	require.True(t, ok)
	assert.Equal(t, 5, got.RowCount())

	assert.ErrorIs(t, c.Load(context.Background(), "nope", "x", nil), ErrPluginNotFound)

	src.err = errors.New("read failed")
	assert.Error(t, c.Load(context.Background(), "stub", "retry", nil))
	src.err = nil
	assert.NoError(t, c.Load(context.Background(), "stub", "retry", nil))
}

func TestTransforms(t *testing.T) {
	c, _ := newCatalog(t)
	require.NoError(t, c.Register("cities", cities(t)))

	require.NoError(t, c.FilterByRange("cities", "high", "Score", ">", "10"))
	high, _ := c.Get("high")
	assert.Equal(t, []any{int64(15), int64(20)}, high.Column(2))

	require.NoError(t, c.FilterBySet("cities", "fr", "Country", []string{"France"}))
	fr, _ := c.Get("fr")
	assert.Equal(t, 3, fr.RowCount())

	require.NoError(t, c.Sort("fr", "fr-sorted", "Score", false))
	sorted, _ := c.Get("fr-sorted")
	assert.Equal(t, []any{int64(20), int64(15), int64(10)}, sorted.Column(2))
	assert.True(t, sorted.SameSchema(cities(t)))

	assert.ErrorIs(t, c.FilterByRange("cities", "bad", "Nope", ">", "1"), transform.ErrLabelNotFound)
	assert.ErrorIs(t, c.FilterByRange("missing", "bad", "Score", ">", "1"), ErrDatasetNotFound)
	assert.ErrorIs(t, c.FilterByRange("cities", "high", "Score", ">", "1"), ErrDuplicateName)
	assert.ErrorIs(t, c.Sort("cities", "s", "", true), ErrMissingSelection)
	_, ok := c.Get("bad")
	assert.False(t, ok)
}

func TestGeocodeAppend_FreeText(t *testing.T) {
	c, f := newCatalog(t)
	require.NoError(t, c.Register("cities", cities(t)))

	unresolved, err := c.GeocodeAppend(context.Background(), "cities", "geo", "Loc", AddressSelection{FreeText: "City"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Atlantis", "El Dorado"}, unresolved)
	assert.Equal(t, 4, f.calls)

	geo, ok := c.Get("geo")
	require.True(t, ok)
	assert.Equal(t, 3, geo.RowCount())
	assert.Equal(t, 6, geo.ColCount())
	assert.Equal(t, []string{"City", "Country", "Score", "Loc (longitude)", "Loc (latitude)", "Loc (contour)"}, geo.Labels())
	assert.Equal(t, []dataset.Type{dataset.String, dataset.String, dataset.Integer, dataset.Double, dataset.Double, dataset.Polygon}, geo.Types())
	assert.Equal(t, []any{"Paris", "Lyon", "Paris"}, geo.Column(0))
	assert.Equal(t, 2.35, geo.Cell(2, 3))
}

func TestGeocodeAppend_Structured(t *testing.T) {
	c, _ := newCatalog(t)
	require.NoError(t, c.Register("cities", cities(t)))
	sel := SelectionFromParams(plugins.Params{"Country": {"Country"}, "City": {"City"}}, false)

	unresolved, err := c.GeocodeAppend(context.Background(), "cities", "geo", "Loc", sel)
	require.NoError(t, err)
	assert.Equal(t, []string{"Nowhere, Atlantis", "Nowhere, El Dorado"}, unresolved)
	geo, _ := c.Get("geo")
	assert.Equal(t, 3, geo.RowCount())
}

func TestGeocodeAppend_Validation(t *testing.T) {
	c, f := newCatalog(t)
	require.NoError(t, c.Register("cities", cities(t)))
	blank, err := dataset.New([]string{"Addr"}, []dataset.Type{dataset.String}, [][]any{{"Paris"}, {"  "}})
	require.NoError(t, err)
	require.NoError(t, c.Register("blank", blank))

	_, err = c.GeocodeAppend(context.Background(), "cities", "g1", " ", AddressSelection{FreeText: "City"})
	assert.ErrorIs(t, err, ErrEmptyLabel)
	_, err = c.GeocodeAppend(context.Background(), "cities", "g1", "L", AddressSelection{})
	assert.ErrorIs(t, err, ErrMissingSelection)
	_, err = c.GeocodeAppend(context.Background(), "cities", "g1", "L", AddressSelection{FreeText: "Nope"})
	assert.ErrorIs(t, err, transform.ErrLabelNotFound)
	shapes, err := dataset.New([]string{"Shape"}, []dataset.Type{dataset.Polygon}, [][]any{{geom.PointGeometry(1, 2)}})
	require.NoError(t, err)
	require.NoError(t, c.Register("shapes", shapes))
	_, err = c.GeocodeAppend(context.Background(), "shapes", "g1", "L", AddressSelection{FreeText: "Shape"})
	assert.ErrorIs(t, err, colops.ErrUnsupportedType)
	_, err = c.GeocodeAppend(context.Background(), "cities", "cities", "L", AddressSelection{FreeText: "City"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = c.GeocodeAppend(context.Background(), "blank", "g1", "L", AddressSelection{FreeText: "Addr"})
	var ve *dataset.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 1, ve.Row)
	assert.Zero(t, f.calls)
	_, ok := c.Get("g1")
	assert.False(t, ok)
}

type statsSpy struct{ lookups, unresolved int }

func (s *statsSpy) IncrStats(_ context.Context, l, u int) error {
	s.lookups, s.unresolved = l, u
	return nil
}

func TestGeocodeAppend_RecordsStats(t *testing.T) {
	f := &fakeGeocoder{known: map[string]geocode.Result{"Lyon": hit(1, 2)}}
	spy := &statsSpy{}
	c := New(geocode.NewResolver(f), WithStats(spy))
	require.NoError(t, c.Register("cities", cities(t)))
	unresolved, err := c.GeocodeAppend(context.Background(), "cities", "geo", "L", AddressSelection{FreeText: "City"})
	require.NoError(t, err)
	// Paris appears twice: one distinct unresolved address, two dropped rows
	assert.Equal(t, []string{"Paris", "Atlantis", "El Dorado"}, unresolved)
	assert.Equal(t, &statsSpy{lookups: 5, unresolved: 4}, spy)
}

type cancelOnFirst struct {
	cancel context.CancelFunc
	mu     sync.Mutex
	asked  []string
}

func (g *cancelOnFirst) Geocode(ctx context.Context, k geocode.AddressKey) (geocode.Result, bool, error) {
	g.mu.Lock()
	g.asked = append(g.asked, k.String())
	g.mu.Unlock()
	g.cancel()
	return geocode.Result{}, false, ctx.Err()
}

func TestGeocodeAppend_CancelledBatchIsNotRegistered(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := &cancelOnFirst{cancel: cancel}
	spy := &statsSpy{}
	c := New(geocode.NewResolver(g, geocode.WithMaxInFlight(1)), WithStats(spy))
	tbl, err := dataset.New([]string{"City"}, []dataset.Type{dataset.String}, [][]any{{"Paris"}, {"Berlin"}, {"Rome"}})
	require.NoError(t, err)
	require.NoError(t, c.Register("cities", tbl))

	unresolved, err := c.GeocodeAppend(ctx, "cities", "geo", "L", AddressSelection{FreeText: "City"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, unresolved)
	assert.Equal(t, []string{"Paris"}, g.asked)
	assert.Equal(t, &statsSpy{}, spy)
	_, ok := c.Get("geo")
	assert.False(t, ok)

	// the name was released and can be produced by a later batch
	require.NoError(t, c.Register("geo", tbl))
}

func TestGeocodeAppend_UnresolvedStringsAreDistinct(t *testing.T) {
	c, f := newCatalog(t)
	tbl, err := dataset.New([]string{"Country", "State"}, []dataset.Type{dataset.String, dataset.String},
		[][]any{{"Narnia", ""}, {"", "Narnia"}})
	require.NoError(t, err)
	require.NoError(t, c.Register("lands", tbl))

	// two different structured keys that render to the same text
	unresolved, err := c.GeocodeAppend(context.Background(), "lands", "geo", "L", AddressSelection{Fields: [5]string{"Country", "State"}})
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
	assert.Equal(t, []string{"Narnia"}, unresolved)
}

func TestConfigBuilders(t *testing.T) {
	c, _ := newCatalog(t)
	require.NoError(t, c.Register("cities", cities(t)))

	num, err := c.FilterConfigs("cities", true)
	require.NoError(t, err)
	require.Len(t, num, 3)
	assert.Equal(t, []string{"Score"}, num[0].Choices)
	assert.Equal(t, colops.Operators, num[1].Choices)
	assert.Equal(t, plugins.Text, num[2].Kind)

	str, err := c.FilterConfigs("cities", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"City", "Country"}, str[0].Choices)

	srt, err := c.SortConfigs("cities")
	require.NoError(t, err)
	assert.Equal(t, SortByParam, srt[0].Name)

	free, err := c.GeocodeConfigs("cities", true)
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, AddressParam, free[0].Name)
	structured, err := c.GeocodeConfigs("cities", false)
	require.NoError(t, err)
	require.Len(t, structured, 5)
	assert.Equal(t, "County", structured[3].Name)

	_, err = c.SortConfigs("nope")
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	choices, err := c.SelectionChoices("cities", []plugins.FilterConfig{
		{Label: "Country", Kind: plugins.Multi},
		{Label: "Missing", Kind: plugins.Single},
	})
	require.NoError(t, err)
	require.Len(t, choices, 1)
	assert.Equal(t, []string{"France", "Nowhere"}, choices[0].Choices)
}

type captureDisplay struct {
	got    *dataset.Table
	w, h   int
	filter []plugins.FilterConfig
}

func (d *captureDisplay) Name() string { return "capture" }
func (d *captureDisplay) ConfigSpec(p map[dataset.Type][]string) []plugins.InputConfig {
	return []plugins.InputConfig{plugins.NewInput("Col", plugins.Single, p[dataset.String])}
}
func (d *captureDisplay) FilterSpec(plugins.Params) []plugins.FilterConfig { return d.filter }
func (d *captureDisplay) Render(t *dataset.Table, w, h int, _ plugins.Params) (any, error) {
	d.got, d.w, d.h = t, w, h
	return "view", nil
}

func TestRender(t *testing.T) {
	c, _ := newCatalog(t)
	require.NoError(t, c.Register("cities", cities(t)))
	d := &captureDisplay{filter: []plugins.FilterConfig{
		{Label: "Country", Kind: plugins.Multi},
		{Label: "Score", Kind: plugins.Single, Sort: plugins.Descending},
	}}
	c.RegisterDisplay(d)
	assert.Equal(t, []string{"capture"}, c.DisplayNames())

	cfg, err := c.DisplayConfigs("capture", "cities")
	require.NoError(t, err)
	assert.Equal(t, []string{"City", "Country"}, cfg[0].Choices)
	fs, err := c.FilterSpec("capture", nil)
	require.NoError(t, err)
	assert.Len(t, fs, 2)

	view, err := c.Render(context.Background(), "capture", "cities", nil, map[string][]string{"Country": {"France"}})
	require.NoError(t, err)
	assert.Equal(t, "view", view)
	assert.Equal(t, DisplayWidth, d.w)
	assert.Equal(t, DisplayHeight, d.h)
	assert.Equal(t, []any{int64(20), int64(15), int64(10)}, d.got.Column(2))

	_, err = c.Render(context.Background(), "nope", "cities", nil, nil)
	assert.ErrorIs(t, err, ErrPluginNotFound)
}
