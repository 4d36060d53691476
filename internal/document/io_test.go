package document

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gisdoc/internal/ir"
)

const sampleDocument = `{
  "layers": {
    "L1": {"name": "Base", "type": "RasterLayer", "visible": true, "parameters": {"source": "S1", "opacity": 1.0}},
    "L2": {"name": "Roads", "type": "VectorLayer", "visible": false}
  },
  "sources": {
    "S1": {"name": "OSM", "type": "RasterSource", "parameters": {"url": "https://tile.openstreetmap.org/{z}/{x}/{y}.png", "maxZoom": 19}}
  },
  "layerTree": ["L1", {"name": "Overlays", "layers": ["L2"]}],
  "options": {"latitude": 46.5, "longitude": 6.6, "zoom": 8}
}`

func TestFromString(t *testing.T) {
	d := newTestDoc(t, "a")
	require.NoError(t, d.FromString(sampleDocument))

	assert.Equal(t, []string{"L1", "L2"}, ir.Content{Layers: d.Layers()}.LayerIDs())
	assert.Equal(t, []ir.LayerTreeItem{ir.Leaf("L1"), ir.Group("Overlays", ir.Leaf("L2"))}, d.LayerTree())
	zoom, _ := d.Option("zoom")
	assert.Equal(t, json.Number("8"), zoom)

	l, _ := d.Layer("L1")
	assert.Equal(t, "S1", l.Parameters.SourceID())
}

func TestFromString_DefaultOptions(t *testing.T) {
	d := newTestDoc(t, "a")
	require.NoError(t, d.FromString(`{"layers": {}, "sources": {}, "layerTree": []}`))
	assert.Equal(t, ir.DefaultOptions(), d.Options())
}

func TestFromString_ReplacesExistingContent(t *testing.T) {
	d := newTestDoc(t, "a")
	require.NoError(t, d.AddLayer("old", rasterLayer("Old")))
	require.NoError(t, d.AddLayerTreeItem(-1, ir.Leaf("old")))
	require.NoError(t, d.SetOption("bearing", 90))

	require.NoError(t, d.FromString(sampleDocument))
	assert.False(t, d.LayerExists("old"))
	assert.Len(t, d.LayerTree(), 2)
	_, ok := d.Option("bearing")
	assert.False(t, ok)
}

func TestFromString_SingleUpdate(t *testing.T) {
	d := newTestDoc(t, "a")
	updates, layerEvents, treeEvents := 0, 0, 0
	d.LocalUpdate(func(UpdateEvent) { updates++ })
	d.LayersChanged(func(LayersEvent) { layerEvents++ })
	d.LayerTreeChanged(func(TreeEvent) { treeEvents++ })

	require.NoError(t, d.FromString(sampleDocument))
	assert.Equal(t, 1, updates)
	assert.Equal(t, 1, layerEvents)
	assert.Equal(t, 1, treeEvents)
}

func TestFromString_FormatErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `{"layers": `},
		{"trailing data", `{} {}`},
		{"top level list", `[]`},
		{"unknown top level key", `{"widgets": {}}`},
		{"unknown layer type", `{"layers": {"L1": {"name": "x", "type": "Teapot", "visible": true}}}`},
		{"layer missing visible", `{"layers": {"L1": {"name": "x", "type": "RasterLayer"}}}`},
		{"source wrong type", `{"sources": {"S1": {"name": "x", "type": "RasterLayer"}}}`},
		{"tree item number", `{"layerTree": [1]}`},
		{"group without layers", `{"layerTree": [{"name": "G"}]}`},
		{"group empty name", `{"layerTree": [{"name": "", "layers": []}]}`},
		{"dangling leaf", `{"layers": {}, "layerTree": ["ghost"]}`},
		{"duplicate group", `{"layerTree": [{"name": "G", "layers": []}, {"name": "G", "layers": []}]}`},
		{"duplicate leaf", `{"layers": {"L1": {"name": "x", "type": "RasterLayer", "visible": true}}, "layerTree": ["L1", {"name": "G", "layers": ["L1"]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDoc(t, "a")
			require.NoError(t, d.AddLayer("keep", rasterLayer("Keep")))
			before := d.Content()

			err := d.FromString(tt.input)
			require.Error(t, err)
			assert.True(t, IsFormatError(err), "got %v", err)
			assert.Equal(t, before, d.Content(), "nothing is applied on failure")
		})
	}
}

func TestToJSON_Golden(t *testing.T) {
	d := newTestDoc(t, "a")
	require.NoError(t, d.FromString(sampleDocument))

	data, err := d.ToJSON()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "sample_export", data)
}

func TestToJSON_RoundTrip(t *testing.T) {
	a := newTestDoc(t, "a")
	require.NoError(t, a.FromString(sampleDocument))

	b := newTestDoc(t, "b")
	require.NoError(t, b.FromString(a.String()))

	ha, err := a.StateHash()
	require.NoError(t, err)
	hb, err := b.StateHash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Equal(t, a.String(), b.String())
}

func TestValidateSchema(t *testing.T) {
	require.NoError(t, ValidateSchema([]byte(sampleDocument)))

	err := ValidateSchema([]byte(`{"layers": {"L1": {"name": 3, "type": "RasterLayer", "visible": true}}}`))
	require.Error(t, err)
	assert.True(t, IsFormatError(err))
	assert.Contains(t, err.Error(), "layers.L1.name")
}
