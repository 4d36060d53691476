package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// LayerType identifies how a layer is rendered.
type LayerType string

const (
	LayerTypeRaster       LayerType = "RasterLayer"
	LayerTypeVector       LayerType = "VectorLayer"
	LayerTypeVectorTile   LayerType = "VectorTileLayer"
	LayerTypeHillshade    LayerType = "HillshadeLayer"
	LayerTypeWebGL        LayerType = "WebGlLayer"
	LayerTypeImage        LayerType = "ImageLayer"
	LayerTypeHeatmap      LayerType = "HeatmapLayer"
	LayerTypeStac         LayerType = "StacLayer"
	LayerTypeStorySegment LayerType = "StorySegmentLayer"
)

// LayerTypes lists every known layer type in declaration order.
var LayerTypes = []LayerType{
	LayerTypeRaster,
	LayerTypeVector,
	LayerTypeVectorTile,
	LayerTypeHillshade,
	LayerTypeWebGL,
	LayerTypeImage,
	LayerTypeHeatmap,
	LayerTypeStac,
	LayerTypeStorySegment,
}

// Valid reports whether t is a known layer type.
func (t LayerType) Valid() bool {
	return slices.Contains(LayerTypes, t)
}

// SourceType identifies the kind of data origin a source describes.
type SourceType string

const (
	SourceTypeRaster     SourceType = "RasterSource"
	SourceTypeVectorTile SourceType = "VectorTileSource"
	SourceTypeGeoJSON    SourceType = "GeoJSONSource"
	SourceTypeRasterDem  SourceType = "RasterDemSource"
	SourceTypeVideo      SourceType = "VideoSource"
	SourceTypeImage      SourceType = "ImageSource"
	SourceTypeShapefile  SourceType = "ShapefileSource"
	SourceTypeGeoTiff    SourceType = "GeoTiffSource"
	SourceTypeGeoParquet SourceType = "GeoParquetSource"
	SourceTypeMarker     SourceType = "MarkerSource"
)

// SourceTypes lists every known source type in declaration order.
var SourceTypes = []SourceType{
	SourceTypeRaster,
	SourceTypeVectorTile,
	SourceTypeGeoJSON,
	SourceTypeRasterDem,
	SourceTypeVideo,
	SourceTypeImage,
	SourceTypeShapefile,
	SourceTypeGeoTiff,
	SourceTypeGeoParquet,
	SourceTypeMarker,
}

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	return slices.Contains(SourceTypes, t)
}

// Parameters is the type-specific payload of a layer or source.
// The document core treats it as opaque; editors own its shape.
type Parameters map[string]any

// SourceID returns the source back-reference of a layer, if any.
func (p Parameters) SourceID() string {
	if p == nil {
		return ""
	}
	id, _ := p["source"].(string)
	return id
}

// Clone returns a deep copy of the parameters.
func (p Parameters) Clone() Parameters {
	if p == nil {
		return nil
	}
	return Parameters(cloneMap(p))
}

// Layer is a renderable map entity.
type Layer struct {
	Name       string     `json:"name"`
	Type       LayerType  `json:"type"`
	Visible    bool       `json:"visible"`
	Parameters Parameters `json:"parameters,omitempty"`
}

// Clone returns a deep copy of the layer.
func (l Layer) Clone() Layer {
	l.Parameters = l.Parameters.Clone()
	return l
}

// Source is a data origin referenced by one or more layers.
type Source struct {
	Name       string     `json:"name"`
	Type       SourceType `json:"type"`
	Parameters Parameters `json:"parameters,omitempty"`
}

// Clone returns a deep copy of the source.
func (s Source) Clone() Source {
	s.Parameters = s.Parameters.Clone()
	return s
}

// Options is the flat record of global view settings.
type Options map[string]any

// DefaultOptions returns the options installed when a document carries none.
func DefaultOptions() Options {
	return Options{
		"latitude":  json.Number("0"),
		"longitude": json.Number("0"),
		"zoom":      json.Number("0"),
	}
}

// Clone returns a deep copy of the options.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	return Options(cloneMap(o))
}

// LayerGroup is a named container in the layer tree.
type LayerGroup struct {
	Name   string          `json:"name"`
	Layers []LayerTreeItem `json:"layers"`
}

// LayerTreeItem is either a leaf referencing a layer id or a group.
// Exactly one of LayerID and Group is set.
type LayerTreeItem struct {
	LayerID string
	Group   *LayerGroup
}

// Leaf returns a tree item referencing the given layer id.
func Leaf(id string) LayerTreeItem {
	return LayerTreeItem{LayerID: id}
}

// Group returns a tree item holding a group with the given children.
func Group(name string, items ...LayerTreeItem) LayerTreeItem {
	if items == nil {
		items = []LayerTreeItem{}
	}
	return LayerTreeItem{Group: &LayerGroup{Name: name, Layers: items}}
}

// IsGroup reports whether the item is a group node.
func (i LayerTreeItem) IsGroup() bool {
	return i.Group != nil
}

// String renders the item compactly for logs and test failures.
func (i LayerTreeItem) String() string {
	if i.Group == nil {
		return i.LayerID
	}
	return fmt.Sprintf("%s%v", i.Group.Name, i.Group.Layers)
}

// Clone returns a deep copy of the item; groups are never shared.
func (i LayerTreeItem) Clone() LayerTreeItem {
	if i.Group == nil {
		return i
	}
	return LayerTreeItem{Group: &LayerGroup{
		Name:   i.Group.Name,
		Layers: CloneTree(i.Group.Layers),
	}}
}

// CloneTree deep-copies a sequence of tree items.
func CloneTree(items []LayerTreeItem) []LayerTreeItem {
	out := make([]LayerTreeItem, len(items))
	for idx, item := range items {
		out[idx] = item.Clone()
	}
	return out
}

// MarshalJSON encodes a leaf as a bare string and a group as an object.
func (i LayerTreeItem) MarshalJSON() ([]byte, error) {
	if i.Group == nil {
		return json.Marshal(i.LayerID)
	}
	layers := i.Group.Layers
	if layers == nil {
		layers = []LayerTreeItem{}
	}
	return json.Marshal(struct {
		Name   string          `json:"name"`
		Layers []LayerTreeItem `json:"layers"`
	}{i.Group.Name, layers})
}

// UnmarshalJSON accepts either a layer id string or a group object.
func (i *LayerTreeItem) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("layer tree item: null is neither a layer id nor a group")
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*i = LayerTreeItem{LayerID: id}
		return nil
	}
	var g LayerGroup
	if err := json.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("layer tree item: %w", err)
	}
	if g.Layers == nil {
		g.Layers = []LayerTreeItem{}
	}
	*i = LayerTreeItem{Group: &g}
	return nil
}

// Content is the persisted shape of a whole document.
type Content struct {
	Layers    map[string]Layer  `json:"layers"`
	Sources   map[string]Source `json:"sources"`
	LayerTree []LayerTreeItem   `json:"layerTree"`
	Options   Options           `json:"options"`
}

// NewContent returns an empty document with default options.
func NewContent() Content {
	return Content{
		Layers:    map[string]Layer{},
		Sources:   map[string]Source{},
		LayerTree: []LayerTreeItem{},
		Options:   DefaultOptions(),
	}
}

// LayerIDs returns the layer ids in sorted order.
func (c Content) LayerIDs() []string {
	return slices.Sorted(maps.Keys(c.Layers))
}

// SourceIDs returns the source ids in sorted order.
func (c Content) SourceIDs() []string {
	return slices.Sorted(maps.Keys(c.Sources))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case Parameters:
		return cloneMap(val)
	case Options:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}
