package harness

import (
	"fmt"

	"github.com/roach88/gisdoc/internal/ir"
	"github.com/roach88/gisdoc/internal/model"
)

// args wraps a step's YAML arguments.
type args map[string]any

func (a args) str(key string) string {
	s, _ := a[key].(string)
	return s
}

func (a args) require(key string) (string, error) {
	s := a.str(key)
	if s == "" {
		return "", fmt.Errorf("missing string argument %q", key)
	}
	return s, nil
}

func (a args) boolean(key string, def bool) bool {
	if b, ok := a[key].(bool); ok {
		return b
	}
	return def
}

// placement turns the optional group and index arguments into item
// options.
func (a args) placement() ([]model.ItemOption, error) {
	var opts []model.ItemOption
	if g := a.str("group"); g != "" {
		opts = append(opts, model.InGroup(g))
	}
	if v, ok := a["index"]; ok {
		i, ok := v.(int)
		if !ok {
			return nil, fmt.Errorf("index must be an integer, got %T", v)
		}
		opts = append(opts, model.AtIndex(i))
	}
	return opts, nil
}

func (a args) layer() ir.Layer {
	l := ir.Layer{
		Name:    a.str("name"),
		Type:    ir.LayerType(a.str("type")),
		Visible: a.boolean("visible", true),
	}
	if l.Name == "" {
		l.Name = a.str("id")
	}
	if l.Type == "" {
		l.Type = ir.LayerTypeRaster
	}
	if src := a.str("source"); src != "" {
		l.Parameters = ir.Parameters{"source": src}
	}
	return l
}

type operation func(m *model.Model, a args) error

// operations maps scenario op names onto model calls.
var operations = map[string]operation{
	"add_layer": func(m *model.Model, a args) error {
		id, err := a.require("id")
		if err != nil {
			return err
		}
		opts, err := a.placement()
		if err != nil {
			return err
		}
		return m.AddLayer(id, a.layer(), opts...)
	},
	"update_layer": func(m *model.Model, a args) error {
		id, err := a.require("id")
		if err != nil {
			return err
		}
		return m.UpdateLayer(id, a.layer())
	},
	"remove_layer": func(m *model.Model, a args) error {
		id, err := a.require("id")
		if err != nil {
			return err
		}
		return m.RemoveLayer(id)
	},
	"add_group": func(m *model.Model, a args) error {
		opts, err := a.placement()
		if err != nil {
			return err
		}
		return m.AddGroup(a.str("name"), opts...)
	},
	"remove_layer_group": func(m *model.Model, a args) error {
		name, err := a.require("name")
		if err != nil {
			return err
		}
		return m.RemoveLayerGroup(name)
	},
	"rename_layer_group": func(m *model.Model, a args) error {
		name, err := a.require("name")
		if err != nil {
			return err
		}
		return m.RenameLayerGroup(name, a.str("new_name"))
	},
	"move_layer": func(m *model.Model, a args) error {
		id, err := a.require("id")
		if err != nil {
			return err
		}
		opts, err := a.placement()
		if err != nil {
			return err
		}
		return m.MoveItem(model.LayerRef(id), opts...)
	},
	"move_group": func(m *model.Model, a args) error {
		name, err := a.require("name")
		if err != nil {
			return err
		}
		opts, err := a.placement()
		if err != nil {
			return err
		}
		return m.MoveItem(model.GroupRef(name), opts...)
	},
	"add_source": func(m *model.Model, a args) error {
		id, err := a.require("id")
		if err != nil {
			return err
		}
		return m.AddSource(id, ir.Source{Name: a.str("name"), Type: ir.SourceType(a.str("type"))})
	},
	"remove_source": func(m *model.Model, a args) error {
		id, err := a.require("id")
		if err != nil {
			return err
		}
		return m.RemoveSource(id)
	},
	"set_option": func(m *model.Model, a args) error {
		key, err := a.require("key")
		if err != nil {
			return err
		}
		return m.SetOption(key, a["value"])
	},
	"import": func(m *model.Model, a args) error {
		doc, err := a.require("document")
		if err != nil {
			return err
		}
		return m.FromString(doc)
	},
}
