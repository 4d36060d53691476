package document

import (
	"strings"

	"github.com/roach88/gisdoc/internal/ir"
	"github.com/roach88/gisdoc/internal/layertree"
)

// ToJSON returns the document as indented canonical JSON.
func (d *Document) ToJSON() ([]byte, error) {
	return ir.MarshalCanonicalIndent(d.Content())
}

// String returns the document as indented canonical JSON, or "" if a value
// cannot be encoded.
func (d *Document) String() string {
	data, err := d.ToJSON()
	if err != nil {
		d.logger.Error("encode document", "error", err)
		return ""
	}
	return string(data)
}

// FromString replaces the document content with the JSON in s.
// See FromJSON.
func (d *Document) FromString(s string) error {
	return d.FromJSON([]byte(s))
}

// FromJSON replaces the document content with data in a single update.
//
// The input is validated before anything is applied: it must be JSON,
// match the embedded schema, and have a layer tree whose leaves reference
// existing layers with no layer id or group name used twice. Any failure is
// FORMAT_ERROR and leaves the document untouched. Missing options default to
// latitude, longitude and zoom of 0.
func (d *Document) FromJSON(data []byte) error {
	c, err := ParseContent(data)
	if err != nil {
		return err
	}
	return d.Transact(func(tx *Tx) error {
		return tx.replaceAll(c)
	})
}

// ParseContent validates data and returns the content it describes,
// without installing it anywhere.
func ParseContent(data []byte) (ir.Content, error) {
	generic, err := ir.DecodeValue(data)
	if err != nil {
		return ir.Content{}, NewError(ErrCodeFormat, "", "%v", err)
	}
	normalized, err := ir.MarshalCanonical(generic)
	if err != nil {
		return ir.Content{}, NewError(ErrCodeFormat, "", "%v", err)
	}
	if err := ValidateSchema(normalized); err != nil {
		return ir.Content{}, err
	}

	var c ir.Content
	if err := ir.Decode(normalized, &c); err != nil {
		return ir.Content{}, NewError(ErrCodeFormat, "", "%v", err)
	}
	if c.Layers == nil {
		c.Layers = map[string]ir.Layer{}
	}
	if c.Sources == nil {
		c.Sources = map[string]ir.Source{}
	}
	if c.LayerTree == nil {
		c.LayerTree = []ir.LayerTreeItem{}
	}
	if c.Options == nil {
		c.Options = ir.DefaultOptions()
	}

	violations := layertree.CheckIntegrity(c.LayerTree, func(id string) bool {
		_, ok := c.Layers[id]
		return ok
	})
	if len(violations) > 0 {
		msgs := make([]string, len(violations))
		for i, v := range violations {
			msgs[i] = v.String()
		}
		return ir.Content{}, NewError(ErrCodeFormat, "", "layer tree: %s", strings.Join(msgs, "; "))
	}
	return c, nil
}
