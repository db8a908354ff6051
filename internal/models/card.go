package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// PropertyValue is a card property value: a single string, or a list of option
// ids for multiSelect properties
type PropertyValue struct {
	Text  string
	List  []string
	Multi bool
}

// StringValue wraps a scalar value
func StringValue(s string) PropertyValue {
	return PropertyValue{Text: s}
}

// ListValue wraps a multi-valued property
func ListValue(values ...string) PropertyValue {
	return PropertyValue{List: append([]string{}, values...), Multi: true}
}

// IsEmpty reports whether the value is unset, an empty string or an empty list
func (v PropertyValue) IsEmpty() bool {
	if v.Multi {
		return len(v.List) == 0
	}
	return v.Text == ""
}

// Values returns the value as a list; an empty scalar yields no elements
func (v PropertyValue) Values() []string {
	if v.Multi {
		return append([]string(nil), v.List...)
	}
	if v.Text == "" {
		return nil
	}
	return []string{v.Text}
}

// String returns the raw text of the value
func (v PropertyValue) String() string {
	if v.Multi {
		return joinValues(v.List)
	}
	return v.Text
}

func joinValues(values []string) string {
	return strings.Join(values, ", ")
}

// MarshalJSON implements json.Marshaler
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	if v.Multi {
		list := v.List
		if list == nil {
			list = []string{}
		}
		return json.Marshal(list)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts strings, string arrays, numbers and booleans.
// Zero and false decode as empty.
func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*v = PropertyValue{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &v.Text)
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("property value list: %w", err)
		}
		v.List = list
		v.Multi = true
		return nil
	case '{':
		v.Text = string(data)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		if b {
			v.Text = "true"
		}
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("property value: %w", err)
		}
		if f, err := n.Float64(); err == nil && f == 0 {
			return nil
		}
		v.Text = n.String()
		return nil
	}
}

// Float parses the value as a number
func (v PropertyValue) Float() (float64, bool) {
	if v.Multi || v.Text == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

type cardFields struct {
	Icon       string                   `json:"icon,omitempty"`
	IsTemplate bool                     `json:"is_template,omitempty"`
	Properties map[string]PropertyValue `json:"properties"`
}

// Card is a board item carrying property values
type Card struct {
	Block
	Icon       string                   `json:"icon,omitempty"`
	IsTemplate bool                     `json:"is_template"`
	Properties map[string]PropertyValue `json:"properties"`

	raw JSONFields
}

// NewCard creates a new card on the given board
func NewCard(boardID, title string) *Card {
	return &Card{
		Block:      newBlock(uuid.NewString(), boardID, boardID, BlockTypeCard, title),
		Properties: map[string]PropertyValue{},
	}
}

// HydrateCard decodes a card block
func HydrateCard(b Block) (*Card, error) {
	var f cardFields
	raw, err := splitFields(&b, &f)
	if err != nil {
		return nil, err
	}
	if f.Properties == nil {
		f.Properties = map[string]PropertyValue{}
	}
	return &Card{
		Block:      b,
		Icon:       f.Icon,
		IsTemplate: f.IsTemplate,
		Properties: f.Properties,
		raw:        raw,
	}, nil
}

func (c *Card) entity() {}

// Header returns the common block record
func (c *Card) Header() *Block { return &c.Block }

// ToBlock encodes the card back into a persistable block
func (c *Card) ToBlock() (Block, error) {
	fields, err := mergeFields(c.raw, cardFields{
		Icon:       c.Icon,
		IsTemplate: c.IsTemplate,
		Properties: c.Properties,
	})
	if err != nil {
		return Block{}, err
	}
	out := c.Block
	out.Type = BlockTypeCard
	out.Fields = fields
	return out, nil
}

// Property returns the card's value for a property id; the zero value when unset
func (c *Card) Property(id string) PropertyValue {
	return c.Properties[id]
}
