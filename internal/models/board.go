package models

import (
	"github.com/google/uuid"
)

// PropertyType is the value shape of a card property
type PropertyType string

const (
	PropertyTypeText        PropertyType = "text"
	PropertyTypeNumber      PropertyType = "number"
	PropertyTypeSelect      PropertyType = "select"
	PropertyTypeMultiSelect PropertyType = "multiSelect"
	PropertyTypePerson      PropertyType = "person"
	PropertyTypeDate        PropertyType = "date"
	PropertyTypeCheckbox    PropertyType = "checkbox"
	PropertyTypeURL         PropertyType = "url"
	PropertyTypeEmail       PropertyType = "email"
	PropertyTypePhone       PropertyType = "phone"
	PropertyTypeCreatedTime PropertyType = "createdTime"
	PropertyTypeUpdatedTime PropertyType = "updatedTime"
)

// HasOptions reports whether values of this type are option ids
func (t PropertyType) HasOptions() bool {
	return t == PropertyTypeSelect || t == PropertyTypeMultiSelect
}

// PropertyOption is one choice of a select or multiSelect property
type PropertyOption struct {
	ID    string `json:"id"`
	Value string `json:"value"`
	Color string `json:"color"`
}

// PropertyTemplate describes one card property of a board
type PropertyTemplate struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Type    PropertyType     `json:"type"`
	Options []PropertyOption `json:"options"`
}

// Option returns the option with the given id, or nil
func (p *PropertyTemplate) Option(id string) *PropertyOption {
	for i := range p.Options {
		if p.Options[i].ID == id {
			return &p.Options[i]
		}
	}
	return nil
}

// DisplayValue resolves option ids to their text; other types return the raw value
func (p *PropertyTemplate) DisplayValue(v PropertyValue) string {
	if !p.Type.HasOptions() {
		return v.String()
	}
	values := v.Values()
	resolved := make([]string, 0, len(values))
	for _, id := range values {
		if option := p.Option(id); option != nil {
			resolved = append(resolved, option.Value)
		}
	}
	return joinValues(resolved)
}

type boardFields struct {
	Description    string             `json:"description,omitempty"`
	Icon           string             `json:"icon,omitempty"`
	CardProperties []PropertyTemplate `json:"card_properties"`
}

// Board is the root block owning the card property templates
type Board struct {
	Block
	Description    string             `json:"description,omitempty"`
	Icon           string             `json:"icon,omitempty"`
	CardProperties []PropertyTemplate `json:"card_properties"`

	raw JSONFields
}

// NewBoard creates a new board with the given title
func NewBoard(title string) *Board {
	id := uuid.NewString()
	return &Board{
		Block:          newBlock(id, "", id, BlockTypeBoard, title),
		CardProperties: []PropertyTemplate{},
	}
}

// HydrateBoard decodes a board block
func HydrateBoard(b Block) (*Board, error) {
	var f boardFields
	raw, err := splitFields(&b, &f)
	if err != nil {
		return nil, err
	}
	if f.CardProperties == nil {
		f.CardProperties = []PropertyTemplate{}
	}
	return &Board{
		Block:          b,
		Description:    f.Description,
		Icon:           f.Icon,
		CardProperties: f.CardProperties,
		raw:            raw,
	}, nil
}

func (b *Board) entity() {}

// Header returns the common block record
func (b *Board) Header() *Block { return &b.Block }

// ToBlock encodes the board back into a persistable block
func (b *Board) ToBlock() (Block, error) {
	fields, err := mergeFields(b.raw, boardFields{
		Description:    b.Description,
		Icon:           b.Icon,
		CardProperties: b.CardProperties,
	})
	if err != nil {
		return Block{}, err
	}
	out := b.Block
	out.Type = BlockTypeBoard
	out.Fields = fields
	return out, nil
}

// Property returns the template with the given id, or nil
func (b *Board) Property(id string) *PropertyTemplate {
	for i := range b.CardProperties {
		if b.CardProperties[i].ID == id {
			return &b.CardProperties[i]
		}
	}
	return nil
}

// FirstSelectProperty returns the first select template, or nil
func (b *Board) FirstSelectProperty() *PropertyTemplate {
	for i := range b.CardProperties {
		if b.CardProperties[i].Type == PropertyTypeSelect {
			return &b.CardProperties[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the board
func (b *Board) Clone() *Board {
	c := *b
	c.CardProperties = make([]PropertyTemplate, len(b.CardProperties))
	for i, p := range b.CardProperties {
		p.Options = append([]PropertyOption(nil), p.Options...)
		c.CardProperties[i] = p
	}
	c.raw = append(JSONFields(nil), b.raw...)
	return &c
}

// NewStatusProperty creates the select property synthesized for boards that have
// none. The id is derived from the board id so that repeated builds agree.
func NewStatusProperty(boardID string) PropertyTemplate {
	return PropertyTemplate{
		ID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(boardID+"/status")).String(),
		Name:    "Status",
		Type:    PropertyTypeSelect,
		Options: []PropertyOption{},
	}
}
