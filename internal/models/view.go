package models

import (
	"fmt"

	"github.com/google/uuid"
)

// ViewType selects how a view renders its cards
type ViewType string

const (
	ViewTypeBoard    ViewType = "board"
	ViewTypeTable    ViewType = "table"
	ViewTypeGallery  ViewType = "gallery"
	ViewTypeCalendar ViewType = "calendar"
)

// Valid reports whether t is a known view type
func (t ViewType) Valid() bool {
	switch t {
	case ViewTypeBoard, ViewTypeTable, ViewTypeGallery, ViewTypeCalendar:
		return true
	}
	return false
}

// TitleColumnID is the pseudo property id used to sort by card title
const TitleColumnID = "__title"

// SortOption is one sort key of a view
type SortOption struct {
	PropertyID string `json:"property_id"`
	Reversed   bool   `json:"reversed"`
}

type viewFields struct {
	ViewType           ViewType     `json:"view_type"`
	GroupByID          string       `json:"group_by_id,omitempty"`
	Filter             FilterGroup  `json:"filter"`
	SortOptions        []SortOption `json:"sort_options"`
	VisiblePropertyIDs []string     `json:"visible_property_ids"`
	VisibleOptionIDs   []string     `json:"visible_option_ids"`
	HiddenOptionIDs    []string     `json:"hidden_option_ids"`
	CardOrder          []string     `json:"card_order"`
}

// View is a saved filter/sort/group configuration of a board
type View struct {
	Block
	ViewType           ViewType     `json:"view_type"`
	GroupByID          string       `json:"group_by_id,omitempty"`
	Filter             FilterGroup  `json:"filter"`
	SortOptions        []SortOption `json:"sort_options"`
	VisiblePropertyIDs []string     `json:"visible_property_ids"`
	VisibleOptionIDs   []string     `json:"visible_option_ids"`
	HiddenOptionIDs    []string     `json:"hidden_option_ids"`
	CardOrder          []string     `json:"card_order"`

	raw JSONFields
}

// NewView creates a new view of the given board
func NewView(boardID, title string, viewType ViewType) *View {
	return newViewWithID(uuid.NewString(), boardID, title, viewType)
}

func newViewWithID(id, boardID, title string, viewType ViewType) *View {
	return &View{
		Block:    newBlock(id, boardID, boardID, BlockTypeView, title),
		ViewType: viewType,
		Filter:   FilterGroup{Operation: FilterAnd},
	}
}

// NewDefaultView creates the board view synthesized for boards that have none.
// The id is derived from the board id so that repeated builds agree.
func NewDefaultView(boardID, groupByID string) *View {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(boardID+"/default-view")).String()
	view := newViewWithID(id, boardID, "Board view", ViewTypeBoard)
	view.GroupByID = groupByID
	return view
}

// HydrateView decodes a view block
func HydrateView(b Block) (*View, error) {
	var f viewFields
	raw, err := splitFields(&b, &f)
	if err != nil {
		return nil, err
	}
	if f.Filter.Operation == "" {
		f.Filter.Operation = FilterAnd
	}
	return &View{
		Block:              b,
		ViewType:           f.ViewType,
		GroupByID:          f.GroupByID,
		Filter:             f.Filter,
		SortOptions:        f.SortOptions,
		VisiblePropertyIDs: f.VisiblePropertyIDs,
		VisibleOptionIDs:   f.VisibleOptionIDs,
		HiddenOptionIDs:    f.HiddenOptionIDs,
		CardOrder:          f.CardOrder,
		raw:                raw,
	}, nil
}

func (v *View) entity() {}

// Header returns the common block record
func (v *View) Header() *Block { return &v.Block }

// Validate reports a view the board tree cannot render: an unknown view type
// or a malformed filter
func (v *View) Validate() error {
	if !v.ViewType.Valid() {
		return fmt.Errorf("unknown view type %q", v.ViewType)
	}
	if err := v.Filter.Validate(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	return nil
}

// ToBlock encodes the view back into a persistable block
func (v *View) ToBlock() (Block, error) {
	fields, err := mergeFields(v.raw, viewFields{
		ViewType:           v.ViewType,
		GroupByID:          v.GroupByID,
		Filter:             v.Filter,
		SortOptions:        v.SortOptions,
		VisiblePropertyIDs: v.VisiblePropertyIDs,
		VisibleOptionIDs:   v.VisibleOptionIDs,
		HiddenOptionIDs:    v.HiddenOptionIDs,
		CardOrder:          v.CardOrder,
	})
	if err != nil {
		return Block{}, err
	}
	out := v.Block
	out.Type = BlockTypeView
	out.Fields = fields
	return out, nil
}
