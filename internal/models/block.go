package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownBlockType is returned when a block's type discriminant is not one of
// board, view or card
var ErrUnknownBlockType = errors.New("unknown block type")

// BlockType discriminates the variants stored in the blocks table
type BlockType string

const (
	BlockTypeBoard BlockType = "board"
	BlockTypeView  BlockType = "view"
	BlockTypeCard  BlockType = "card"
)

// Valid reports whether t is a known block type
func (t BlockType) Valid() bool {
	switch t {
	case BlockTypeBoard, BlockTypeView, BlockTypeCard:
		return true
	}
	return false
}

// Block is the persisted unit of data shared by boards, views and cards.
// Timestamps are Unix milliseconds; DeleteAt is zero while the block is alive.
type Block struct {
	ID       string     `json:"id" db:"id"`
	ParentID string     `json:"parent_id" db:"parent_id"`
	RootID   string     `json:"root_id" db:"root_id"`
	Type     BlockType  `json:"type" db:"type"`
	Title    string     `json:"title" db:"title"`
	Fields   JSONFields `json:"fields,omitempty" db:"fields"`
	CreateAt int64      `json:"create_at" db:"create_at"`
	UpdateAt int64      `json:"update_at" db:"update_at"`
	DeleteAt int64      `json:"delete_at" db:"delete_at"`
}

// NowMillis returns the current time in the block timestamp unit
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

func newBlock(id, parentID, rootID string, blockType BlockType, title string) Block {
	now := NowMillis()
	return Block{
		ID:       id,
		ParentID: parentID,
		RootID:   rootID,
		Type:     blockType,
		Title:    title,
		CreateAt: now,
		UpdateAt: now,
	}
}

// IsDeleted reports whether the block is a tombstone
func (b *Block) IsDeleted() bool {
	return b.DeleteAt != 0
}

// SoftDelete tombstones the block at the given time
func (b *Block) SoftDelete(at int64) {
	b.DeleteAt = at
	b.UpdateAt = at
}

// JSONFields is the raw type-specific payload of a block, stored as JSONB
type JSONFields []byte

// MarshalJSON implements json.Marshaler
func (f JSONFields) MarshalJSON() ([]byte, error) {
	if len(f) == 0 {
		return []byte("{}"), nil
	}
	return f, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (f *JSONFields) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = nil
		return nil
	}
	*f = append((*f)[:0], data...)
	return nil
}

// Value implements driver.Valuer
func (f JSONFields) Value() (driver.Value, error) {
	if len(f) == 0 {
		return "{}", nil
	}
	return string(f), nil
}

// Scan implements sql.Scanner
func (f *JSONFields) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*f = nil
	case []byte:
		*f = append(JSONFields(nil), v...)
	case string:
		*f = JSONFields(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONFields", src)
	}
	return nil
}

// Entity is one hydrated block variant: *Board, *View or *Card
type Entity interface {
	Header() *Block
	ToBlock() (Block, error)
	entity()
}

// Hydrate decodes the type-specific fields of b into its variant
func Hydrate(b Block) (Entity, error) {
	switch b.Type {
	case BlockTypeBoard:
		return HydrateBoard(b)
	case BlockTypeView:
		return HydrateView(b)
	case BlockTypeCard:
		return HydrateCard(b)
	default:
		return nil, fmt.Errorf("%w: %q (block %s)", ErrUnknownBlockType, b.Type, b.ID)
	}
}

// splitFields detaches the raw payload from the header and decodes it into dst
func splitFields(b *Block, dst interface{}) (JSONFields, error) {
	raw := b.Fields
	b.Fields = nil
	if len(raw) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, fmt.Errorf("decoding fields of %s %s: %w", b.Type, b.ID, err)
	}
	return raw, nil
}

// mergeFields encodes known over the keys of raw, keeping keys this version
// does not understand
func mergeFields(raw JSONFields, known interface{}) (JSONFields, error) {
	encoded, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return encoded, nil
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return encoded, nil
	}
	overlay := map[string]json.RawMessage{}
	if err := json.Unmarshal(encoded, &overlay); err != nil {
		return nil, err
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return json.Marshal(merged)
}
