package repository

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/garrettallen/cardboards/internal/models"
)

// MemoryBlockRepository keeps blocks in process memory. It backs development
// servers without a DATABASE_URL and service tests.
type MemoryBlockRepository struct {
	mu     sync.RWMutex
	blocks map[string]models.Block
}

// NewMemoryBlockRepository creates an empty in-memory BlockRepository
func NewMemoryBlockRepository() *MemoryBlockRepository {
	return &MemoryBlockRepository{
		blocks: make(map[string]models.Block),
	}
}

// Transaction runs fn without a database transaction; fn receives a nil Tx
func (r *MemoryBlockRepository) Transaction(_ context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

// GetSubtree retrieves the board block and every live block under it
func (r *MemoryBlockRepository) GetSubtree(_ context.Context, boardID string) ([]models.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	blocks := []models.Block{}
	for _, block := range r.blocks {
		if (block.ID == boardID || block.RootID == boardID) && block.DeleteAt == 0 {
			blocks = append(blocks, cloneBlock(block))
		}
	}
	sortBlocks(blocks)
	return blocks, nil
}

// GetByID retrieves a block by ID, tombstones included
func (r *MemoryBlockRepository) GetByID(_ context.Context, id string) (*models.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	block, ok := r.blocks[id]
	if !ok {
		return nil, nil
	}
	out := cloneBlock(block)
	return &out, nil
}

// ListBoards retrieves a paginated list of live board blocks, newest first
func (r *MemoryBlockRepository) ListBoards(_ context.Context, offset, limit int) ([]models.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	boards := []models.Block{}
	for _, block := range r.blocks {
		if block.Type == models.BlockTypeBoard && block.DeleteAt == 0 {
			boards = append(boards, cloneBlock(block))
		}
	}
	sort.Slice(boards, func(i, j int) bool {
		if boards[i].CreateAt != boards[j].CreateAt {
			return boards[i].CreateAt > boards[j].CreateAt
		}
		return boards[i].ID < boards[j].ID
	})

	if offset >= len(boards) {
		return []models.Block{}, nil
	}
	end := len(boards)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return boards[offset:end], nil
}

// Upsert stores blocks, never replacing a more recent one
func (r *MemoryBlockRepository) Upsert(_ context.Context, blocks []models.Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, block := range blocks {
		if existing, ok := r.blocks[block.ID]; ok {
			if existing.UpdateAt > block.UpdateAt {
				continue
			}
			block.CreateAt = existing.CreateAt
		}
		r.blocks[block.ID] = cloneBlock(block)
	}
	return nil
}

// Delete tombstones a live block and returns it, or nil when the block is unknown
func (r *MemoryBlockRepository) Delete(_ context.Context, id string, deleteAt int64) (*models.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	block, ok := r.blocks[id]
	if !ok || block.DeleteAt != 0 {
		return nil, nil
	}
	block.SoftDelete(deleteAt)
	r.blocks[id] = block

	out := cloneBlock(block)
	return &out, nil
}

func cloneBlock(block models.Block) models.Block {
	block.Fields = slices.Clone(block.Fields)
	return block
}

func sortBlocks(blocks []models.Block) {
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].CreateAt != blocks[j].CreateAt {
			return blocks[i].CreateAt < blocks[j].CreateAt
		}
		return strings.Compare(blocks[i].ID, blocks[j].ID) < 0
	})
}
