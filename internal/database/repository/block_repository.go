package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/garrettallen/cardboards/internal/models"
)

// BlockRepository defines the interface for block-related database operations
type BlockRepository interface {
	Repository
	GetSubtree(ctx context.Context, boardID string) ([]models.Block, error)
	GetByID(ctx context.Context, id string) (*models.Block, error)
	ListBoards(ctx context.Context, offset, limit int) ([]models.Block, error)
	Upsert(ctx context.Context, blocks []models.Block) error
	Delete(ctx context.Context, id string, deleteAt int64) (*models.Block, error)
}

// blockRepository implements BlockRepository on Postgres
type blockRepository struct {
	*BaseRepository
}

// NewBlockRepository creates a new Postgres-backed BlockRepository
func NewBlockRepository(db *sqlx.DB) BlockRepository {
	return &blockRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const blockColumns = `id, parent_id, root_id, type, title, fields, create_at, update_at, delete_at`

// GetSubtree retrieves the board block and every live block under it
func (r *blockRepository) GetSubtree(ctx context.Context, boardID string) ([]models.Block, error) {
	blocks := []models.Block{}
	query := `
		SELECT ` + blockColumns + ` FROM blocks
		WHERE (id = $1 OR root_id = $1) AND delete_at = 0
		ORDER BY create_at, id
	`

	if err := r.GetDB().SelectContext(ctx, &blocks, query, boardID); err != nil {
		return nil, err
	}
	return blocks, nil
}

// GetByID retrieves a block by ID, tombstones included
func (r *blockRepository) GetByID(ctx context.Context, id string) (*models.Block, error) {
	var block models.Block
	query := `SELECT ` + blockColumns + ` FROM blocks WHERE id = $1`

	err := r.GetDB().GetContext(ctx, &block, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Block not found
		}
		return nil, err
	}

	return &block, nil
}

// ListBoards retrieves a paginated list of live board blocks
func (r *blockRepository) ListBoards(ctx context.Context, offset, limit int) ([]models.Block, error) {
	boards := []models.Block{}
	query := `
		SELECT ` + blockColumns + ` FROM blocks
		WHERE type = 'board' AND delete_at = 0
		ORDER BY create_at DESC, id
		LIMIT $1 OFFSET $2
	`

	if err := r.GetDB().SelectContext(ctx, &boards, query, limit, offset); err != nil {
		return nil, err
	}
	return boards, nil
}

// Upsert inserts or replaces blocks in one transaction. A stored row is only
// replaced by a block that is at least as recent.
func (r *blockRepository) Upsert(ctx context.Context, blocks []models.Block) error {
	query := `
		INSERT INTO blocks (` + blockColumns + `)
		VALUES (:id, :parent_id, :root_id, :type, :title, :fields, :create_at, :update_at, :delete_at)
		ON CONFLICT (id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id,
			root_id = EXCLUDED.root_id,
			type = EXCLUDED.type,
			title = EXCLUDED.title,
			fields = EXCLUDED.fields,
			update_at = EXCLUDED.update_at,
			delete_at = EXCLUDED.delete_at
		WHERE blocks.update_at <= EXCLUDED.update_at
	`

	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, block := range blocks {
			if _, err := tx.NamedExecContext(ctx, query, block); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete tombstones a block and returns it, or nil when the block is unknown
func (r *blockRepository) Delete(ctx context.Context, id string, deleteAt int64) (*models.Block, error) {
	var block models.Block
	query := `
		UPDATE blocks
		SET delete_at = $1, update_at = $1
		WHERE id = $2 AND delete_at = 0
		RETURNING ` + blockColumns

	err := r.GetDB().GetContext(ctx, &block, query, deleteAt, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &block, nil
}
