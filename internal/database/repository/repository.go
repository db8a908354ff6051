package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"

	"github.com/garrettallen/cardboards/internal/models"
)

// Repository defines the behaviour shared by every repository
type Repository interface {
	// Transaction executes fn within a database transaction
	Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error
}

// BaseRepository holds the connection shared by Postgres repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new BaseRepository
func NewBaseRepository(db *sqlx.DB) *BaseRepository {
	return &BaseRepository{
		db: db,
	}
}

// Transaction executes fn within a database transaction, rolling back on error or panic
func (r *BaseRepository) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// GetDB returns the database connection
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// ValidateBlocks checks the structural fields every stored block needs, decodes
// the type-specific fields and rejects views that cannot be rendered. All
// problems are reported at once.
func ValidateBlocks(blocks []models.Block) error {
	var result *multierror.Error
	for i, block := range blocks {
		if block.ID == "" {
			result = multierror.Append(result, fmt.Errorf("block %d: missing id", i))
		}
		if !block.Type.Valid() {
			result = multierror.Append(result, fmt.Errorf("block %q: unknown type %q", block.ID, block.Type))
		}
		if block.Type != models.BlockTypeBoard && block.RootID == "" {
			result = multierror.Append(result, fmt.Errorf("block %q: missing root_id", block.ID))
		}
		if block.UpdateAt < block.CreateAt {
			result = multierror.Append(result, fmt.Errorf("block %q: update_at precedes create_at", block.ID))
		}
		if !block.Type.Valid() {
			continue
		}
		entity, err := models.Hydrate(block)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("block %q: %w", block.ID, err))
			continue
		}
		if view, ok := entity.(*models.View); ok {
			if err := view.Validate(); err != nil {
				result = multierror.Append(result, fmt.Errorf("block %q: %w", block.ID, err))
			}
		}
	}
	return result.ErrorOrNil()
}
