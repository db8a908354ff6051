package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/garrettallen/cardboards/internal/database/repository"
	"github.com/garrettallen/cardboards/internal/models"
)

var (
	ErrBlockNotFound = errors.New("block not found")
	ErrInvalidBlock  = errors.New("invalid block")
)

// BlockService handles block persistence and change notification
type BlockService interface {
	GetSubtree(ctx context.Context, boardID string) ([]models.Block, error)
	GetBlock(ctx context.Context, boardID, blockID string) (*models.Block, error)
	ListBoards(ctx context.Context, page, pageSize int) ([]*models.Board, error)
	UpsertBlocks(ctx context.Context, boardID string, blocks []models.Block) ([]models.Block, error)
	EnsureBlocks(ctx context.Context, boardID string, blocks []models.Block) ([]models.Block, error)
	DeleteBlock(ctx context.Context, boardID, blockID string) (*models.Block, error)
}

type blockService struct {
	blockRepo repository.BlockRepository
	hub       *UpdateHub
	logger    *zap.Logger
}

// NewBlockService creates a new BlockService
func NewBlockService(blockRepo repository.BlockRepository, hub *UpdateHub, logger *zap.Logger) BlockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &blockService{
		blockRepo: blockRepo,
		hub:       hub,
		logger:    logger.Named("blocks"),
	}
}

// GetSubtree retrieves the live blocks of a board
func (s *blockService) GetSubtree(ctx context.Context, boardID string) ([]models.Block, error) {
	return s.blockRepo.GetSubtree(ctx, boardID)
}

// GetBlock retrieves one live block of a board
func (s *blockService) GetBlock(ctx context.Context, boardID, blockID string) (*models.Block, error) {
	block, err := s.blockRepo.GetByID(ctx, blockID)
	if err != nil {
		return nil, err
	}
	if block == nil || block.IsDeleted() || !belongsTo(*block, boardID) {
		return nil, ErrBlockNotFound
	}
	return block, nil
}

// ListBoards retrieves a paginated list of boards
func (s *blockService) ListBoards(ctx context.Context, page, pageSize int) ([]*models.Board, error) {
	offset := (page - 1) * pageSize
	if offset < 0 {
		offset = 0
	}

	blocks, err := s.blockRepo.ListBoards(ctx, offset, pageSize)
	if err != nil {
		return nil, err
	}

	boards := make([]*models.Board, 0, len(blocks))
	for _, block := range blocks {
		board, err := models.HydrateBoard(block)
		if err != nil {
			s.logger.Error("skipping undecodable board", zap.String("board_id", block.ID), zap.Error(err))
			continue
		}
		boards = append(boards, board)
	}
	return boards, nil
}

// UpsertBlocks validates, stamps and stores blocks of one board, then notifies
// subscribers. Every problem is reported in a single ErrInvalidBlock error.
func (s *blockService) UpsertBlocks(ctx context.Context, boardID string, blocks []models.Block) ([]models.Block, error) {
	if len(blocks) == 0 {
		return []models.Block{}, nil
	}

	now := models.NowMillis()
	stamped := make([]models.Block, len(blocks))
	for i, block := range blocks {
		if block.CreateAt == 0 {
			block.CreateAt = now
		}
		block.UpdateAt = now
		stamped[i] = normalize(block)
	}
	if err := s.validate(ctx, boardID, stamped); err != nil {
		return nil, err
	}

	if err := s.blockRepo.Upsert(ctx, stamped); err != nil {
		return nil, err
	}

	s.logger.Debug("blocks stored", zap.String("board_id", boardID), zap.Int("count", len(stamped)))
	s.hub.Publish(stamped)
	return stamped, nil
}

// EnsureBlocks stores blocks derived from an earlier read of the board without
// restamping them. A block whose stored row was updated after that read is left
// untouched. Only the blocks actually written are returned and published.
func (s *blockService) EnsureBlocks(ctx context.Context, boardID string, blocks []models.Block) ([]models.Block, error) {
	if len(blocks) == 0 {
		return []models.Block{}, nil
	}

	normalized := make([]models.Block, len(blocks))
	for i, block := range blocks {
		normalized[i] = normalize(block)
	}
	if err := s.validate(ctx, boardID, normalized); err != nil {
		return nil, err
	}

	if err := s.blockRepo.Upsert(ctx, normalized); err != nil {
		return nil, err
	}

	written := make([]models.Block, 0, len(normalized))
	for _, block := range normalized {
		stored, err := s.blockRepo.GetByID(ctx, block.ID)
		if err != nil {
			return nil, err
		}
		if stored == nil || stored.UpdateAt != block.UpdateAt {
			s.logger.Info("block changed since it was read, keeping stored version",
				zap.String("board_id", boardID),
				zap.String("block_id", block.ID))
			continue
		}
		written = append(written, *stored)
	}

	if len(written) > 0 {
		s.hub.Publish(written)
	}
	return written, nil
}

func normalize(block models.Block) models.Block {
	if block.Type == models.BlockTypeBoard && block.RootID == "" {
		block.RootID = block.ID
	}
	return block
}

// validate checks that blocks belong to boardID, never move between boards and
// are well formed
func (s *blockService) validate(ctx context.Context, boardID string, blocks []models.Block) error {
	var result *multierror.Error
	for _, block := range blocks {
		if !belongsTo(block, boardID) {
			result = multierror.Append(result, fmt.Errorf("block %q: does not belong to board %q", block.ID, boardID))
			continue
		}
		if block.ID == "" {
			continue
		}
		existing, err := s.blockRepo.GetByID(ctx, block.ID)
		if err != nil {
			return err
		}
		if existing != nil && existing.RootID != block.RootID {
			result = multierror.Append(result, fmt.Errorf("block %q: belongs to board %q and cannot move to %q",
				block.ID, existing.RootID, block.RootID))
		}
	}
	if err := repository.ValidateBlocks(blocks); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	return nil
}

// DeleteBlock tombstones a block of a board and notifies subscribers
func (s *blockService) DeleteBlock(ctx context.Context, boardID, blockID string) (*models.Block, error) {
	if _, err := s.GetBlock(ctx, boardID, blockID); err != nil {
		return nil, err
	}

	deleted, err := s.blockRepo.Delete(ctx, blockID, models.NowMillis())
	if err != nil {
		return nil, err
	}
	if deleted == nil {
		return nil, ErrBlockNotFound
	}

	s.logger.Debug("block deleted", zap.String("board_id", boardID), zap.String("block_id", blockID))
	s.hub.Publish([]models.Block{*deleted})
	return deleted, nil
}

func belongsTo(block models.Block, boardID string) bool {
	if block.Type == models.BlockTypeBoard {
		return block.ID == boardID
	}
	return block.RootID == boardID
}
