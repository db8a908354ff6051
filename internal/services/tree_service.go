package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garrettallen/cardboards/internal/boardtree"
	"github.com/garrettallen/cardboards/internal/models"
)

// ErrViewNotFound is returned when a requested view does not exist on the board
var ErrViewNotFound = errors.New("view not found")

// TreeService builds board trees from stored blocks and keeps them current
type TreeService interface {
	Sync(ctx context.Context, boardID, viewID, searchText string) (*boardtree.BoardTree, error)
	EnsureSchema(ctx context.Context, boardID, viewID string) (*boardtree.BoardTree, error)
	Watch(ctx context.Context, boardID, viewID, searchText string, fn func(*boardtree.BoardTree) error) error
	CreateCard(ctx context.Context, boardID, viewID, title string) (*models.Card, error)
}

type treeService struct {
	blocks       BlockService
	hub          *UpdateHub
	builder      *boardtree.Builder
	ensureSchema bool
	logger       *zap.Logger
}

// NewTreeService creates a new TreeService. With ensureSchema set, CreateCard
// persists the properties and views synthesized for the board before adding
// the card.
func NewTreeService(blocks BlockService, hub *UpdateHub, builder *boardtree.Builder, ensureSchema bool, logger *zap.Logger) TreeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &treeService{
		blocks:       blocks,
		hub:          hub,
		builder:      builder,
		ensureSchema: ensureSchema,
		logger:       logger.Named("trees"),
	}
}

// Sync builds the tree of a board seen through viewID and filtered by searchText.
// It never writes: synthesized schema only lives in the returned tree.
func (s *treeService) Sync(ctx context.Context, boardID, viewID, searchText string) (*boardtree.BoardTree, error) {
	tree, err := s.builder.Sync(ctx, s.blocks, boardID, viewID)
	if err != nil {
		return nil, err
	}
	if searchText != "" {
		tree = tree.CopyWithSearchText(searchText)
	}
	return tree, nil
}

// EnsureSchema persists the property and view synthesized for a board that
// lacks them and returns the tree rebuilt from the store. Synthesized blocks
// keep the timestamps of the read they came from, so a board edited in the
// meantime is not overwritten.
func (s *treeService) EnsureSchema(ctx context.Context, boardID, viewID string) (*boardtree.BoardTree, error) {
	tree, err := s.Sync(ctx, boardID, viewID, "")
	if err != nil {
		return nil, err
	}
	if !tree.SchemaChanged() {
		return tree, nil
	}

	written, err := s.blocks.EnsureBlocks(ctx, boardID, tree.SynthesizedBlocks())
	if err != nil {
		return nil, fmt.Errorf("persisting synthesized schema of board %s: %w", boardID, err)
	}
	s.logger.Info("persisted synthesized schema",
		zap.String("board_id", boardID),
		zap.Int("written", len(written)))
	return s.Sync(ctx, boardID, tree.ActiveView().ID, "")
}

// Watch calls fn with the current tree and again every time an update changes
// it. It returns when ctx is done, fn fails or the board is deleted.
func (s *treeService) Watch(ctx context.Context, boardID, viewID, searchText string, fn func(*boardtree.BoardTree) error) error {
	for {
		if s.hub.Closed() {
			return ErrHubClosed
		}
		sub := s.hub.Subscribe(boardID)
		tree, err := s.Sync(ctx, boardID, viewID, searchText)
		if err != nil {
			sub.Close()
			return err
		}
		if err := fn(tree); err != nil {
			sub.Close()
			return err
		}

		err = s.follow(ctx, sub, tree, fn)
		sub.Close()
		if !errors.Is(err, errResync) {
			return err
		}
		if s.hub.Closed() {
			return ErrHubClosed
		}
		s.logger.Debug("resyncing board tree", zap.String("board_id", boardID))
		viewID = tree.ActiveView().ID
	}
}

var errResync = errors.New("subscription closed")

func (s *treeService) follow(ctx context.Context, sub *Subscription, tree *boardtree.BoardTree, fn func(*boardtree.BoardTree) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case blocks, ok := <-sub.Updates():
			if !ok {
				return errResync
			}
			next := s.builder.IncrementalUpdate(tree, blocks)
			if next == nil {
				return boardtree.ErrBoardNotFound
			}
			if next == tree {
				continue
			}
			tree = next
			if err := fn(tree); err != nil {
				return err
			}
		}
	}
}

// CreateCard adds a card to the board whose properties satisfy the active
// view's filter, so the new card is visible in that view
func (s *treeService) CreateCard(ctx context.Context, boardID, viewID, title string) (*models.Card, error) {
	var (
		tree *boardtree.BoardTree
		err  error
	)
	if s.ensureSchema {
		tree, err = s.EnsureSchema(ctx, boardID, viewID)
	} else {
		tree, err = s.Sync(ctx, boardID, viewID, "")
	}
	if err != nil {
		return nil, err
	}
	view := tree.ActiveView()
	if viewID != "" && view.ID != viewID {
		return nil, ErrViewNotFound
	}

	card := models.NewCard(boardID, title)
	card.Properties = s.builder.PropertiesThatMeetFilterGroup(view.Filter, tree.Board().CardProperties)

	block, err := card.ToBlock()
	if err != nil {
		return nil, err
	}
	stored, err := s.blocks.UpsertBlocks(ctx, boardID, []models.Block{block})
	if err != nil {
		return nil, err
	}
	return models.HydrateCard(stored[0])
}
