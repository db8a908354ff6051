// Package boardtree derives the card list every board view renders from: the
// active view's filter, the search text, the sort options and the grouping,
// applied to the flat set of blocks persisted for one board.
//
// A BoardTree is an immutable snapshot. Switching views, changing the search
// text or applying remote updates always produces a new snapshot.
package boardtree

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/garrettallen/cardboards/internal/models"
)

var (
	ErrBoardNotFound = errors.New("board not found")
)

// BlockFetcher supplies the persisted blocks of one board
type BlockFetcher interface {
	GetSubtree(ctx context.Context, boardID string) ([]models.Block, error)
}

// Builder derives board trees and reports structural problems to its logger
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a Builder. A nil logger discards reports.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger.Named("boardtree")}
}

// BoardTree is a derived snapshot of one board seen through one view
type BoardTree struct {
	builder *Builder

	board           *models.Board
	views           []*models.View
	allCards        []*models.Card
	cardTemplates   []*models.Card
	activeView      *models.View
	groupByProperty *models.PropertyTemplate
	cards           []*models.Card
	visibleGroups   []Group
	hiddenGroups    []Group
	searchText      string

	rawBlocks   []models.Block
	synthesized []models.Block
}

// Sync fetches the board's blocks and builds a tree with the given active view
func (b *Builder) Sync(ctx context.Context, fetcher BlockFetcher, boardID, viewID string) (*BoardTree, error) {
	blocks, err := fetcher.GetSubtree(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("fetching blocks of board %s: %w", boardID, err)
	}

	tree := b.Build(blocks, boardID, viewID, "")
	if tree == nil {
		return nil, ErrBoardNotFound
	}
	return tree, nil
}

// IncrementalUpdate merges updated blocks into prev and rebuilds it, keeping the
// active view and search text. When none of the blocks concern the board, prev
// itself is returned. The result is nil when the board has been deleted.
func (b *Builder) IncrementalUpdate(prev *BoardTree, updated []models.Block) *BoardTree {
	if prev == nil {
		return nil
	}

	boardID := prev.board.ID
	relevant := make([]models.Block, 0, len(updated))
	for _, block := range updated {
		if block.DeleteAt != 0 || block.ID == boardID || block.ParentID == boardID {
			relevant = append(relevant, block)
		}
	}
	if len(relevant) < 1 {
		return prev
	}

	merged := mergeBlocks(prev.rawBlocks, relevant)
	return b.Build(merged, boardID, prev.activeView.ID, prev.searchText)
}

// mergeBlocks replaces blocks by id. An incoming block older than the stored
// one is ignored. Tombstones are kept.
func mergeBlocks(existing, incoming []models.Block) []models.Block {
	merged := slices.Clone(existing)
	index := make(map[string]int, len(merged))
	for i, block := range merged {
		index[block.ID] = i
	}
	for _, block := range incoming {
		if i, ok := index[block.ID]; ok {
			if block.UpdateAt >= merged[i].UpdateAt {
				merged[i] = block
			}
			continue
		}
		index[block.ID] = len(merged)
		merged = append(merged, block)
	}
	return merged
}

// Build derives a tree from the raw blocks of a board. An empty or unknown viewID
// selects the first view. Build returns nil when the board block is missing or
// deleted.
func (b *Builder) Build(blocks []models.Block, boardID, viewID, searchText string) *BoardTree {
	log := b.logger.With(zap.String("board_id", boardID))

	var board *models.Board
	for _, block := range blocks {
		if block.ID != boardID || block.Type != models.BlockTypeBoard {
			continue
		}
		if block.IsDeleted() {
			log.Info("board is deleted")
			return nil
		}
		hydrated, err := models.HydrateBoard(block)
		if err != nil {
			log.Error("failed to hydrate board", zap.Error(err))
			return nil
		}
		board = hydrated
	}
	if board == nil {
		log.Warn("board block missing from block set")
		return nil
	}

	t := &BoardTree{
		builder:    b,
		board:      board,
		rawBlocks:  slices.Clone(blocks),
		searchText: searchText,
	}

	for _, block := range blocks {
		if block.ID == boardID || block.IsDeleted() {
			continue
		}
		entity, err := models.Hydrate(block)
		if err != nil {
			log.Error("failed to hydrate block", zap.String("block_id", block.ID), zap.Error(err))
			continue
		}

		switch e := entity.(type) {
		case *models.Board:
			log.Debug("ignoring foreign board block", zap.String("block_id", e.ID))
		case *models.View:
			if e.RootID != boardID || e.ParentID != boardID {
				log.Error("view does not belong to board",
					zap.String("view_id", e.ID),
					zap.String("parent_id", e.ParentID),
					zap.String("root_id", e.RootID))
				continue
			}
			if !e.ViewType.Valid() {
				log.DPanic("invalid view type", zap.String("view_id", e.ID), zap.String("view_type", string(e.ViewType)))
			}
			t.views = append(t.views, e)
		case *models.Card:
			if e.RootID != boardID {
				log.Error("card root does not resolve to board",
					zap.String("card_id", e.ID),
					zap.String("root_id", e.RootID))
				continue
			}
			if e.ParentID != boardID {
				log.Error("card has orphaned parent reference",
					zap.String("card_id", e.ID),
					zap.String("parent_id", e.ParentID))
			}
			if e.IsTemplate {
				t.cardTemplates = append(t.cardTemplates, e)
			} else {
				t.allCards = append(t.allCards, e)
			}
		}
	}

	sortViews(t.views)
	sortByCreation(t.allCards)
	sortByCreation(t.cardTemplates)

	b.ensureMinimumSchema(t)
	t.activeView = b.pickView(t, viewID)
	b.derive(t)
	return t
}

func sortViews(views []*models.View) {
	c := collate.New(language.Und)
	slices.SortStableFunc(views, func(a, v *models.View) int {
		if result := c.CompareString(a.Title, v.Title); result != 0 {
			return result
		}
		return strings.Compare(a.ID, v.ID)
	})
}

func sortByCreation(cards []*models.Card) {
	slices.SortStableFunc(cards, func(a, c *models.Card) int {
		if a.CreateAt != c.CreateAt {
			if a.CreateAt < c.CreateAt {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, c.ID)
	})
}

// ensureMinimumSchema gives the board a select property and at least one view.
// Synthesized blocks are recorded on the tree so callers can persist them.
func (b *Builder) ensureMinimumSchema(t *BoardTree) bool {
	changed := false

	if t.board.FirstSelectProperty() == nil {
		t.board.CardProperties = append(t.board.CardProperties, models.NewStatusProperty(t.board.ID))
		if block, err := t.board.ToBlock(); err == nil {
			t.synthesized = append(t.synthesized, block)
		} else {
			b.logger.Error("failed to encode synthesized board property", zap.Error(err))
		}
		changed = true
	}

	if len(t.views) < 1 {
		view := models.NewDefaultView(t.board.ID, t.board.FirstSelectProperty().ID)
		view.CreateAt = t.board.CreateAt
		view.UpdateAt = t.board.UpdateAt
		t.views = append(t.views, view)
		if block, err := view.ToBlock(); err == nil {
			t.synthesized = append(t.synthesized, block)
		} else {
			b.logger.Error("failed to encode synthesized view", zap.Error(err))
		}
		changed = true
	}

	return changed
}

func (b *Builder) pickView(t *BoardTree, viewID string) *models.View {
	if viewID != "" {
		for _, view := range t.views {
			if view.ID == viewID {
				return view
			}
		}
		b.logger.Error("view not found, using first view",
			zap.String("board_id", t.board.ID),
			zap.String("view_id", viewID))
	}
	return t.views[0]
}

// derive runs filter, search, sort and group for the active view
func (b *Builder) derive(t *BoardTree) {
	view := t.activeView
	templates := t.board.CardProperties

	cards := b.ApplyFilterGroup(view.Filter, templates, t.allCards)
	cards = b.SearchFilterCards(cards, t.board, t.searchText)
	cards = b.SortCards(cards, view, templates)
	t.cards = cards

	if view.GroupByID == "" && view.ViewType != models.ViewTypeBoard {
		return
	}

	t.groupByProperty = b.resolveGroupBy(t.board, view)
	if t.groupByProperty == nil {
		b.logger.DPanic("board has no select property to group by",
			zap.String("board_id", t.board.ID),
			zap.String("view_id", view.ID))
		return
	}
	t.visibleGroups, t.hiddenGroups = b.GroupCards(cards, view, t.groupByProperty)
}

// resolveGroupBy returns the view's group-by property, falling back to the first
// select property when it is unset or does not name a select property
func (b *Builder) resolveGroupBy(board *models.Board, view *models.View) *models.PropertyTemplate {
	if view.GroupByID != "" {
		property := board.Property(view.GroupByID)
		if property != nil && property.Type == models.PropertyTypeSelect {
			return property
		}
		b.logger.Error("group-by property not found",
			zap.String("view_id", view.ID),
			zap.String("property_id", view.GroupByID))
	}
	return board.FirstSelectProperty()
}

// CopyWithView rebuilds the tree with another active view
func (t *BoardTree) CopyWithView(viewID string) *BoardTree {
	return t.builder.Build(t.rawBlocks, t.board.ID, viewID, t.searchText)
}

// CopyWithSearchText rebuilds the tree with another search text
func (t *BoardTree) CopyWithSearchText(searchText string) *BoardTree {
	return t.builder.Build(t.rawBlocks, t.board.ID, t.activeView.ID, searchText)
}

func (t *BoardTree) Board() *models.Board { return t.board }

func (t *BoardTree) Views() []*models.View { return slices.Clone(t.views) }

func (t *BoardTree) ActiveView() *models.View { return t.activeView }

// GroupByProperty is nil when the active view is not grouped
func (t *BoardTree) GroupByProperty() *models.PropertyTemplate { return t.groupByProperty }

// Cards are the filtered, searched and sorted non-template cards
func (t *BoardTree) Cards() []*models.Card { return slices.Clone(t.cards) }

func (t *BoardTree) AllCards() []*models.Card { return slices.Clone(t.allCards) }

func (t *BoardTree) CardTemplates() []*models.Card { return slices.Clone(t.cardTemplates) }

func (t *BoardTree) VisibleGroups() []Group { return cloneGroups(t.visibleGroups) }

func (t *BoardTree) HiddenGroups() []Group { return cloneGroups(t.hiddenGroups) }

func (t *BoardTree) SearchText() string { return t.searchText }

// RawBlocks returns the block set the tree was built from, tombstones included
func (t *BoardTree) RawBlocks() []models.Block { return slices.Clone(t.rawBlocks) }

// SchemaChanged reports whether a property or view had to be synthesized
func (t *BoardTree) SchemaChanged() bool { return len(t.synthesized) > 0 }

// SynthesizedBlocks returns the blocks created to complete the board's schema
func (t *BoardTree) SynthesizedBlocks() []models.Block { return slices.Clone(t.synthesized) }

// OrderedCards flattens the visible then hidden groups. Ungrouped trees return Cards.
func (t *BoardTree) OrderedCards() []*models.Card {
	if t.groupByProperty == nil {
		return t.Cards()
	}
	ordered := make([]*models.Card, 0, len(t.cards))
	for _, group := range t.visibleGroups {
		ordered = append(ordered, group.Cards...)
	}
	for _, group := range t.hiddenGroups {
		ordered = append(ordered, group.Cards...)
	}
	return ordered
}

func cloneGroups(groups []Group) []Group {
	if groups == nil {
		return nil
	}
	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = Group{Option: g.Option, Cards: slices.Clone(g.Cards)}
	}
	return out
}
