package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrettallen/cardboards/internal/boardtree"
	"github.com/garrettallen/cardboards/internal/models"
)

func TestEnsureSchemaPersistsSynthesizedSchema(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	board := models.NewBoard("Bare")
	seed(t, env, board)

	sub := env.hub.Subscribe(board.ID)
	defer sub.Close()

	tree, err := env.trees.EnsureSchema(ctx, board.ID, "")
	require.NoError(t, err)
	assert.False(t, tree.SchemaChanged())

	blocks, err := env.repo.GetSubtree(ctx, board.ID)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	batch := <-sub.Updates()
	assert.Len(t, batch, 2)

	again, err := env.trees.Sync(ctx, board.ID, "", "")
	require.NoError(t, err)
	assert.False(t, again.SchemaChanged())
	assert.Equal(t, tree.ActiveView().ID, again.ActiveView().ID)
}

func TestSyncLeavesStoreUntouched(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	board := models.NewBoard("Bare")
	seed(t, env, board)

	tree, err := env.trees.Sync(ctx, board.ID, "", "")
	require.NoError(t, err)
	assert.True(t, tree.SchemaChanged())

	blocks, err := env.repo.GetSubtree(ctx, board.ID)
	require.NoError(t, err)
	assert.Len(t, blocks, 1)
}

// editingBlocks runs edit once, right after the first subtree read
type editingBlocks struct {
	BlockService
	once sync.Once
	edit func()
}

func (b *editingBlocks) GetSubtree(ctx context.Context, boardID string) ([]models.Block, error) {
	blocks, err := b.BlockService.GetSubtree(ctx, boardID)
	b.once.Do(b.edit)
	return blocks, err
}

func TestEnsureSchemaKeepsConcurrentBoardEdit(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	board := models.NewBoard("Bare")
	board.CreateAt, board.UpdateAt = 1000, 1000
	seed(t, env, board)

	blocks := &editingBlocks{BlockService: env.blocks}
	blocks.edit = func() {
		edited := board.Clone()
		edited.Title = "Planning"
		edited.CardProperties = append(edited.CardProperties, models.PropertyTemplate{
			ID:      "priority",
			Name:    "Priority",
			Type:    models.PropertyTypeSelect,
			Options: []models.PropertyOption{{ID: "high", Value: "High"}},
		})
		_, err := env.blocks.UpsertBlocks(ctx, board.ID, []models.Block{mustBlock(t, edited)})
		require.NoError(t, err)
	}
	trees := NewTreeService(blocks, env.hub, boardtree.NewBuilder(nil), true, nil)

	tree, err := trees.EnsureSchema(ctx, board.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Planning", tree.Board().Title)

	stored, err := env.repo.GetByID(ctx, board.ID)
	require.NoError(t, err)
	hydrated, err := models.HydrateBoard(*stored)
	require.NoError(t, err)
	assert.Equal(t, "Planning", hydrated.Title)
	require.Len(t, hydrated.CardProperties, 1)
	assert.Equal(t, "priority", hydrated.CardProperties[0].ID)

	subtree, err := env.repo.GetSubtree(ctx, board.ID)
	require.NoError(t, err)
	assert.Len(t, subtree, 2)
}

func TestCreateCardPersistsSchemaWhenEnabled(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	board := models.NewBoard("Bare")
	seed(t, env, board)

	card, err := env.trees.CreateCard(ctx, board.ID, "", "First")
	require.NoError(t, err)

	blocks, err := env.repo.GetSubtree(ctx, board.ID)
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	tree, err := env.trees.Sync(ctx, board.ID, "", "")
	require.NoError(t, err)
	assert.False(t, tree.SchemaChanged())
	require.Len(t, tree.Cards(), 1)
	assert.Equal(t, card.ID, tree.Cards()[0].ID)
}

func TestSyncMissingBoard(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.trees.Sync(context.Background(), "nope", "", "")
	assert.ErrorIs(t, err, boardtree.ErrBoardNotFound)
}

func TestSyncAppliesSearchText(t *testing.T) {
	env := newTestEnv(t, false)

	board := statusBoard()
	view := models.NewView(board.ID, "All", models.ViewTypeTable)
	alpha := models.NewCard(board.ID, "Alpha")
	beta := models.NewCard(board.ID, "Beta")
	seed(t, env, board, view, alpha, beta)

	tree, err := env.trees.Sync(context.Background(), board.ID, view.ID, "ALP")
	require.NoError(t, err)
	require.Len(t, tree.Cards(), 1)
	assert.Equal(t, alpha.ID, tree.Cards()[0].ID)
	assert.Equal(t, "ALP", tree.SearchText())
}

func TestCreateCardSatisfiesActiveFilter(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	board := statusBoard()
	view := doneView(board.ID)
	seed(t, env, board, view)

	card, err := env.trees.CreateCard(ctx, board.ID, view.ID, "Ship it")
	require.NoError(t, err)
	assert.Equal(t, models.StringValue("done"), card.Property("status"))

	tree, err := env.trees.Sync(ctx, board.ID, view.ID, "")
	require.NoError(t, err)
	require.Len(t, tree.Cards(), 1)
	assert.Equal(t, card.ID, tree.Cards()[0].ID)
}

func TestCreateCardUnknownView(t *testing.T) {
	env := newTestEnv(t, false)

	board := statusBoard()
	seed(t, env, board, doneView(board.ID))

	_, err := env.trees.CreateCard(context.Background(), board.ID, "missing-view", "Lost")
	assert.ErrorIs(t, err, ErrViewNotFound)
}

func TestWatchDeliversIncrementalSnapshots(t *testing.T) {
	env := newTestEnv(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	board := statusBoard()
	view := doneView(board.ID)
	seed(t, env, board, view)

	trees := make(chan *boardtree.BoardTree, 4)
	done := make(chan error, 1)
	go func() {
		done <- env.trees.Watch(ctx, board.ID, view.ID, "", func(tree *boardtree.BoardTree) error {
			trees <- tree
			return nil
		})
	}()

	initial := receiveTree(t, trees)
	assert.Empty(t, initial.Cards())

	_, err := env.trees.CreateCard(context.Background(), board.ID, view.ID, "Live")
	require.NoError(t, err)

	updated := receiveTree(t, trees)
	require.Len(t, updated.Cards(), 1)
	assert.Equal(t, "Live", updated.Cards()[0].Title)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatchEndsWhenBoardDeleted(t *testing.T) {
	env := newTestEnv(t, false)

	board := statusBoard()
	seed(t, env, board, doneView(board.ID))

	trees := make(chan *boardtree.BoardTree, 4)
	done := make(chan error, 1)
	go func() {
		done <- env.trees.Watch(context.Background(), board.ID, "", "", func(tree *boardtree.BoardTree) error {
			trees <- tree
			return nil
		})
	}()
	receiveTree(t, trees)

	_, err := env.blocks.DeleteBlock(context.Background(), board.ID, board.ID)
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boardtree.ErrBoardNotFound)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not end after board deletion")
	}
}

func TestWatchStopsOnCallbackError(t *testing.T) {
	env := newTestEnv(t, false)

	board := statusBoard()
	seed(t, env, board, doneView(board.ID))

	stop := errors.New("stop")
	err := env.trees.Watch(context.Background(), board.ID, "", "", func(*boardtree.BoardTree) error {
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 0, env.hub.Subscribers(board.ID))
}

func TestWatchEndsWhenHubCloses(t *testing.T) {
	env := newTestEnv(t, false)

	board := statusBoard()
	seed(t, env, board, doneView(board.ID))

	trees := make(chan *boardtree.BoardTree, 4)
	done := make(chan error, 1)
	go func() {
		done <- env.trees.Watch(context.Background(), board.ID, "", "", func(tree *boardtree.BoardTree) error {
			trees <- tree
			return nil
		})
	}()
	receiveTree(t, trees)

	env.hub.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrHubClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not end after hub close")
	}
}

func receiveTree(t *testing.T, trees <-chan *boardtree.BoardTree) *boardtree.BoardTree {
	t.Helper()
	select {
	case tree := <-trees:
		return tree
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for board tree")
		return nil
	}
}
