package boardtree

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/garrettallen/cardboards/internal/models"
)

type fakeFetcher struct {
	blocks []models.Block
	err    error
}

func (f *fakeFetcher) GetSubtree(_ context.Context, _ string) ([]models.Block, error) {
	return f.blocks, f.err
}

var ignoreRaw = cmpopts.IgnoreUnexported(models.Board{}, models.View{}, models.Card{})

type scenario struct {
	board *models.Board
	view  *models.View
	table *models.View
	cards []*models.Card
}

func newScenario() scenario {
	board := testBoard()
	view := testView(board, "view-board", "A board view")
	table := models.NewView(board.ID, "B table", models.ViewTypeTable)
	table.ID = "view-table"
	table.SortOptions = []models.SortOption{{PropertyID: models.TitleColumnID, Reversed: true}}

	cards := []*models.Card{
		testCard(board, "card-a", "A", 10, map[string]models.PropertyValue{"status": str("todo")}),
		testCard(board, "card-b", "B", 20, nil),
	}
	return scenario{board: board, view: view, table: table, cards: cards}
}

func (s scenario) blocks(t *testing.T) []models.Block {
	entities := []models.Entity{s.board, s.view, s.table}
	for _, c := range s.cards {
		entities = append(entities, c)
	}
	return toBlocks(t, entities...)
}

func TestBuildEndToEndGrouping(t *testing.T) {
	b, _ := newTestBuilder()
	s := newScenario()

	tree := b.Build(s.blocks(t), s.board.ID, s.view.ID, "")
	require.NotNil(t, tree)

	assert.Equal(t, s.view.ID, tree.ActiveView().ID)
	assert.Equal(t, "status", tree.GroupByProperty().ID)

	visible := tree.VisibleGroups()
	assert.Equal(t, []string{"", "todo", "done"}, groupOrder(visible))
	assert.Equal(t, []string{"card-b"}, cardIDs(visible[0].Cards))
	assert.Equal(t, []string{"card-a"}, cardIDs(visible[1].Cards))
	assert.Empty(t, tree.HiddenGroups())
	assert.Equal(t, []string{"card-b", "card-a"}, cardIDs(tree.OrderedCards()))
	assert.False(t, tree.SchemaChanged())
}

func TestBuildMissingBoard(t *testing.T) {
	b, _ := newTestBuilder()
	s := newScenario()

	assert.Nil(t, b.Build(s.blocks(t)[1:], s.board.ID, "", ""))

	_, err := b.Sync(context.Background(), &fakeFetcher{blocks: s.blocks(t)[1:]}, s.board.ID, "")
	assert.ErrorIs(t, err, ErrBoardNotFound)

	fetchErr := errors.New("connection refused")
	_, err = b.Sync(context.Background(), &fakeFetcher{err: fetchErr}, s.board.ID, "")
	assert.ErrorIs(t, err, fetchErr)
}

func TestSyncPicksFirstViewWhenMissing(t *testing.T) {
	b, logs := newTestBuilder()
	s := newScenario()

	tree, err := b.Sync(context.Background(), &fakeFetcher{blocks: s.blocks(t)}, s.board.ID, "")
	require.NoError(t, err)
	assert.Equal(t, s.view.ID, tree.ActiveView().ID)
	assert.Empty(t, errorMessages(logs))

	tree, err = b.Sync(context.Background(), &fakeFetcher{blocks: s.blocks(t)}, s.board.ID, "nope")
	require.NoError(t, err)
	assert.Equal(t, s.view.ID, tree.ActiveView().ID)
	assert.Contains(t, errorMessages(logs), "view not found, using first view")
}

func TestBuildExcludesTemplatesAndTombstones(t *testing.T) {
	b, _ := newTestBuilder()
	s := newScenario()

	template := testCard(s.board, "card-template", "Template", 5, nil)
	template.IsTemplate = true
	deleted := testCard(s.board, "card-deleted", "Gone", 6, nil)
	deleted.DeleteAt = 7
	s.cards = append(s.cards, template, deleted)

	tree := b.Build(s.blocks(t), s.board.ID, s.view.ID, "")
	require.NotNil(t, tree)
	assert.ElementsMatch(t, []string{"card-a", "card-b"}, cardIDs(tree.Cards()))
	assert.ElementsMatch(t, []string{"card-a", "card-b"}, cardIDs(tree.AllCards()))
	assert.Equal(t, []string{"card-template"}, cardIDs(tree.CardTemplates()))
}

func TestBuildReportsForeignAndOrphanedCards(t *testing.T) {
	b, logs := newTestBuilder()
	s := newScenario()

	foreign := testCard(s.board, "foreign", "F", 1, nil)
	foreign.RootID = "other-board"
	orphan := testCard(s.board, "orphan", "O", 2, nil)
	orphan.ParentID = "missing-parent"
	s.cards = append(s.cards, foreign, orphan)

	tree := b.Build(s.blocks(t), s.board.ID, s.view.ID, "")
	require.NotNil(t, tree)
	assert.NotContains(t, cardIDs(tree.AllCards()), "foreign")
	assert.Contains(t, cardIDs(tree.AllCards()), "orphan")
	assert.Contains(t, errorMessages(logs), "card root does not resolve to board")
	assert.Contains(t, errorMessages(logs), "card has orphaned parent reference")
}

func TestEnsureMinimumSchema(t *testing.T) {
	b, _ := newTestBuilder()
	board := models.NewBoard("Empty")
	board.CardProperties = []models.PropertyTemplate{{ID: "notes", Name: "Notes", Type: models.PropertyTypeText}}
	card := testCard(board, "c", "C", 1, nil)
	blocks := toBlocks(t, board, card)

	first := b.Build(blocks, board.ID, "", "")
	require.NotNil(t, first)
	assert.True(t, first.SchemaChanged())
	assert.Len(t, first.SynthesizedBlocks(), 2)

	status := first.Board().FirstSelectProperty()
	require.NotNil(t, status)
	assert.Equal(t, "Status", status.Name)

	require.Len(t, first.Views(), 1)
	assert.Equal(t, models.ViewTypeBoard, first.ActiveView().ViewType)
	assert.Equal(t, status.ID, first.ActiveView().GroupByID)
	assert.Equal(t, status.ID, first.GroupByProperty().ID)

	second := b.Build(blocks, board.ID, first.ActiveView().ID, "")
	assert.Equal(t, first.ActiveView().ID, second.ActiveView().ID)
	assert.Equal(t, status.ID, second.GroupByProperty().ID)

	// the input blocks are not modified
	hydrated, err := models.HydrateBoard(blocks[0])
	require.NoError(t, err)
	assert.Nil(t, hydrated.FirstSelectProperty())
}

func TestGroupByFallsBackToFirstSelect(t *testing.T) {
	b, logs := newTestBuilder()
	s := newScenario()
	s.view.GroupByID = "estimate"

	tree := b.Build(s.blocks(t), s.board.ID, s.view.ID, "")
	require.NotNil(t, tree)
	assert.Equal(t, "status", tree.GroupByProperty().ID)
	assert.Contains(t, errorMessages(logs), "group-by property not found")
}

func TestUngroupedViewOrderedCards(t *testing.T) {
	b, _ := newTestBuilder()
	s := newScenario()

	tree := b.Build(s.blocks(t), s.board.ID, s.table.ID, "")
	require.NotNil(t, tree)
	assert.Nil(t, tree.GroupByProperty())
	assert.Empty(t, tree.VisibleGroups())
	assert.Equal(t, []string{"card-b", "card-a"}, cardIDs(tree.OrderedCards()))
}

func TestSearchMatchesResolvedOptionText(t *testing.T) {
	b, _ := newTestBuilder()
	s := newScenario()
	s.cards = append(s.cards,
		testCard(s.board, "tagged", "nothing", 30, map[string]models.PropertyValue{"tags": models.ListValue("feature")}),
		testCard(s.board, "raw-id", "other", 40, map[string]models.PropertyValue{"notes": str("see feature")}),
	)

	tree := b.Build(s.blocks(t), s.board.ID, s.view.ID, "foo")
	require.NotNil(t, tree)
	assert.Equal(t, []string{"tagged"}, cardIDs(tree.Cards()))

	tree = tree.CopyWithSearchText("TODO")
	assert.Equal(t, []string{"card-a"}, cardIDs(tree.Cards()))

	tree = tree.CopyWithSearchText("other")
	assert.Equal(t, []string{"raw-id"}, cardIDs(tree.Cards()))
}

func TestCopyWithSearchTextIsIdempotent(t *testing.T) {
	b, _ := newTestBuilder()
	s := newScenario()
	tree := b.Build(s.blocks(t), s.board.ID, s.view.ID, "")
	require.NotNil(t, tree)

	first := tree.CopyWithSearchText("a")
	second := tree.CopyWithSearchText("a")
	assert.NotSame(t, first, second)
	assert.Equal(t, "", tree.SearchText())

	if diff := cmp.Diff(first.Cards(), second.Cards(), ignoreRaw); diff != "" {
		t.Errorf("cards differ (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.VisibleGroups(), second.VisibleGroups(), ignoreRaw); diff != "" {
		t.Errorf("visible groups differ (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.HiddenGroups(), second.HiddenGroups(), ignoreRaw); diff != "" {
		t.Errorf("hidden groups differ (-first +second):\n%s", diff)
	}
}

func TestCopyWithViewLeavesOriginalUntouched(t *testing.T) {
	b, _ := newTestBuilder()
	s := newScenario()
	tree := b.Build(s.blocks(t), s.board.ID, s.view.ID, "")
	require.NotNil(t, tree)
	before := tree.Snapshot()

	table := tree.CopyWithView(s.table.ID)
	require.NotNil(t, table)
	assert.Equal(t, s.table.ID, table.ActiveView().ID)
	assert.Nil(t, table.GroupByProperty())

	assert.Equal(t, s.view.ID, tree.ActiveView().ID)
	if diff := cmp.Diff(before, tree.Snapshot(), ignoreRaw); diff != "" {
		t.Errorf("original tree changed (-before +after):\n%s", diff)
	}
}

func TestIncrementalUpdate(t *testing.T) {
	b, _ := newTestBuilder()
	s := newScenario()
	prev := b.Build(s.blocks(t), s.board.ID, s.table.ID, "")
	require.NotNil(t, prev)

	t.Run("irrelevant blocks return the same tree", func(t *testing.T) {
		other := models.NewBoard("Other")
		foreign := testCard(other, "elsewhere", "X", 1, nil)
		assert.Same(t, prev, b.IncrementalUpdate(prev, toBlocks(t, foreign)))
		assert.Same(t, prev, b.IncrementalUpdate(prev, nil))
	})

	t.Run("changed card rebuilds and keeps view and search", func(t *testing.T) {
		searched := prev.CopyWithSearchText("card")
		changed := testCard(s.board, "card-b", "Card B", 20, map[string]models.PropertyValue{"status": str("done")})
		changed.UpdateAt = 50

		next := b.IncrementalUpdate(searched, toBlocks(t, changed))
		require.NotNil(t, next)
		assert.NotSame(t, searched, next)
		assert.Equal(t, s.table.ID, next.ActiveView().ID)
		assert.Equal(t, "card", next.SearchText())
		assert.Equal(t, []string{"card-b"}, cardIDs(next.Cards()))
		assert.Equal(t, "Card B", next.Cards()[0].Title)

		assert.Empty(t, searched.Cards())
	})

	t.Run("stale block is ignored", func(t *testing.T) {
		stale := testCard(s.board, "card-a", "Old A", 1, nil)
		next := b.IncrementalUpdate(prev, toBlocks(t, stale))
		require.NotNil(t, next)
		assert.Contains(t, cardTitles(next.AllCards()), "A")
		assert.NotContains(t, cardTitles(next.AllCards()), "Old A")
	})

	t.Run("tombstone removes card but stays in raw blocks", func(t *testing.T) {
		tombstone := testCard(s.board, "card-a", "A", 10, nil)
		tombstone.DeleteAt = 60
		tombstone.UpdateAt = 60

		next := b.IncrementalUpdate(prev, toBlocks(t, tombstone))
		require.NotNil(t, next)
		assert.Equal(t, []string{"card-b"}, cardIDs(next.Cards()))

		var found bool
		for _, block := range next.RawBlocks() {
			if block.ID == "card-a" {
				found = true
				assert.Equal(t, int64(60), block.DeleteAt)
			}
		}
		assert.True(t, found)
		assert.Len(t, prev.Cards(), 2)
	})

	t.Run("new card appears", func(t *testing.T) {
		added := testCard(s.board, "card-c", "C", 30, nil)
		next := b.IncrementalUpdate(prev, toBlocks(t, added))
		require.NotNil(t, next)
		assert.Equal(t, []string{"card-c", "card-b", "card-a"}, cardIDs(next.Cards()))
	})

	t.Run("deleted board yields nil", func(t *testing.T) {
		board := s.board.Clone()
		board.DeleteAt = 2000
		board.UpdateAt = 2000
		assert.Nil(t, b.IncrementalUpdate(prev, toBlocks(t, board)))
	})
}

func TestInvalidViewTypeIsReported(t *testing.T) {
	b, logs := newTestBuilder()
	s := newScenario()
	s.view.ViewType = "kanban"

	tree := b.Build(s.blocks(t), s.board.ID, s.view.ID, "")
	require.NotNil(t, tree)
	assert.NotZero(t, logs.FilterLevelExact(zapcore.DPanicLevel).Len())
}

func cardTitles(cards []*models.Card) []string {
	titles := make([]string, 0, len(cards))
	for _, c := range cards {
		titles = append(titles, c.Title)
	}
	return titles
}
