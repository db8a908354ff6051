package boardtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrettallen/cardboards/internal/models"
)

func groupSummary(groups []Group) map[string][]string {
	out := map[string][]string{}
	for _, g := range groups {
		out[g.Option.ID] = cardIDs(g.Cards)
	}
	return out
}

func groupOrder(groups []Group) []string {
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.Option.ID)
	}
	return ids
}

func TestGroupCardsDefaultsNoValueGroupFirst(t *testing.T) {
	b, _ := newTestBuilder()
	board := testBoard()
	view := testView(board, "v", "Board")
	status := board.Property("status")

	cards := []*models.Card{
		testCard(board, "A", "A", 1, map[string]models.PropertyValue{"status": str("todo")}),
		testCard(board, "B", "B", 2, nil),
	}

	visible, hidden := b.GroupCards(cards, view, status)
	assert.Empty(t, hidden)
	assert.Equal(t, []string{"", "todo", "done"}, groupOrder(visible))
	assert.Equal(t, map[string][]string{"": {"B"}, "todo": {"A"}, "done": {}}, groupSummary(visible))
	assert.Equal(t, "No Status", visible[0].Option.Value)
}

func TestGroupCardsRespectsExplicitOrdering(t *testing.T) {
	b, logs := newTestBuilder()
	board := testBoard()
	status := board.Property("status")
	status.Options = append(status.Options, models.PropertyOption{ID: "doing", Value: "Doing"})

	view := testView(board, "v", "Board")
	view.VisibleOptionIDs = []string{"done", "stale", "", "done"}
	view.HiddenOptionIDs = []string{"todo", "done"}

	cards := []*models.Card{
		testCard(board, "todo-card", "1", 1, map[string]models.PropertyValue{"status": str("todo")}),
		testCard(board, "done-card", "2", 2, map[string]models.PropertyValue{"status": str("done")}),
		testCard(board, "doing-card", "3", 3, map[string]models.PropertyValue{"status": str("doing")}),
		testCard(board, "deleted-option", "4", 4, map[string]models.PropertyValue{"status": str("removed")}),
		testCard(board, "list-value", "5", 5, map[string]models.PropertyValue{"status": models.ListValue("todo")}),
		testCard(board, "no-value", "6", 6, nil),
	}

	visible, hidden := b.GroupCards(cards, view, status)
	assert.Equal(t, []string{"done", "", "doing"}, groupOrder(visible))
	assert.Equal(t, []string{"todo"}, groupOrder(hidden))
	assert.Equal(t, []string{"deleted-option", "list-value", "no-value"}, groupSummary(visible)[""])
	assert.Contains(t, errorMessages(logs), "group references missing option")
}

func TestGroupCardsHiddenNoValueGroup(t *testing.T) {
	b, _ := newTestBuilder()
	board := testBoard()
	view := testView(board, "v", "Board")
	view.HiddenOptionIDs = []string{""}

	cards := []*models.Card{testCard(board, "empty", "E", 1, nil)}
	visible, hidden := b.GroupCards(cards, view, board.Property("status"))
	assert.Equal(t, []string{"todo", "done"}, groupOrder(visible))
	require.Len(t, hidden, 1)
	assert.Equal(t, []string{"empty"}, cardIDs(hidden[0].Cards))
}

func TestGroupsPartitionCards(t *testing.T) {
	b, _ := newTestBuilder()
	board := testBoard()
	view := testView(board, "v", "Board")
	view.VisibleOptionIDs = []string{"todo", "ghost", "todo"}
	view.HiddenOptionIDs = []string{"done", "todo", ""}

	values := []string{"todo", "done", "", "ghost", "todo", "done"}
	var cards []*models.Card
	for i, v := range values {
		id := string(rune('a' + i))
		cards = append(cards, testCard(board, id, id, int64(i), map[string]models.PropertyValue{"status": str(v)}))
	}

	visible, hidden := b.GroupCards(cards, view, board.Property("status"))

	seen := map[string]int{}
	for _, g := range append(visible, hidden...) {
		for _, c := range g.Cards {
			seen[c.ID]++
		}
	}
	require.Len(t, seen, len(cards))
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}
