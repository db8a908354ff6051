package boardtree

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garrettallen/cardboards/internal/models"
)

func newTestBuilder() (*Builder, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewBuilder(zap.New(core)), logs
}

func errorMessages(logs *observer.ObservedLogs) []string {
	var messages []string
	for _, entry := range logs.FilterLevelExact(zapcore.ErrorLevel).All() {
		messages = append(messages, entry.Message)
	}
	return messages
}

func testBoard() *models.Board {
	board := models.NewBoard("Roadmap")
	board.CreateAt = 1000
	board.UpdateAt = 1000
	board.CardProperties = []models.PropertyTemplate{
		{
			ID:   "status",
			Name: "Status",
			Type: models.PropertyTypeSelect,
			Options: []models.PropertyOption{
				{ID: "todo", Value: "Todo", Color: "red"},
				{ID: "done", Value: "Done", Color: "green"},
			},
		},
		{ID: "estimate", Name: "Estimate", Type: models.PropertyTypeNumber},
		{
			ID:   "tags",
			Name: "Tags",
			Type: models.PropertyTypeMultiSelect,
			Options: []models.PropertyOption{
				{ID: "bug", Value: "Bug"},
				{ID: "feature", Value: "Foobar"},
			},
		},
		{ID: "notes", Name: "Notes", Type: models.PropertyTypeText},
		{ID: "due", Name: "Due", Type: models.PropertyTypeDate},
		{ID: "created", Name: "Created", Type: models.PropertyTypeCreatedTime},
	}
	return board
}

func testView(board *models.Board, id, title string) *models.View {
	view := models.NewView(board.ID, title, models.ViewTypeBoard)
	view.ID = id
	view.GroupByID = "status"
	return view
}

func testCard(board *models.Board, id, title string, createAt int64, props map[string]models.PropertyValue) *models.Card {
	card := models.NewCard(board.ID, title)
	card.ID = id
	card.CreateAt = createAt
	card.UpdateAt = createAt
	if props != nil {
		card.Properties = props
	}
	return card
}

func toBlocks(t *testing.T, entities ...models.Entity) []models.Block {
	t.Helper()
	blocks := make([]models.Block, 0, len(entities))
	for _, e := range entities {
		block, err := e.ToBlock()
		require.NoError(t, err)
		blocks = append(blocks, block)
	}
	return blocks
}

func cardIDs(cards []*models.Card) []string {
	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	return ids
}

func str(s string) models.PropertyValue { return models.StringValue(s) }
