package boardtree

import (
	"github.com/garrettallen/cardboards/internal/models"
)

// GroupSnapshot is the serialisable form of a Group
type GroupSnapshot struct {
	Option  models.PropertyOption `json:"option"`
	CardIDs []string              `json:"card_ids"`
}

// Snapshot is the serialisable read surface of a BoardTree
type Snapshot struct {
	Board           *models.Board            `json:"board"`
	Views           []*models.View           `json:"views"`
	ActiveView      *models.View             `json:"active_view"`
	GroupByProperty *models.PropertyTemplate `json:"group_by_property,omitempty"`
	Cards           []*models.Card           `json:"cards"`
	CardTemplates   []*models.Card           `json:"card_templates"`
	VisibleGroups   []GroupSnapshot          `json:"visible_groups"`
	HiddenGroups    []GroupSnapshot          `json:"hidden_groups"`
	SearchText      string                   `json:"search_text"`
}

// Snapshot returns the tree in serialisable form
func (t *BoardTree) Snapshot() Snapshot {
	return Snapshot{
		Board:           t.board,
		Views:           t.Views(),
		ActiveView:      t.activeView,
		GroupByProperty: t.groupByProperty,
		Cards:           nonNil(t.Cards()),
		CardTemplates:   nonNil(t.CardTemplates()),
		VisibleGroups:   groupSnapshots(t.visibleGroups),
		HiddenGroups:    groupSnapshots(t.hiddenGroups),
		SearchText:      t.searchText,
	}
}

func groupSnapshots(groups []Group) []GroupSnapshot {
	out := make([]GroupSnapshot, 0, len(groups))
	for _, g := range groups {
		ids := make([]string, 0, len(g.Cards))
		for _, card := range g.Cards {
			ids = append(ids, card.ID)
		}
		out = append(out, GroupSnapshot{Option: g.Option, CardIDs: ids})
	}
	return out
}

func nonNil(cards []*models.Card) []*models.Card {
	if cards == nil {
		return []*models.Card{}
	}
	return cards
}
