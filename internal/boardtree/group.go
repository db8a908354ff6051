package boardtree

import (
	"go.uber.org/zap"

	"github.com/garrettallen/cardboards/internal/models"
)

// Group is the bucket of cards sharing one option of the group-by property.
// The option with an empty id collects cards without a usable value.
type Group struct {
	Option models.PropertyOption `json:"option"`
	Cards  []*models.Card        `json:"cards"`
}

// GroupCards partitions cards by the view's visible and hidden option ordering
func (b *Builder) GroupCards(cards []*models.Card, view *models.View, property *models.PropertyTemplate) (visible, hidden []Group) {
	if view == nil || property == nil {
		b.logger.DPanic("grouping cards without a view or group-by property")
		return nil, nil
	}

	placed := map[string]bool{}
	visibleIDs := uniqueIDs(view.VisibleOptionIDs, placed)
	hiddenIDs := uniqueIDs(view.HiddenOptionIDs, placed)
	for _, option := range property.Options {
		if !placed[option.ID] {
			placed[option.ID] = true
			visibleIDs = append(visibleIDs, option.ID)
		}
	}
	if !placed[""] {
		visibleIDs = append([]string{""}, visibleIDs...)
	}

	visible = b.groupByOptions(cards, visibleIDs, property)
	hidden = b.groupByOptions(cards, hiddenIDs, property)
	return visible, hidden
}

// uniqueIDs drops ids already present in placed and records the rest
func uniqueIDs(ids []string, placed map[string]bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if placed[id] {
			continue
		}
		placed[id] = true
		out = append(out, id)
	}
	return out
}

func (b *Builder) groupByOptions(cards []*models.Card, optionIDs []string, property *models.PropertyTemplate) []Group {
	groups := make([]Group, 0, len(optionIDs))
	for _, optionID := range optionIDs {
		if optionID == "" {
			groups = append(groups, Group{
				Option: models.PropertyOption{ID: "", Value: "No " + property.Name},
				Cards:  noValueCards(cards, property),
			})
			continue
		}

		option := property.Option(optionID)
		if option == nil {
			b.logger.Error("group references missing option",
				zap.String("property_id", property.ID),
				zap.String("option_id", optionID))
			continue
		}

		matched := []*models.Card{}
		for _, card := range cards {
			value := card.Property(property.ID)
			if !value.Multi && value.Text == optionID {
				matched = append(matched, card)
			}
		}
		groups = append(groups, Group{Option: *option, Cards: matched})
	}
	return groups
}

// noValueCards returns cards whose value is missing, is a list, or points at an
// option that no longer exists
func noValueCards(cards []*models.Card, property *models.PropertyTemplate) []*models.Card {
	matched := []*models.Card{}
	for _, card := range cards {
		value := card.Property(property.ID)
		if value.Multi || value.Text == "" || property.Option(value.Text) == nil {
			matched = append(matched, card)
		}
	}
	return matched
}
