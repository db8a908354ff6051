package boardtree

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/garrettallen/cardboards/internal/models"
)

// SearchFilterCards keeps cards whose title or any property display value
// contains searchText, ignoring case. Option ids are matched by their text.
func (b *Builder) SearchFilterCards(cards []*models.Card, board *models.Board, searchText string) []*models.Card {
	fold := cases.Fold()
	needle := fold.String(searchText)
	if needle == "" {
		return append([]*models.Card(nil), cards...)
	}

	matched := make([]*models.Card, 0, len(cards))
	for _, card := range cards {
		if cardMatches(card, board, needle, fold) {
			matched = append(matched, card)
		}
	}
	return matched
}

func cardMatches(card *models.Card, board *models.Board, needle string, fold cases.Caser) bool {
	if strings.Contains(fold.String(card.Title), needle) {
		return true
	}
	for i := range board.CardProperties {
		template := &board.CardProperties[i]
		value := card.Property(template.ID)
		if value.IsEmpty() {
			continue
		}
		if strings.Contains(fold.String(template.DisplayValue(value)), needle) {
			return true
		}
	}
	return false
}
