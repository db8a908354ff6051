package boardtree

import (
	"cmp"
	"encoding/json"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/garrettallen/cardboards/internal/models"
)

// sortKey is a sort option resolved against the board's templates.
// template is nil for the title column.
type sortKey struct {
	option   models.SortOption
	template *models.PropertyTemplate
}

type cardSorter struct {
	collator *collate.Collator
}

func newCardSorter() *cardSorter {
	return &cardSorter{collator: collate.New(language.Und)}
}

// SortCards returns a sorted copy of cards. Without sort options the view's manual
// card order is used.
func (b *Builder) SortCards(cards []*models.Card, view *models.View, templates []models.PropertyTemplate) []*models.Card {
	sorted := slices.Clone(cards)
	if view == nil {
		b.logger.DPanic("sorting cards without an active view")
		return sorted
	}

	s := newCardSorter()

	if len(view.SortOptions) < 1 {
		order := make(map[string]int, len(view.CardOrder))
		for i, id := range view.CardOrder {
			if _, seen := order[id]; !seen {
				order[id] = i
			}
		}
		slices.SortStableFunc(sorted, func(a, c *models.Card) int {
			return s.manualOrder(order, a, c)
		})
		return sorted
	}

	keys := make([]sortKey, 0, len(view.SortOptions))
	for _, option := range view.SortOptions {
		if option.PropertyID == models.TitleColumnID {
			keys = append(keys, sortKey{option: option})
			continue
		}
		template := findTemplate(templates, option.PropertyID)
		if template == nil {
			b.logger.Error("missing template for sort property",
				zap.String("view_id", view.ID),
				zap.String("property_id", option.PropertyID))
			break
		}
		keys = append(keys, sortKey{option: option, template: template})
	}
	if len(keys) == 0 {
		return sorted
	}

	slices.SortStableFunc(sorted, func(a, c *models.Card) int {
		for _, key := range keys {
			if result := s.compareKey(key, a, c); result != 0 {
				return result
			}
		}
		return s.titleOrCreatedOrder(a, c)
	})
	return sorted
}

func findTemplate(templates []models.PropertyTemplate, id string) *models.PropertyTemplate {
	for i := range templates {
		if templates[i].ID == id {
			return &templates[i]
		}
	}
	return nil
}

// titleOrCreatedOrder puts titled cards first in collation order, then untitled
// cards by creation time
func (s *cardSorter) titleOrCreatedOrder(a, c *models.Card) int {
	switch {
	case a.Title != "" && c.Title != "":
		if result := s.collator.CompareString(a.Title, c.Title); result != 0 {
			return result
		}
	case a.Title != "":
		return -1
	case c.Title != "":
		return 1
	}
	if result := cmp.Compare(a.CreateAt, c.CreateAt); result != 0 {
		return result
	}
	return strings.Compare(a.ID, c.ID)
}

func (s *cardSorter) manualOrder(order map[string]int, a, c *models.Card) int {
	ia, okA := order[a.ID]
	ic, okC := order[c.ID]
	switch {
	case !okA && !okC:
		return s.titleOrCreatedOrder(a, c)
	case !okA:
		return 1
	case !okC:
		return -1
	}
	return cmp.Compare(ia, ic)
}

// compareKey compares two cards on one key. Zero means tied or incomparable.
// Empty values are placed last regardless of direction.
func (s *cardSorter) compareKey(key sortKey, a, c *models.Card) int {
	if key.template == nil {
		return s.directed(key, s.titleOrCreatedOrder(a, c))
	}

	id := key.template.ID
	switch key.template.Type {
	case models.PropertyTypeNumber, models.PropertyTypeDate:
		va, vc := a.Property(id), c.Property(id)
		if result, decided := emptyLast(va.IsEmpty(), vc.IsEmpty()); decided {
			return result
		}
		na, okA := numericValue(key.template.Type, va)
		nc, okC := numericValue(key.template.Type, vc)
		if !okA || !okC {
			return 0
		}
		return s.directed(key, cmp.Compare(na, nc))
	case models.PropertyTypeCreatedTime:
		return s.directed(key, cmp.Compare(a.CreateAt, c.CreateAt))
	case models.PropertyTypeUpdatedTime:
		return s.directed(key, cmp.Compare(a.UpdateAt, c.UpdateAt))
	default:
		va := key.template.DisplayValue(a.Property(id))
		vc := key.template.DisplayValue(c.Property(id))
		if result, decided := emptyLast(va == "", vc == ""); decided {
			return result
		}
		return s.directed(key, s.collator.CompareString(va, vc))
	}
}

func (s *cardSorter) directed(key sortKey, result int) int {
	if key.option.Reversed {
		return -result
	}
	return result
}

// emptyLast orders a non-empty value before an empty one. Both empty is a tie.
func emptyLast(aEmpty, cEmpty bool) (int, bool) {
	switch {
	case aEmpty && cEmpty:
		return 0, true
	case aEmpty:
		return 1, true
	case cEmpty:
		return -1, true
	}
	return 0, false
}

// numericValue parses number values, and date values given either as a number
// or as a range object {"from": ms, "to": ms}
func numericValue(propertyType models.PropertyType, v models.PropertyValue) (float64, bool) {
	if n, ok := v.Float(); ok {
		return n, true
	}
	if propertyType != models.PropertyTypeDate {
		return 0, false
	}
	var dateRange struct {
		From *float64 `json:"from"`
	}
	if err := json.Unmarshal([]byte(v.String()), &dateRange); err != nil || dateRange.From == nil {
		return 0, false
	}
	return *dateRange.From, true
}
