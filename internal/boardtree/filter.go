package boardtree

import (
	"go.uber.org/zap"

	"github.com/garrettallen/cardboards/internal/models"
)

// ApplyFilterGroup returns the cards that satisfy group, in their original order
func (b *Builder) ApplyFilterGroup(group models.FilterGroup, templates []models.PropertyTemplate, cards []*models.Card) []*models.Card {
	filtered := make([]*models.Card, 0, len(cards))
	for _, card := range cards {
		if b.IsFilterGroupMet(group, templates, card) {
			filtered = append(filtered, card)
		}
	}
	return filtered
}

// IsFilterGroupMet evaluates the filter expression against one card
func (b *Builder) IsFilterGroupMet(group models.FilterGroup, templates []models.PropertyTemplate, card *models.Card) bool {
	if len(group.Filters) < 1 {
		return true
	}

	switch group.Operation {
	case models.FilterOr:
		for _, node := range group.Filters {
			if b.isNodeMet(node, templates, card) {
				return true
			}
		}
		return false
	case models.FilterAnd, "":
		for _, node := range group.Filters {
			if !b.isNodeMet(node, templates, card) {
				return false
			}
		}
		return true
	default:
		b.logger.DPanic("invalid filter operation", zap.String("operation", string(group.Operation)))
		return true
	}
}

func (b *Builder) isNodeMet(node models.FilterNode, templates []models.PropertyTemplate, card *models.Card) bool {
	switch node.Kind {
	case models.FilterKindGroup:
		if node.Group == nil {
			return true
		}
		return b.IsFilterGroupMet(*node.Group, templates, card)
	case models.FilterKindClause:
		if node.Clause == nil {
			return true
		}
		return b.IsClauseMet(*node.Clause, card)
	default:
		b.logger.DPanic("invalid filter node kind", zap.String("kind", string(node.Kind)))
		return true
	}
}

// IsClauseMet evaluates a single clause. A clause with no values does not
// constrain anything yet and is met.
func (b *Builder) IsClauseMet(clause models.FilterClause, card *models.Card) bool {
	value := card.Property(clause.PropertyID)

	switch clause.Condition {
	case models.FilterIncludes:
		if len(clause.Values) < 1 {
			return true
		}
		return containsAny(clause.Values, value.Values())
	case models.FilterNotIncludes:
		if len(clause.Values) < 1 {
			return true
		}
		return !containsAny(clause.Values, value.Values())
	case models.FilterIsEmpty:
		return value.IsEmpty()
	case models.FilterIsNotEmpty:
		return !value.IsEmpty()
	default:
		b.logger.DPanic("invalid filter condition",
			zap.String("condition", string(clause.Condition)),
			zap.String("property_id", clause.PropertyID))
		return true
	}
}

func containsAny(haystack, needles []string) bool {
	for _, n := range needles {
		for _, h := range haystack {
			if n == h {
				return true
			}
		}
	}
	return false
}

// PropertiesThatMeetFilterGroup computes property values that make a new card
// pass the group. Only direct clauses are considered, and for an or group only
// the first clause is satisfied.
func (b *Builder) PropertiesThatMeetFilterGroup(group models.FilterGroup, templates []models.PropertyTemplate) map[string]models.PropertyValue {
	result := map[string]models.PropertyValue{}

	clauses := group.Clauses()
	if len(clauses) < 1 {
		return result
	}

	if group.Operation == models.FilterOr {
		clauses = clauses[:1]
	}

	for _, clause := range clauses {
		if value, ok := b.propertyThatMeetsClause(clause, templates); ok {
			result[clause.PropertyID] = value
		}
	}
	return result
}

func (b *Builder) propertyThatMeetsClause(clause models.FilterClause, templates []models.PropertyTemplate) (models.PropertyValue, bool) {
	var template *models.PropertyTemplate
	for i := range templates {
		if templates[i].ID == clause.PropertyID {
			template = &templates[i]
			break
		}
	}
	if template == nil {
		b.logger.DPanic("filter clause references missing property", zap.String("property_id", clause.PropertyID))
		return models.PropertyValue{}, false
	}

	switch clause.Condition {
	case models.FilterIncludes:
		if len(clause.Values) < 1 {
			return models.PropertyValue{}, false
		}
		return valueFor(template, clause.Values[0]), true
	case models.FilterNotIncludes:
		if len(clause.Values) < 1 || !template.Type.HasOptions() {
			return models.PropertyValue{}, false
		}
		for _, option := range template.Options {
			if !containsAny(clause.Values, []string{option.ID}) {
				return valueFor(template, option.ID), true
			}
		}
		return models.PropertyValue{}, false
	case models.FilterIsEmpty:
		return models.PropertyValue{}, false
	case models.FilterIsNotEmpty:
		if !template.Type.HasOptions() || len(template.Options) < 1 {
			return models.PropertyValue{}, false
		}
		return valueFor(template, template.Options[0].ID), true
	default:
		b.logger.DPanic("invalid filter condition", zap.String("condition", string(clause.Condition)))
		return models.PropertyValue{}, false
	}
}

func valueFor(template *models.PropertyTemplate, v string) models.PropertyValue {
	if template.Type == models.PropertyTypeMultiSelect {
		return models.ListValue(v)
	}
	return models.StringValue(v)
}
