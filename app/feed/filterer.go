package feed

import (
	"fmt"
	"strings"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run marks game as filtered when it fails any of the filters. Filtered
// games are kept; consumers decide whether to hide them.
func (f *Filterer) Run(game *Game, filters []ConfigFilter) {
	game.IsFiltered, game.FilterReason = f.applyFilters(game, filters)
}

func (f *Filterer) applyFilters(game *Game, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(game, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(game *Game, field string) string {
	switch field {
	case "title":
		return game.Title
	case "description":
		return game.Description
	case "authors":
		return strings.Join(game.Authors, " ")
	case "link":
		return game.Link
	case "categories":
		return strings.Join(game.Categories, " ")
	default:
		return ""
	}
}
