// Package view derives the grouped, aggregated presentation of a collection.
//
// Every function here is pure: it reads its arguments, never modifies them, and
// returns the same output for the same input.
package view

import (
	"strconv"
	"strings"
	"time"

	"invoicesync/pkg/models"
)

// Criteria selects records. An empty field means no constraint.
type Criteria struct {
	Store string `json:"store" yaml:"store"` // case-insensitive store name
	Date  string `json:"date" yaml:"date"`   // exact YYYY-MM-DD
	Year  string `json:"year" yaml:"year"`   // calendar year, e.g. "2024"
	Month string `json:"month" yaml:"month"` // 1-based month, "3" or "03"
}

// DefaultCriteria pre-selects the current year.
func DefaultCriteria(now time.Time) Criteria {
	return Criteria{Year: strconv.Itoa(now.Year())}
}

// Clear removes every constraint.
func (c *Criteria) Clear() {
	*c = Criteria{}
}

// IsEmpty reports whether no constraint is set.
func (c Criteria) IsEmpty() bool {
	return c == Criteria{}
}

// Matches reports whether r satisfies every non-empty constraint.
func (c Criteria) Matches(r *models.Record) bool {
	if c.Store != "" && !strings.EqualFold(r.Store, c.Store) {
		return false
	}
	if c.Date != "" && r.Date != c.Date {
		return false
	}
	if c.Year == "" && c.Month == "" {
		return true
	}

	date, ok := r.ParsedDate()
	if !ok {
		return false
	}
	if c.Year != "" && !numberEquals(c.Year, date.Year()) {
		return false
	}
	if c.Month != "" && !numberEquals(c.Month, int(date.Month())) {
		return false
	}
	return true
}

func numberEquals(text string, n int) bool {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	return err == nil && v == n
}

// ApplyFilters returns the records matching criteria. The records are shared with
// the input collection, not copied.
func ApplyFilters(collection models.Collection, criteria Criteria) models.Collection {
	out := make(models.Collection, len(collection))
	for id, r := range collection {
		if r == nil {
			continue
		}
		if criteria.Matches(r) {
			out[id] = r
		}
	}
	return out
}
