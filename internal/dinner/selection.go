// Package dinner decodes dinner order selections and prices them against a
// form's configured menu.
//
// Two payload schemas are supported without data migration. The current
// "categories" schema maps category id -> meal objects, each with a courses
// mapping of course slot -> selected menu-item id (0 or absent means no
// selection). The legacy "meals" schema maps stringified menu-item id -> an
// array whose length is the quantity ordered. Orders written during the
// format migration can carry both; their costs are additive.
package dinner

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"registration-service/internal/models"
)

// Meal is one meal selection in the "categories" schema.
type Meal struct {
	Name        string                     `json:"name,omitempty"`
	Courses     map[string]int64           `json:"courses,omitempty"`
	ItemOptions map[string]json.RawMessage `json:"item_options,omitempty"`
}

// Selection is a decoded order payload.
type Selection struct {
	Categories map[string][]Meal            `json:"categories,omitempty"`
	Meals      map[string][]json.RawMessage `json:"meals,omitempty"`
}

// Course slot names carrying main meals and desserts, used to enforce the
// desserts-per-meal limit at submission time.
const (
	CourseMain    = "main"
	CourseDessert = "dessert"
)

// ParseSelection decodes an order payload. An empty payload decodes to an
// empty selection.
func ParseSelection(raw []byte) (*Selection, error) {
	sel := &Selection{}
	if len(raw) == 0 {
		return sel, nil
	}
	if err := json.Unmarshal(raw, sel); err != nil {
		return nil, fmt.Errorf("failed to decode dinner selection: %w", err)
	}
	return sel, nil
}

// Empty reports whether the selection orders nothing in either schema.
func (s *Selection) Empty() bool {
	return len(s.Categories) == 0 && len(s.Meals) == 0
}

// DualSchema reports whether both payload generations are populated at once.
// That is an artifact of the format migration; callers log it so a possible
// double count is observable rather than silently summed.
func (s *Selection) DualSchema() bool {
	return len(s.Categories) > 0 && len(s.Meals) > 0
}

// Quantities returns how many of each menu item the selection orders, keyed
// by item id. Items from both schemas accumulate. An id that does not resolve
// against menuItems yields an InvalidMenuItemError.
func (s *Selection) Quantities(menuItems []models.DinnerMenuItem) (map[int64]int, error) {
	counts := make(map[int64]int)

	for _, meals := range s.Categories {
		for _, meal := range meals {
			for _, itemID := range meal.Courses {
				if itemID <= 0 {
					continue
				}
				if findMenuItem(menuItems, itemID) == nil {
					return nil, &models.InvalidMenuItemError{ItemID: itemID}
				}
				counts[itemID]++
			}
		}
	}

	for key, orders := range s.Meals {
		itemID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			itemID = 0
		}
		if findMenuItem(menuItems, itemID) == nil {
			return nil, &models.InvalidMenuItemError{ItemID: itemID}
		}
		counts[itemID] += len(orders)
	}

	return counts, nil
}

// Cost sums the configured price of every selected item.
func (s *Selection) Cost(menuItems []models.DinnerMenuItem) (int64, error) {
	counts, err := s.Quantities(menuItems)
	if err != nil {
		return 0, err
	}
	var total int64
	for itemID, count := range counts {
		total += findMenuItem(menuItems, itemID).Price * int64(count)
	}
	return total, nil
}

// CourseCounts returns how many main and dessert course selections the
// "categories" schema carries. The legacy schema has no course slots and
// contributes nothing.
func (s *Selection) CourseCounts() (mains, desserts int) {
	for _, meals := range s.Categories {
		for _, meal := range meals {
			for slot, itemID := range meal.Courses {
				if itemID <= 0 {
					continue
				}
				switch slot {
				case CourseMain:
					mains++
				case CourseDessert:
					desserts++
				}
			}
		}
	}
	return mains, desserts
}

// Describe renders the selection as a human-readable list for invoices, one
// line per distinct item, using the plural display name when the quantity
// is more than one. Unknown items surface as an InvalidMenuItemError the
// same way Cost does.
func (s *Selection) Describe(menuItems []models.DinnerMenuItem) (string, error) {
	counts, err := s.Quantities(menuItems)
	if err != nil {
		return "", err
	}

	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	for _, id := range ids {
		item := findMenuItem(menuItems, id)
		count := counts[id]
		name := item.Name
		if count > 1 && item.NamePlural != "" {
			name = item.NamePlural
		}
		fmt.Fprintf(&b, "%d x %s\n", count, name)
	}
	return b.String(), nil
}

func findMenuItem(menuItems []models.DinnerMenuItem, id int64) *models.DinnerMenuItem {
	for i := range menuItems {
		if menuItems[i].ID == id {
			return &menuItems[i]
		}
	}
	return nil
}
