package shopping

import (
	"slices"
	"strings"

	"mealsync/internal/shared"
)

// Categories a shopping item can be filed under.
var Categories = []string{"Meat", "Vegetables", "Fruits", "Dairy", "Pantry", "Pasta", "Beverages", "Other"}

// Item is one line of the shopping list.
type Item struct {
	ID         shared.ID `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Checked    bool      `json:"checked"`
	SourceMeal string    `json:"source_meal,omitempty"`
}

func (i Item) GetID() shared.ID { return i.ID }

func (i Item) WithID(id shared.ID) Item {
	i.ID = id
	return i
}

func (i Item) String() string { return i.Name }

func (i Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return shared.Validation("item name is required")
	}
	if !slices.Contains(Categories, i.Category) {
		return shared.Validation("unknown category %q", i.Category)
	}
	return nil
}

// key is the case-insensitive identity of an item name.
func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
