package recipe

import (
	"strings"

	"mealsync/internal/shared"
)

// Recipe is a recipe the user saved from the catalog or wrote themselves.
type Recipe struct {
	ID           shared.ID `json:"id"`
	Name         string    `json:"name"`
	Time         string    `json:"time,omitempty"`
	Servings     int       `json:"servings,omitempty"`
	Image        string    `json:"image,omitempty"`
	Ingredients  []string  `json:"ingredients,omitempty"`
	Instructions []string  `json:"instructions,omitempty"`
	SourceURL    string    `json:"source_url,omitempty"`
}

func (r Recipe) GetID() shared.ID { return r.ID }

func (r Recipe) WithID(id shared.ID) Recipe {
	r.ID = id
	return r
}

func (r Recipe) String() string { return r.Name }

// Validate checks the fields every recipe must carry.
func (r Recipe) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return shared.Validation("recipe name is required")
	}
	if r.Servings < 0 {
		return shared.Validation("servings must not be negative, got %d", r.Servings)
	}
	for i, ing := range r.Ingredients {
		if strings.TrimSpace(ing) == "" {
			return shared.Validation("ingredient %d is empty", i+1)
		}
	}
	return nil
}
