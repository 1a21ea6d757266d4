package planner

import (
	"slices"
	"strings"

	"mealsync/internal/shared"
)

// DefaultWeek is the week shown before the user picks one.
const DefaultWeek = "Week - 1"

// Days lists the planning days in display order.
var Days = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// MealTimes lists the meal slots of a day in display order.
var MealTimes = []string{"Breakfast", "Lunch", "Snack", "Dinner"}

// Entry is one planned meal.
type Entry struct {
	ID         shared.ID `json:"id"`
	RecipeID   shared.ID `json:"recipe_id,omitempty"`
	RecipeName string    `json:"recipe_name"`
	Day        string    `json:"day"`
	MealTime   string    `json:"meal_time"`
	Servings   int       `json:"servings,omitempty"`
	Image      string    `json:"image,omitempty"`
	Time       string    `json:"time,omitempty"`
	Week       string    `json:"week,omitempty"`
}

func (e Entry) GetID() shared.ID { return e.ID }

func (e Entry) WithID(id shared.ID) Entry {
	e.ID = id
	return e
}

func (e Entry) String() string { return e.RecipeName }

// Validate checks the entry names a meal and a known day and meal time.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.RecipeName) == "" {
		return shared.Validation("recipe name is required")
	}
	if !slices.Contains(Days, e.Day) {
		return shared.Validation("unknown day %q", e.Day)
	}
	if !slices.Contains(MealTimes, e.MealTime) {
		return shared.Validation("unknown meal time %q", e.MealTime)
	}
	if e.Servings < 0 {
		return shared.Validation("servings must not be negative, got %d", e.Servings)
	}
	return nil
}

// Slot identifies the day and meal time an entry occupies. A week holds at
// most one entry per slot.
func Slot(e Entry) string {
	return e.Day + "|" + e.MealTime
}

// NormalizeDay maps any capitalization of a day name to its canonical form.
func NormalizeDay(s string) (string, bool) {
	c := canonical(Days, s)
	return c, c != ""
}

// NormalizeMealTime maps any capitalization of a meal time to its canonical
// form.
func NormalizeMealTime(s string) (string, bool) {
	c := canonical(MealTimes, s)
	return c, c != ""
}

func canonical(values []string, s string) string {
	s = strings.TrimSpace(s)
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return v
		}
	}
	return ""
}

func position(values []string, s string) int {
	for i, v := range values {
		if v == s {
			return i
		}
	}
	return len(values)
}
