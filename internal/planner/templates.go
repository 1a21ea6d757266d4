package planner

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mealsync/internal/identity"
	"mealsync/internal/logging"
	"mealsync/internal/shared"
)

// Doer sends a JSON request to the backend. *remote.Client implements it.
type Doer interface {
	Do(ctx context.Context, method, path string, body, out any) error
}

// TemplateMeal is one meal of a template day.
type TemplateMeal struct {
	RecipeName string `json:"recipe_name"`
	Servings   int    `json:"servings,omitempty"`
	Image      string `json:"image,omitempty"`
}

// Template is a ready-made weekly plan published by an admin.
type Template struct {
	ID              string                             `json:"id"`
	Name            string                             `json:"name"`
	Description     string                             `json:"description"`
	WeekStart       string                             `json:"week_start"`
	Meals           map[string]map[string]TemplateMeal `json:"meals"`
	CreatedBy       string                             `json:"created_by"`
	IsAdminTemplate bool                               `json:"is_admin_template"`
	CreatedAt       string                             `json:"created_at"`
}

// Notification reports a template an admin created, updated or removed.
type Notification struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Action       string   `json:"action"`
	MealPlanID   string   `json:"meal_plan_id"`
	MealPlanData Template `json:"meal_plan_data"`
	Timestamp    string   `json:"timestamp"`
	Status       string   `json:"status"`
}

// Templates reads admin templates and polls for changes to them.
type Templates struct {
	client Doer
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	lastSync string
}

// NewTemplates creates a Templates client.
func NewTemplates(client Doer, logger *zap.Logger) *Templates {
	return &Templates{client: client, logger: logging.OrNop(logger), now: time.Now}
}

// List returns the published templates. The built-in templates stand in when
// the backend cannot be asked.
func (t *Templates) List(ctx context.Context) []Template {
	var resp struct {
		Templates []Template `json:"templates"`
	}
	if err := t.client.Do(ctx, http.MethodGet, "/meal-plans/admin-templates", nil, &resp); err != nil {
		t.logger.Warn("failed to get admin templates, using built-in ones", zap.Error(err))
		return FallbackTemplates()
	}
	return resp.Templates
}

// Apply asks the backend to copy a template into the user's plan for week.
func (t *Templates) Apply(ctx context.Context, templateID, week string) error {
	if week == "" {
		week = DefaultWeek
	}
	body := map[string]string{"template_id": templateID, "week": week}
	var resp struct {
		Message *string `json:"message"`
	}
	if err := t.client.Do(ctx, http.MethodPost, "/meal-plans/apply-template", body, &resp); err != nil {
		return err
	}
	if resp.Message == nil {
		return &shared.Error{Kind: shared.KindUnknown, Op: "apply template", Message: "template was not applied"}
	}
	return nil
}

// CheckUpdates returns the template notifications since the last call that
// returned any.
func (t *Templates) CheckUpdates(ctx context.Context) ([]Notification, error) {
	t.mu.Lock()
	path := "/meal-plans/sync"
	if t.lastSync != "" {
		path += "?last_sync=" + url.QueryEscape(t.lastSync)
	}
	t.mu.Unlock()

	var resp struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := t.client.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Notifications) > 0 {
		t.mu.Lock()
		t.lastSync = t.now().UTC().Format("2006-01-02T15:04:05.000Z")
		t.mu.Unlock()
	}
	return resp.Notifications, nil
}

// Expand turns a template into plan entries for week, in day and meal-time
// order. Entry ids are "<template>_<day>_<mealTime>".
func Expand(tpl Template, week string) []Entry {
	var entries []Entry
	for _, day := range orderedKeys(tpl.Meals, Days) {
		meals := tpl.Meals[day]
		for _, mealTime := range orderedKeys(meals, MealTimes) {
			meal := meals[mealTime]
			e := Entry{
				ID:         shared.ID(tpl.ID + "_" + day + "_" + mealTime),
				RecipeName: meal.RecipeName,
				Day:        day,
				MealTime:   mealTime,
				Servings:   meal.Servings,
				Image:      meal.Image,
				Week:       week,
			}
			if e.Servings == 0 {
				e.Servings = 1
			}
			if e.Image == "" {
				e.Image = "🍽️"
			}
			entries = append(entries, e)
		}
	}
	return entries
}

// orderedKeys returns the keys of m that appear in order first, in that
// order, followed by the rest sorted.
func orderedKeys[V any](m map[string]V, order []string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if d := position(order, a) - position(order, b); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	return keys
}

// ApplyTemplate fills week with a template. Signed-in users get the
// backend's copy, or a local one queued for sync when the backend cannot be
// reached. Guests always get a local copy. Returns how many meals were
// planned locally.
func (p *Plan) ApplyTemplate(ctx context.Context, t *Templates, tpl Template, week string) (int, error) {
	if week == "" {
		week = p.Week()
	}
	if p.deps.Identity.Mode() == identity.ModeAuthenticated {
		err := t.Apply(ctx, tpl.ID, week)
		if err == nil {
			_, err = p.storeFor(week).Load(ctx)
			return 0, err
		}
		if !shared.IsNetwork(err) && shared.KindOf(err) != shared.KindServer {
			return 0, err
		}
	}

	added := 0
	for _, e := range Expand(tpl, week) {
		e.ID = ""
		if _, err := p.storeFor(week).Add(ctx, e); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// FallbackTemplates are offered when the backend has no templates to give.
func FallbackTemplates() []Template {
	return []Template{
		{
			ID:          "template_admin_mediterranean",
			Name:        "7-Day Mediterranean Plan",
			Description: "Healthy Mediterranean diet with fresh ingredients",
			WeekStart:   "2024-01-01",
			Meals: map[string]map[string]TemplateMeal{
				"Monday": {
					"Breakfast": {RecipeName: "Greek Yogurt with Berries", Servings: 1, Image: "🥣"},
					"Lunch":     {RecipeName: "Mediterranean Salad", Servings: 1, Image: "🥗"},
					"Dinner":    {RecipeName: "Grilled Fish with Vegetables", Servings: 1, Image: "🐟"},
				},
				"Tuesday": {
					"Breakfast": {RecipeName: "Avocado Toast", Servings: 1, Image: "🥑"},
					"Lunch":     {RecipeName: "Hummus Bowl", Servings: 1, Image: "🍲"},
					"Dinner":    {RecipeName: "Chicken Souvlaki", Servings: 1, Image: "🍗"},
				},
			},
			CreatedBy:       "Admin",
			IsAdminTemplate: true,
			CreatedAt:       "2024-01-01T00:00:00Z",
		},
		{
			ID:          "template_admin_keto",
			Name:        "Keto Weekly Plan",
			Description: "Low-carb ketogenic meal plan for weight management",
			WeekStart:   "2024-01-01",
			Meals: map[string]map[string]TemplateMeal{
				"Monday": {
					"Breakfast": {RecipeName: "Keto Scrambled Eggs", Servings: 1, Image: "🍳"},
					"Lunch":     {RecipeName: "Avocado Chicken Salad", Servings: 1, Image: "🥗"},
					"Dinner":    {RecipeName: "Grilled Salmon with Asparagus", Servings: 1, Image: "🐟"},
				},
				"Tuesday": {
					"Breakfast": {RecipeName: "Bacon and Eggs", Servings: 1, Image: "🥓"},
					"Lunch":     {RecipeName: "Keto Caesar Salad", Servings: 1, Image: "🥗"},
					"Dinner":    {RecipeName: "Beef Steak with Butter", Servings: 1, Image: "🥩"},
				},
			},
			CreatedBy:       "Admin",
			IsAdminTemplate: true,
			CreatedAt:       "2024-01-01T00:00:00Z",
		},
	}
}
