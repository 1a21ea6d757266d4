package planner

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealsync/internal/identity"
	"mealsync/internal/remote/remotetest"
	"mealsync/internal/shared"
)

func TestExpand(t *testing.T) {
	tpl := FallbackTemplates()[0]
	entries := Expand(tpl, "Week - 4")
	require.Len(t, entries, 6)

	assert.Equal(t, shared.ID("template_admin_mediterranean_Monday_Breakfast"), entries[0].ID)
	assert.Equal(t, "Greek Yogurt with Berries", entries[0].RecipeName)
	assert.Equal(t, shared.ID("template_admin_mediterranean_Tuesday_Dinner"), entries[5].ID)
	for _, e := range entries {
		assert.Equal(t, "Week - 4", e.Week)
		assert.NoError(t, e.Validate())
	}

	t.Run("Defaults", func(t *testing.T) {
		entries := Expand(Template{ID: "t", Meals: map[string]map[string]TemplateMeal{
			"Friday": {"Snack": {RecipeName: "Nuts"}},
		}}, DefaultWeek)
		require.Len(t, entries, 1)
		assert.Equal(t, 1, entries[0].Servings)
		assert.Equal(t, "🍽️", entries[0].Image)
	})
}

func TestTemplates(t *testing.T) {
	ctx := context.Background()

	t.Run("ListFromBackend", func(t *testing.T) {
		server := remotetest.NewServer(t)
		server.Handle(http.MethodGet, "/meal-plans/admin-templates", func(w http.ResponseWriter, _ *http.Request) {
			remotetest.WriteJSON(w, http.StatusOK, map[string]any{
				"templates": []map[string]any{{"id": "vegan", "name": "Vegan Week"}},
			})
		})
		templates := NewTemplates(server.Client(), nil).List(ctx)
		require.Len(t, templates, 1)
		assert.Equal(t, "Vegan Week", templates[0].Name)
	})

	t.Run("ListFallsBack", func(t *testing.T) {
		server := remotetest.NewServer(t)
		server.Handle(http.MethodGet, "/meal-plans/admin-templates", func(w http.ResponseWriter, _ *http.Request) {
			remotetest.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
		})
		templates := NewTemplates(server.Client(), nil).List(ctx)
		require.Len(t, templates, 2)
		assert.Equal(t, "template_admin_keto", templates[1].ID)
	})

	t.Run("Apply", func(t *testing.T) {
		server := remotetest.NewServer(t)
		var got map[string]string
		server.Handle(http.MethodPost, "/meal-plans/apply-template", func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			if got["template_id"] == "missing" {
				remotetest.WriteJSON(w, http.StatusOK, map[string]string{})
				return
			}
			remotetest.WriteJSON(w, http.StatusOK, map[string]string{"message": "applied"})
		})
		templates := NewTemplates(server.Client(), nil)

		require.NoError(t, templates.Apply(ctx, "template_admin_keto", ""))
		assert.Equal(t, map[string]string{"template_id": "template_admin_keto", "week": DefaultWeek}, got)

		assert.Error(t, templates.Apply(ctx, "missing", "Week - 2"))
	})

	t.Run("CheckUpdatesAdvancesLastSync", func(t *testing.T) {
		server := remotetest.NewServer(t)
		server.Handle(http.MethodGet, "/meal-plans/sync", func(w http.ResponseWriter, r *http.Request) {
			var notifications []map[string]any
			if r.URL.Query().Get("last_sync") == "" {
				notifications = append(notifications, map[string]any{
					"id": "n1", "action": "create", "meal_plan_data": map[string]any{"name": "Keto Weekly Plan"},
				})
			}
			remotetest.WriteJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
		})
		templates := NewTemplates(server.Client(), nil)
		templates.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }

		first, err := templates.CheckUpdates(ctx)
		require.NoError(t, err)
		require.Len(t, first, 1)
		assert.Equal(t, "Keto Weekly Plan", first[0].MealPlanData.Name)

		second, err := templates.CheckUpdates(ctx)
		require.NoError(t, err)
		assert.Empty(t, second)

		requests := server.Requests()
		require.Len(t, requests, 2)
		assert.Equal(t, "GET /meal-plans/sync", requests[0])
		assert.True(t, strings.HasSuffix(requests[1], "last_sync=2024-03-01T09%3A30%3A00.000Z"), requests[1])
	})
}

func TestApplyTemplate(t *testing.T) {
	ctx := context.Background()
	tpl := FallbackTemplates()[1]

	t.Run("GuestExpandsLocally", func(t *testing.T) {
		plan, env := newPlan(t, identity.ModeGuest)
		added, err := plan.ApplyTemplate(ctx, NewTemplates(env.Client, nil), tpl, "")
		require.NoError(t, err)
		assert.Equal(t, 6, added)
		assert.Equal(t, []string{"Keto Scrambled Eggs", "Avocado Chicken Salad", "Grilled Salmon with Asparagus"},
			names(plan.MealsForDay("Monday")))
		assert.True(t, plan.Entries()[0].ID.HasLocalPrefix("meal"))
		assert.Empty(t, env.Server.Requests())
	})

	t.Run("AuthenticatedUsesBackend", func(t *testing.T) {
		plan, env := newPlan(t, identity.ModeAuthenticated)
		env.Server.Handle(http.MethodPost, "/meal-plans/apply-template", func(w http.ResponseWriter, _ *http.Request) {
			env.Server.Seed("/meal-plan", map[string]any{
				"recipe_name": "Keto Scrambled Eggs", "day": "Monday", "meal_time": "Breakfast", "week": DefaultWeek,
			})
			remotetest.WriteJSON(w, http.StatusOK, map[string]string{"message": "applied"})
		})

		added, err := plan.ApplyTemplate(ctx, NewTemplates(env.Client, nil), tpl, "")
		require.NoError(t, err)
		assert.Zero(t, added)
		assert.Equal(t, []string{"Keto Scrambled Eggs"}, names(plan.Entries()))
	})

	t.Run("AuthenticatedFallsBackOnServerError", func(t *testing.T) {
		plan, env := newPlan(t, identity.ModeAuthenticated)
		env.Server.Handle(http.MethodPost, "/meal-plans/apply-template", func(w http.ResponseWriter, _ *http.Request) {
			remotetest.WriteJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream"})
		})

		added, err := plan.ApplyTemplate(ctx, NewTemplates(env.Client, nil), tpl, "")
		require.NoError(t, err)
		assert.Equal(t, 6, added)
		assert.Len(t, env.Server.Items("/meal-plan"), 6)
	})
}
