package planner

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"sync"

	"mealsync/internal/remote"
	"mealsync/internal/shared"
	"mealsync/internal/store"
)

// Local storage key prefixes. The week label is appended.
const (
	KeyGuestPlanPrefix   = "guestMealPlan_"
	KeyAccountPlanPrefix = "account_mealPlan_"
)

// Plan is the weekly meal plan. Each week is its own collection, opened on
// first use.
type Plan struct {
	client *remote.Client
	deps   store.Deps

	mu       sync.Mutex
	week     string
	weeks    map[string]*store.Store[Entry]
	switched chan struct{} // closed and replaced when the week changes
}

// NewPlan creates a Plan showing DefaultWeek.
func NewPlan(client *remote.Client, deps store.Deps) *Plan {
	return &Plan{
		client:   client,
		deps:     deps,
		week:     DefaultWeek,
		weeks:    make(map[string]*store.Store[Entry]),
		switched: make(chan struct{}),
	}
}

// Week returns the week currently shown.
func (p *Plan) Week() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.week
}

// SetWeek switches the current week. Call Load afterwards to rehydrate it.
func (p *Plan) SetWeek(week string) error {
	week = strings.TrimSpace(week)
	if week == "" {
		return shared.Validation("week is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if week != p.week {
		p.week = week
		close(p.switched)
		p.switched = make(chan struct{})
	}
	return nil
}

// Subscribe streams snapshots of whichever week is current. It starts with
// the current week and moves to the new one, sending its snapshot, each time
// the week changes. Only the latest snapshot is kept for slow readers. The
// channel is closed when ctx is done.
func (p *Plan) Subscribe(ctx context.Context) <-chan []Entry {
	out := make(chan []Entry, 1)
	go func() {
		defer close(out)
		for {
			p.mu.Lock()
			week, switched := p.week, p.switched
			p.mu.Unlock()

			weekCtx, cancel := context.WithCancel(ctx)
			done := forward(weekCtx, p.storeFor(week).Subscribe(weekCtx), switched, out)
			cancel()
			if done {
				return
			}
		}
	}()
	return out
}

// forward copies snapshots to out until the week switches, returning false,
// or ctx is done, returning true.
func forward(ctx context.Context, in <-chan []Entry, switched <-chan struct{}, out chan []Entry) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case <-switched:
			return false
		case snap, ok := <-in:
			if !ok {
				return true
			}
			select {
			case <-out:
			default:
			}
			select {
			case out <- snap:
			default:
			}
		}
	}
}

// Store returns the collection of the current week.
func (p *Plan) Store() *store.Store[Entry] {
	return p.storeFor(p.Week())
}

func (p *Plan) storeFor(week string) *store.Store[Entry] {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.weeks[week]; ok {
		return s
	}
	s := store.New(store.Options[Entry]{
		Kind:          "meal",
		GuestKey:      KeyGuestPlanPrefix + week,
		CacheKey:      KeyAccountPlanPrefix + week,
		GuestIDPrefix: "meal",
		Slot:          Slot,
	}, remote.NewResource[Entry](p.client, remote.Endpoint{
		Path:      "/meal-plan",
		ListField: "meal_plan",
		ItemField: "item",
		Query:     url.Values{"week": {week}},
	}), p.deps)
	p.weeks[week] = s
	return s
}

// opened returns the collection of every week used so far, the current one
// included, in week order.
func (p *Plan) opened() []*store.Store[Entry] {
	p.Store()
	p.mu.Lock()
	defer p.mu.Unlock()
	weeks := make([]string, 0, len(p.weeks))
	for w := range p.weeks {
		weeks = append(weeks, w)
	}
	slices.Sort(weeks)
	stores := make([]*store.Store[Entry], len(weeks))
	for i, w := range weeks {
		stores[i] = p.weeks[w]
	}
	return stores
}

// Load rehydrates the current week.
func (p *Plan) Load(ctx context.Context) error {
	_, err := p.Store().Load(ctx)
	return err
}

// Add plans a meal. The entry goes to its own week, or the current week when
// it has none. A meal already planned for the same day and meal time is
// replaced.
func (p *Plan) Add(ctx context.Context, e Entry) (store.Result[Entry], error) {
	if e.Week == "" {
		e.Week = p.Week()
	}
	if e.Servings == 0 {
		e.Servings = 1
	}
	return p.storeFor(e.Week).Add(ctx, e)
}

// Remove deletes a meal from the current week.
func (p *Plan) Remove(ctx context.Context, id shared.ID) (store.Result[Entry], error) {
	return p.Store().Remove(ctx, id)
}

// Entries returns the current week ordered by day, then meal time.
func (p *Plan) Entries() []Entry {
	entries := p.Store().Items()
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if d := position(Days, a.Day) - position(Days, b.Day); d != 0 {
			return d
		}
		return position(MealTimes, a.MealTime) - position(MealTimes, b.MealTime)
	})
	return entries
}

// MealsForDay returns the current week's meals on day in meal-time order.
func (p *Plan) MealsForDay(day string) []Entry {
	var out []Entry
	for _, e := range p.Entries() {
		if e.Day == day {
			out = append(out, e)
		}
	}
	return out
}

// Sync replays pending changes of every week opened so far.
func (p *Plan) Sync(ctx context.Context) (store.SyncReport, error) {
	var report store.SyncReport
	for _, s := range p.opened() {
		r, err := s.Sync(ctx)
		report = report.Add(r)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// AdoptGuest imports the guest plan of every week opened so far.
func (p *Plan) AdoptGuest(ctx context.Context) (store.SyncReport, error) {
	var report store.SyncReport
	for _, s := range p.opened() {
		r, err := s.AdoptGuest(ctx)
		report = report.Add(r)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}
