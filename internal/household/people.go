package household

import (
	"context"
	"strings"

	"mealsync/internal/identity"
	"mealsync/internal/remote"
	"mealsync/internal/shared"
	"mealsync/internal/store"
)

// Local storage keys.
const (
	KeyGuestPeople   = "guest_people"
	KeyAccountPeople = "account_people"
)

// Person is a member of the household the plan cooks for.
type Person struct {
	ID          shared.ID `json:"id"`
	Name        string    `json:"name"`
	Preferences string    `json:"preferences"`
	Allergies   string    `json:"allergies"`
}

func (p Person) GetID() shared.ID { return p.ID }

func (p Person) WithID(id shared.ID) Person {
	p.ID = id
	return p
}

func (p Person) String() string { return p.Name }

func (p Person) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return shared.Validation("person name is required")
	}
	return nil
}

// People is the household member list.
type People struct {
	people   *store.Store[Person]
	identity store.Identity
}

// NewPeople wires the member list to the backend.
func NewPeople(client *remote.Client, deps store.Deps) *People {
	people := store.New(store.Options[Person]{
		Kind:          "person",
		GuestKey:      KeyGuestPeople,
		CacheKey:      KeyAccountPeople,
		GuestIDPrefix: "guest",
	}, remote.NewResource[Person](client, remote.Endpoint{
		Path:      "/persons",
		ListField: "persons",
		ItemField: "person",
	}), deps)
	return &People{people: people, identity: deps.Identity}
}

// Store returns the underlying collection.
func (p *People) Store() *store.Store[Person] { return p.people }

// Load rehydrates the list.
func (p *People) Load(ctx context.Context) error {
	_, err := p.people.Load(ctx)
	return err
}

// List returns the members, or two placeholder members when there are none.
func (p *People) List() []Person {
	if people := p.people.Items(); len(people) > 0 {
		return people
	}
	prefix := "default"
	if p.identity.Mode() == identity.ModeGuest {
		prefix = "guest"
	}
	return []Person{
		{ID: shared.ID(prefix + "-1"), Name: "Person A"},
		{ID: shared.ID(prefix + "-2"), Name: "Person B"},
	}
}

// Add adds a member.
func (p *People) Add(ctx context.Context, person Person) (store.Result[Person], error) {
	person.ID = ""
	person.Name = strings.TrimSpace(person.Name)
	person.Preferences = strings.TrimSpace(person.Preferences)
	person.Allergies = strings.TrimSpace(person.Allergies)
	return p.people.Add(ctx, person)
}

// Update edits a member.
func (p *People) Update(ctx context.Context, person Person) (store.Result[Person], error) {
	return p.people.Update(ctx, person)
}

// Remove deletes a member.
func (p *People) Remove(ctx context.Context, id shared.ID) (store.Result[Person], error) {
	return p.people.Remove(ctx, id)
}

// Sync replays pending changes.
func (p *People) Sync(ctx context.Context) (store.SyncReport, error) {
	return p.people.Sync(ctx)
}

// AdoptGuest imports guest members into the account.
func (p *People) AdoptGuest(ctx context.Context) (store.SyncReport, error) {
	return p.people.AdoptGuest(ctx)
}
