package identity

import (
	"context"

	"mealsync/internal/localstore"
)

// tourKey scopes the onboarding flag to the account, or to "guest".
func (s *Session) tourKey() string {
	owner := s.UserID()
	if owner == "" {
		owner = "guest"
	}
	return localstore.KeyTourPrefix + owner
}

// TourCompleted reports whether the current identity finished onboarding.
func (s *Session) TourCompleted(ctx context.Context) bool {
	done, _ := localstore.Value[bool](ctx, s.local, s.tourKey())
	return done
}

// CompleteTour records that the current identity finished onboarding.
func (s *Session) CompleteTour(ctx context.Context) error {
	return s.local.PutValue(ctx, s.tourKey(), true)
}
