package store

import (
	"context"

	"github.com/openjuris/lexvec/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) CreateDecision(ctx context.Context, decision *Decision, vector *DecisionVector) (*Decision, error) {
	return s.driver.CreateDecision(ctx, decision, vector)
}

func (s *Store) ListDecisions(ctx context.Context, find *FindDecision) ([]*Decision, error) {
	return s.driver.ListDecisions(ctx, find)
}

func (s *Store) CountDecisions(ctx context.Context) (int64, int64, error) {
	return s.driver.CountDecisions(ctx)
}

func (s *Store) SearchDecisionVectors(ctx context.Context, opts *VectorSearchOptions) ([]*VectorMatch, error) {
	return s.driver.SearchDecisionVectors(ctx, opts)
}

// Ping verifies the backing database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.GetDB().PingContext(ctx)
}
