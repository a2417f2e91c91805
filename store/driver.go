package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate creates the decision tables and the vector index if they do not exist.
	Migrate(ctx context.Context) error

	// CreateDecision inserts the structured row and its vector row in one
	// transaction keyed by a shared UID. Either both rows become durable or
	// neither does.
	CreateDecision(ctx context.Context, decision *Decision, vector *DecisionVector) (*Decision, error)

	// ListDecisions lists structured decision rows.
	ListDecisions(ctx context.Context, find *FindDecision) ([]*Decision, error)

	// CountDecisions returns the number of structured rows and vector rows.
	CountDecisions(ctx context.Context) (decisions int64, vectors int64, err error)

	// SearchDecisionVectors ranks stored vectors by cosine distance to the
	// query vector, ascending, ties broken by row id.
	SearchDecisionVectors(ctx context.Context, opts *VectorSearchOptions) ([]*VectorMatch, error)
}
