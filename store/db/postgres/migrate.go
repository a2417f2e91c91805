package postgres

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Migrate creates the decision tables and the cosine IVFFlat index.
// The vector dimension is frozen into the column type; changing the
// embedding model dimension requires a new table.
func (d *DB) Migrate(ctx context.Context) error {
	dim := d.profile.EmbeddingDim

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS decision (
			id BIGSERIAL PRIMARY KEY,
			uid TEXT NOT NULL UNIQUE,
			source_id TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL CHECK (content <> ''),
			origin_state VARCHAR(2) NOT NULL DEFAULT '',
			outcome VARCHAR(16) NOT NULL DEFAULT 'other',
			precedent_applied BOOLEAN NOT NULL DEFAULT FALSE,
			elderly_party BOOLEAN NOT NULL DEFAULT FALSE,
			female_party BOOLEAN NOT NULL DEFAULT FALSE,
			preliminary_matters BOOLEAN NOT NULL DEFAULT FALSE,
			fee_waiver BOOLEAN NOT NULL DEFAULT FALSE,
			created_ts BIGINT NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS decision_vector (
			id BIGSERIAL PRIMARY KEY,
			uid TEXT NOT NULL UNIQUE REFERENCES decision (uid),
			content TEXT NOT NULL CHECK (content <> ''),
			theses TEXT NOT NULL DEFAULT '[]',
			embedding VECTOR(%d) NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			created_ts BIGINT NOT NULL
		)`, dim),
		`CREATE INDEX IF NOT EXISTS idx_decision_vector_embedding
			ON decision_vector
			USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = 100)`,
	}

	for i, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migration statement %d failed", i)
		}
	}
	return nil
}
