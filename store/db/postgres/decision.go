package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/openjuris/lexvec/store"
)

// CreateDecision inserts the structured row and its vector row in a single
// transaction. The shared uid ties the two tables together; a failure on
// either insert rolls both back. A record whose source_id is already stored
// is returned as-is without writing anything, so re-running a file that
// committed before its ledger mark cannot duplicate rows.
func (d *DB) CreateDecision(ctx context.Context, decision *store.Decision, vector *store.DecisionVector) (*store.Decision, error) {
	if decision.Content == "" || vector.Content == "" {
		return nil, errors.New("decision content must not be empty")
	}
	if decision.UID == "" || decision.UID != vector.UID {
		return nil, errors.New("decision and vector rows must share a non-empty uid")
	}
	if decision.SourceID == "" {
		return nil, errors.New("decision source id must not be empty")
	}

	theses := vector.Theses
	if theses == nil {
		theses = []string{}
	}
	thesesJSON, err := json.Marshal(theses)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode theses")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt := `
		INSERT INTO decision (
			uid, source_id, content, origin_state, outcome,
			precedent_applied, elderly_party, female_party, preliminary_matters, fee_waiver,
			created_ts
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source_id) DO NOTHING
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, stmt,
		decision.UID,
		decision.SourceID,
		decision.Content,
		decision.OriginState,
		decision.Outcome,
		decision.PrecedentApplied,
		decision.ElderlyParty,
		decision.FemaleParty,
		decision.PreliminaryMatters,
		decision.FeeWaiver,
		decision.CreatedTs,
	).Scan(&decision.ID)
	if err == sql.ErrNoRows {
		// Already ingested on an earlier pass; both rows are durable.
		return getDecisionBySourceID(ctx, tx, decision.SourceID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert decision")
	}

	stmt = `
		INSERT INTO decision_vector (uid, content, theses, embedding, model, created_ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, stmt,
		vector.UID,
		vector.Content,
		string(thesesJSON),
		pgvector.NewVector(vector.Embedding),
		vector.Model,
		vector.CreatedTs,
	).Scan(&vector.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert decision vector")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit decision")
	}
	return decision, nil
}

func getDecisionBySourceID(ctx context.Context, tx *sql.Tx, sourceID string) (*store.Decision, error) {
	var decision store.Decision
	err := tx.QueryRowContext(ctx, `
		SELECT id, uid, source_id, content, origin_state, outcome,
			precedent_applied, elderly_party, female_party, preliminary_matters, fee_waiver,
			created_ts
		FROM decision
		WHERE source_id = $1`, sourceID,
	).Scan(
		&decision.ID,
		&decision.UID,
		&decision.SourceID,
		&decision.Content,
		&decision.OriginState,
		&decision.Outcome,
		&decision.PrecedentApplied,
		&decision.ElderlyParty,
		&decision.FemaleParty,
		&decision.PreliminaryMatters,
		&decision.FeeWaiver,
		&decision.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load decision for source id %s", sourceID)
	}
	return &decision, nil
}

// ListDecisions lists structured decision rows.
func (d *DB) ListDecisions(ctx context.Context, find *store.FindDecision) ([]*store.Decision, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}

	query := `
		SELECT id, uid, source_id, content, origin_state, outcome,
			precedent_applied, elderly_party, female_party, preliminary_matters, fee_waiver,
			created_ts
		FROM decision
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC
	`
	if find.Limit != nil {
		args = append(args, *find.Limit)
		query += " LIMIT " + placeholder(len(args))
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list decisions")
	}
	defer rows.Close()

	list := []*store.Decision{}
	for rows.Next() {
		var decision store.Decision
		if err := rows.Scan(
			&decision.ID,
			&decision.UID,
			&decision.SourceID,
			&decision.Content,
			&decision.OriginState,
			&decision.Outcome,
			&decision.PrecedentApplied,
			&decision.ElderlyParty,
			&decision.FemaleParty,
			&decision.PreliminaryMatters,
			&decision.FeeWaiver,
			&decision.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan decision")
		}
		list = append(list, &decision)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// CountDecisions returns the row counts of both tables.
func (d *DB) CountDecisions(ctx context.Context) (int64, int64, error) {
	var decisions, vectors int64
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decision`).Scan(&decisions); err != nil {
		return 0, 0, errors.Wrap(err, "failed to count decisions")
	}
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decision_vector`).Scan(&vectors); err != nil {
		return 0, 0, errors.Wrap(err, "failed to count decision vectors")
	}
	return decisions, vectors, nil
}

// SearchDecisionVectors performs nearest-neighbor search using pgvector.
// The <=> operator computes cosine distance, so ordering ascending returns
// the most similar rows first. Ties are broken by id for stable results.
func (d *DB) SearchDecisionVectors(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.VectorMatch, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT uid, content, embedding <=> $1 AS distance
		FROM decision_vector
		ORDER BY embedding <=> $2 ASC, id ASC
		LIMIT $3
	`

	vector := pgvector.NewVector(opts.Vector)
	rows, err := d.db.QueryContext(ctx, query, vector, vector, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search decision vectors")
	}
	defer rows.Close()

	matches := []*store.VectorMatch{}
	for rows.Next() {
		var match store.VectorMatch
		if err := rows.Scan(&match.UID, &match.Content, &match.Distance); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector match")
		}
		matches = append(matches, &match)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}
