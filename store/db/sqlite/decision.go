package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/openjuris/lexvec/store"
)

// CreateDecision inserts the structured row and its vector row in a single
// transaction keyed by the shared uid. A record whose source_id is already
// stored is returned as-is without writing anything.
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
	embeddingJSON, err := json.Marshal(vector.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode embedding")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO decision (
			uid, source_id, content, origin_state, outcome,
			precedent_applied, elderly_party, female_party, preliminary_matters, fee_waiver,
			created_ts
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id) DO NOTHING`,
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
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert decision")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read insert result")
	}
	if affected == 0 {
		// Already ingested on an earlier pass; both rows are durable. The
		// lookup must run on the open transaction, the pool has one
		// connection.
		return getDecisionBySourceID(ctx, tx, decision.SourceID)
	}
	decision.ID, err = result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read decision id")
	}

	result, err = tx.ExecContext(ctx, `
		INSERT INTO decision_vector (uid, content, theses, embedding, model, created_ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		vector.UID,
		vector.Content,
		string(thesesJSON),
		string(embeddingJSON),
		vector.Model,
		vector.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert decision vector")
	}
	vector.ID, err = result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read decision vector id")
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
		WHERE source_id = ?`, sourceID,
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
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
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
		query += " LIMIT ?"
		args = append(args, *find.Limit)
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

// SearchDecisionVectors ranks all stored vectors by cosine distance in
// process. Brute force is acceptable for the small corpora this driver is
// meant for; the metric and tie-break match the postgres driver exactly.
func (d *DB) SearchDecisionVectors(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.VectorMatch, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	rows, err := d.db.QueryContext(ctx, `SELECT id, uid, content, embedding FROM decision_vector`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load decision vectors")
	}
	defer rows.Close()

	type scored struct {
		id    int64
		match *store.VectorMatch
	}
	candidates := []scored{}

	for rows.Next() {
		var id int64
		var uid, content, embeddingJSON string
		if err := rows.Scan(&id, &uid, &content, &embeddingJSON); err != nil {
			return nil, errors.Wrap(err, "failed to scan decision vector")
		}
		var embedding []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &embedding); err != nil {
			return nil, errors.Wrapf(err, "corrupt embedding for uid %s", uid)
		}
		candidates = append(candidates, scored{
			id: id,
			match: &store.VectorMatch{
				UID:      uid,
				Content:  content,
				Distance: cosineDistance(opts.Vector, embedding),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].match.Distance != candidates[j].match.Distance {
			return candidates[i].match.Distance < candidates[j].match.Distance
		}
		return candidates[i].id < candidates[j].id
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	matches := make([]*store.VectorMatch, len(candidates))
	for i, c := range candidates {
		matches[i] = c.match
	}
	return matches, nil
}

// cosineDistance computes 1 - cosine similarity, matching pgvector's <=>.
// Zero or mismatched vectors rank last.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat64
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return math.MaxFloat64
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
