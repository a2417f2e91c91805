package store

// Outcome is the normalized result of a judicial decision.
type Outcome string

const (
	OutcomeGranted Outcome = "granted"
	OutcomeDenied  Outcome = "denied"
	OutcomeOther   Outcome = "other"
)

// Decision is the structured row persisted for one judicial decision.
type Decision struct {
	ID  int64
	UID string // shared key correlating the structured row with its vector row

	// SourceID is the stable upstream identifier. It is unique in the
	// store, which makes re-ingesting a file that committed but was never
	// marked in the ledger a no-op instead of a duplicate.
	SourceID string

	Content     string
	OriginState string // two-letter state code, empty when unknown
	Outcome     Outcome

	PrecedentApplied   bool
	ElderlyParty       bool
	FemaleParty        bool
	PreliminaryMatters bool
	FeeWaiver          bool

	CreatedTs int64
}

// DecisionVector is the vectorized row persisted for one judicial decision.
type DecisionVector struct {
	ID  int64
	UID string // same shared key as the Decision row

	Content   string
	Theses    []string // ordered thesis statements, possibly empty
	Embedding []float32
	Model     string

	CreatedTs int64
}

// FindDecision filters decision lookups.
type FindDecision struct {
	ID    *int64
	UID   *string
	Limit *int
}

// VectorSearchOptions controls a nearest-neighbor lookup over stored vectors.
type VectorSearchOptions struct {
	Vector []float32
	Limit  int
}

// VectorMatch is one ranked result of a vector search. Distance is cosine
// distance, ascending means more similar.
type VectorMatch struct {
	UID      string
	Content  string
	Distance float64
}
