// Package ingest implements the batch ingestion pipeline: JSON decision
// files in, structured rows and embedding vectors out.
package ingest

import (
	"bytes"
	"encoding/json"

	"github.com/openjuris/lexvec/internal/apperrors"
)

// RawDecision is one decision record as it appears in the input JSON.
// Boolean flags are typed as any because upstream exports are inconsistent:
// real booleans, "true"/"false" strings and 0/1 numbers all occur.
// Unknown fields are ignored.
type RawDecision struct {
	ID       any `json:"id"`
	IDOrigem any `json:"id_origem"`

	NumeroProcesso string `json:"numeroProcesso"`
	UF             string `json:"uf"`
	Resultado      string `json:"resultado"`

	PrecedenteAplicado   any `json:"precedenteAplicado"`
	ParteIdosa           any `json:"parteIdosa"`
	ParteMulher          any `json:"parteMulher"`
	QuestoesPreliminares any `json:"questoesPreliminares"`
	JusticaGratuita      any `json:"justicaGratuita"`

	InteiroTeor  string   `json:"inteiroTeor"`
	TeseJuridica *string  `json:"teseJuridica"`
	Teses        []string `json:"teses"`
}

// ParseDecisions normalizes one JSON input into a flat record sequence.
// The input must be a single object or an array of objects; any other
// top-level shape is malformed. Parsing is pure: no logging, no I/O.
func ParseDecisions(raw []byte) ([]*RawDecision, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, apperrors.MalformedInput("input is empty")
	}

	switch trimmed[0] {
	case '{':
		var record RawDecision
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeMalformedInput, "invalid JSON object")
		}
		return []*RawDecision{&record}, nil
	case '[':
		var records []*RawDecision
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeMalformedInput, "invalid JSON array")
		}
		return records, nil
	default:
		return nil, apperrors.MalformedInput("top-level JSON must be an object or an array of objects")
	}
}
