package ingest

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/openjuris/lexvec/internal/apperrors"
	"github.com/openjuris/lexvec/store"
)

// VectorPayload is the content destined for the vector table.
type VectorPayload struct {
	Content string
	Theses  []string
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// cleanText collapses line breaks, tabs and space runs into single spaces.
func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// SplitTheses splits a free-text thesis field ("Tese 1. Tese 2.") into
// ordered statements on terminal punctuation. Empty input yields an empty
// list, never an error.
func SplitTheses(text string) []string {
	theses := []string{}
	if text == "" {
		return theses
	}

	var current strings.Builder
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if t := cleanText(current.String()); t != "" {
				theses = append(theses, t)
			}
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if t := cleanText(current.String()); t != "" {
		theses = append(theses, t)
	}
	return theses
}

// coerceBool normalizes the truthy representations seen in source exports.
// Unrecognized values default to false; the caller decides whether to log.
func coerceBool(v any) (value bool, ok bool) {
	switch t := v.(type) {
	case nil:
		return false, true
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "sim", "s":
			return true, true
		case "false", "0", "nao", "não", "n", "":
			return false, true
		}
		return false, false
	case float64:
		// encoding/json decodes all numbers into float64
		if t == 1 {
			return true, true
		}
		if t == 0 {
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

// normalizeOutcome maps source outcome values onto the stored enumeration.
// Portuguese court-result phrasing from upstream exports maps to the same
// three buckets.
func normalizeOutcome(s string) store.Outcome {
	switch strings.ToLower(cleanText(s)) {
	case "granted", "provido", "procedente", "deferido":
		return store.OutcomeGranted
	case "denied", "improvido", "desprovido", "improcedente", "indeferido":
		return store.OutcomeDenied
	default:
		return store.OutcomeOther
	}
}

// normalizeState keeps only well-formed two-letter state codes.
func normalizeState(s string) string {
	s = strings.ToUpper(cleanText(s))
	if len(s) != 2 {
		return ""
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return ""
		}
	}
	return s
}

// sourceID extracts the stable source identifier, accepting the id and
// id_origem spellings and both string and numeric encodings.
func sourceID(rec *RawDecision) string {
	for _, v := range []any{rec.ID, rec.IDOrigem} {
		switch t := v.(type) {
		case string:
			if s := cleanText(t); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%.0f", t)
		}
	}
	return ""
}

// ExtractAttributes maps a parsed record onto the structured attribute
// schema and the vector payload. It is validation-only: a malformed flag is
// coerced to false with a warning, never fatal. Missing content or source
// id fails the record with VALIDATION_FAILED.
func ExtractAttributes(rec *RawDecision) (*store.Decision, *VectorPayload, error) {
	id := sourceID(rec)
	if id == "" {
		return nil, nil, apperrors.ValidationFailed("record has no source id")
	}

	content := cleanText(rec.InteiroTeor)
	if content == "" {
		return nil, nil, apperrors.Newf(apperrors.ErrCodeValidationFailed, "record %s has empty content", id)
	}

	flags := make([]bool, 5)
	for i, f := range []struct {
		name  string
		value any
	}{
		{"precedenteAplicado", rec.PrecedenteAplicado},
		{"parteIdosa", rec.ParteIdosa},
		{"parteMulher", rec.ParteMulher},
		{"questoesPreliminares", rec.QuestoesPreliminares},
		{"justicaGratuita", rec.JusticaGratuita},
	} {
		value, ok := coerceBool(f.value)
		if !ok {
			slog.Warn("unrecognized boolean flag value, defaulting to false",
				slog.String("record_id", id),
				slog.String("flag", f.name),
				slog.Any("value", f.value))
		}
		flags[i] = value
	}

	decision := &store.Decision{
		SourceID:           id,
		Content:            content,
		OriginState:        normalizeState(rec.UF),
		Outcome:            normalizeOutcome(rec.Resultado),
		PrecedentApplied:   flags[0],
		ElderlyParty:       flags[1],
		FemaleParty:        flags[2],
		PreliminaryMatters: flags[3],
		FeeWaiver:          flags[4],
	}

	// Pre-split thesis lists from the source win over the free-text field.
	theses := rec.Teses
	if len(theses) == 0 {
		thesis := ""
		if rec.TeseJuridica != nil {
			thesis = *rec.TeseJuridica
		}
		theses = SplitTheses(thesis)
	} else {
		cleaned := make([]string, 0, len(theses))
		for _, t := range theses {
			if t = cleanText(t); t != "" {
				cleaned = append(cleaned, t)
			}
		}
		theses = cleaned
	}

	payload := &VectorPayload{
		Content: content,
		Theses:  theses,
	}
	return decision, payload, nil
}
