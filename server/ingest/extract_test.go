package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openjuris/lexvec/internal/apperrors"
	"github.com/openjuris/lexvec/store"
)

func TestSplitTheses(t *testing.T) {
	assert.Equal(t,
		[]string{"Tese 1", "Tese 2", "Tese 3"},
		SplitTheses("Tese 1. Tese 2. Tese 3."))
}

func TestSplitThesesEmpty(t *testing.T) {
	assert.Equal(t, []string{}, SplitTheses(""))
	assert.Equal(t, []string{}, SplitTheses(" .  . "))
}

func TestSplitThesesMixedPunctuation(t *testing.T) {
	assert.Equal(t,
		[]string{"Cabe recurso", "Não cabe", "Fim"},
		SplitTheses("Cabe recurso? Não cabe! Fim."))
}

func TestSplitThesesNoTrailingPunctuation(t *testing.T) {
	assert.Equal(t,
		[]string{"Tese 1", "Tese 2"},
		SplitTheses("Tese 1. Tese 2"))
}

func TestSplitThesesCollapsesWhitespace(t *testing.T) {
	assert.Equal(t,
		[]string{"Tese com espaços", "Outra"},
		SplitTheses("  Tese \n com\tespaços .  Outra.  "))
}

func thesis(s string) *string { return &s }

func TestExtractAttributes(t *testing.T) {
	rec := &RawDecision{
		ID:                   "stj-042",
		UF:                   "rj",
		Resultado:            "improvido",
		PrecedenteAplicado:   true,
		ParteIdosa:           "true",
		ParteMulher:          float64(1),
		QuestoesPreliminares: "false",
		JusticaGratuita:      nil,
		InteiroTeor:          "Acórdão.\nRecurso  improvido.",
		TeseJuridica:         thesis("Tese 1. Tese 2. Tese 3."),
	}

	decision, payload, err := ExtractAttributes(rec)
	require.NoError(t, err)

	assert.Equal(t, "stj-042", decision.SourceID)
	assert.Equal(t, "RJ", decision.OriginState)
	assert.Equal(t, store.OutcomeDenied, decision.Outcome)
	assert.True(t, decision.PrecedentApplied)
	assert.True(t, decision.ElderlyParty)
	assert.True(t, decision.FemaleParty)
	assert.False(t, decision.PreliminaryMatters)
	assert.False(t, decision.FeeWaiver)
	assert.Equal(t, "Acórdão. Recurso improvido.", decision.Content)

	assert.Equal(t, decision.Content, payload.Content)
	assert.Equal(t, []string{"Tese 1", "Tese 2", "Tese 3"}, payload.Theses)
}

func TestExtractAttributesNullThesisYieldsEmptyList(t *testing.T) {
	rec := &RawDecision{ID: "a", InteiroTeor: "Texto."}

	_, payload, err := ExtractAttributes(rec)
	require.NoError(t, err)
	assert.Equal(t, []string{}, payload.Theses)
}

func TestExtractAttributesPreSplitThesesWin(t *testing.T) {
	rec := &RawDecision{
		ID:           "a",
		InteiroTeor:  "Texto.",
		TeseJuridica: thesis("Ignorada."),
		Teses:        []string{" Tese A ", "", "Tese B"},
	}

	_, payload, err := ExtractAttributes(rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tese A", "Tese B"}, payload.Theses)
}

func TestExtractAttributesUnrecognizedFlagDefaultsFalse(t *testing.T) {
	rec := &RawDecision{
		ID:                 "a",
		InteiroTeor:        "Texto.",
		PrecedenteAplicado: "maybe",
		ParteIdosa:         float64(7),
	}

	decision, _, err := ExtractAttributes(rec)
	require.NoError(t, err)
	assert.False(t, decision.PrecedentApplied)
	assert.False(t, decision.ElderlyParty)
}

func TestExtractAttributesStringFlagCoercion(t *testing.T) {
	rec := &RawDecision{
		ID:              "a",
		InteiroTeor:     "Texto.",
		JusticaGratuita: "TRUE",
		ParteMulher:     "false",
	}

	decision, _, err := ExtractAttributes(rec)
	require.NoError(t, err)
	assert.True(t, decision.FeeWaiver)
	assert.False(t, decision.FemaleParty)
}

func TestExtractAttributesEmptyContentRejected(t *testing.T) {
	for _, content := range []string{"", "   ", "\n\t"} {
		rec := &RawDecision{ID: "a", InteiroTeor: content}
		_, _, err := ExtractAttributes(rec)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.CodeOf(err))
	}
}

func TestExtractAttributesMissingSourceIDRejected(t *testing.T) {
	rec := &RawDecision{InteiroTeor: "Texto."}
	_, _, err := ExtractAttributes(rec)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.CodeOf(err))
}

func TestExtractAttributesNumericSourceID(t *testing.T) {
	rec := &RawDecision{ID: float64(4711), InteiroTeor: "Texto."}
	decision, _, err := ExtractAttributes(rec)
	require.NoError(t, err)
	assert.Equal(t, "4711", decision.SourceID)
}

func TestExtractAttributesIDOrigemFallback(t *testing.T) {
	rec := &RawDecision{IDOrigem: "orig-9", InteiroTeor: "Texto."}
	decision, _, err := ExtractAttributes(rec)
	require.NoError(t, err)
	assert.Equal(t, "orig-9", decision.SourceID)
}

func TestNormalizeOutcome(t *testing.T) {
	assert.Equal(t, store.OutcomeGranted, normalizeOutcome("Provido"))
	assert.Equal(t, store.OutcomeGranted, normalizeOutcome("granted"))
	assert.Equal(t, store.OutcomeDenied, normalizeOutcome("DESPROVIDO"))
	assert.Equal(t, store.OutcomeOther, normalizeOutcome("extinto"))
	assert.Equal(t, store.OutcomeOther, normalizeOutcome(""))
}

func TestNormalizeState(t *testing.T) {
	assert.Equal(t, "SP", normalizeState("sp"))
	assert.Equal(t, "RJ", normalizeState(" RJ "))
	assert.Equal(t, "", normalizeState("são paulo"))
	assert.Equal(t, "", normalizeState("S1"))
	assert.Equal(t, "", normalizeState(""))
}
