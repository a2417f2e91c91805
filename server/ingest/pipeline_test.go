package ingest

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openjuris/lexvec/internal/apperrors"
	"github.com/openjuris/lexvec/internal/profile"
	"github.com/openjuris/lexvec/store"
)

// mockEmbedder is a controllable EmbeddingService for pipeline tests.
type mockEmbedder struct {
	dimensions int
	shouldFail bool
	wrongDim   bool
	mu         sync.Mutex
	texts      []string
}

func newMockEmbedder(dimensions int) *mockEmbedder {
	return &mockEmbedder{dimensions: dimensions}
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.shouldFail {
		return nil, errors.New("embedding service unavailable")
	}
	dim := m.dimensions
	if m.wrongDim {
		dim = m.dimensions + 1
	}
	vector := make([]float32, dim)
	for i := range vector {
		vector[i] = 0.1
	}
	return vector, nil
}

func (m *mockEmbedder) Dimensions() int {
	return m.dimensions
}

// memLedger is an in-memory Ledger fake.
type memLedger struct {
	processed map[string]struct{}
}

func newMemLedger() *memLedger {
	return &memLedger{processed: map[string]struct{}{}}
}

func (l *memLedger) IsProcessed(fileID string) bool {
	_, ok := l.processed[fileID]
	return ok
}

func (l *memLedger) MarkProcessed(fileID string) error {
	l.processed[fileID] = struct{}{}
	return nil
}

func (l *memLedger) Close() error { return nil }

// fakeDriver is an in-memory store.Driver that mirrors the real drivers'
// transactional contract: both rows or neither, source-id dedup.
type fakeDriver struct {
	mu          sync.Mutex
	decisions   []*store.Decision
	vectors     []*store.DecisionVector
	failCreates bool
}

func (d *fakeDriver) GetDB() *sql.DB                { return nil }
func (d *fakeDriver) Close() error                  { return nil }
func (d *fakeDriver) Migrate(context.Context) error { return nil }

func (d *fakeDriver) CreateDecision(_ context.Context, decision *store.Decision, vector *store.DecisionVector) (*store.Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failCreates {
		return nil, errors.New("database down")
	}
	for _, existing := range d.decisions {
		if existing.SourceID == decision.SourceID {
			return existing, nil
		}
	}
	decision.ID = int64(len(d.decisions) + 1)
	vector.ID = int64(len(d.vectors) + 1)
	d.decisions = append(d.decisions, decision)
	d.vectors = append(d.vectors, vector)
	return decision, nil
}

func (d *fakeDriver) ListDecisions(_ context.Context, _ *store.FindDecision) ([]*store.Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*store.Decision{}, d.decisions...), nil
}

func (d *fakeDriver) CountDecisions(context.Context) (int64, int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.decisions)), int64(len(d.vectors)), nil
}

func (d *fakeDriver) SearchDecisionVectors(_ context.Context, _ *store.VectorSearchOptions) ([]*store.VectorMatch, error) {
	return nil, nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
}

func newTestPipeline(driver *fakeDriver, ledger store.Ledger, embedder *mockEmbedder) *Pipeline {
	st := store.New(driver, &profile.Profile{})
	return NewPipeline(st, ledger, embedder, "test-model")
}

func TestPipelineIngestsAndMarks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `[
		{"id": "a1", "inteiroTeor": "Texto A1.", "teseJuridica": "Tese 1. Tese 2."},
		{"id": "a2", "inteiroTeor": "Texto A2.", "resultado": "provido"}
	]`)
	writeFile(t, dir, "sub/b.json", `{"id": "b1", "uf": "SP", "inteiroTeor": "Texto B1."}`)

	driver := &fakeDriver{}
	ledger := newMemLedger()
	pipeline := newTestPipeline(driver, ledger, newMockEmbedder(4))

	stats, err := pipeline.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.RecordsIngested)
	assert.Equal(t, 2, stats.FilesProcessed)
	assert.Equal(t, 0, stats.FilesFailed)
	assert.True(t, ledger.IsProcessed("a.json"))
	assert.True(t, ledger.IsProcessed("sub/b.json"))

	require.Len(t, driver.decisions, 3)
	require.Len(t, driver.vectors, 3)
	for i := range driver.decisions {
		assert.Equal(t, driver.decisions[i].UID, driver.vectors[i].UID)
		assert.NotEmpty(t, driver.decisions[i].UID)
		assert.Equal(t, driver.decisions[i].Content, driver.vectors[i].Content)
		assert.Equal(t, "test-model", driver.vectors[i].Model)
	}
	assert.Equal(t, []string{"Tese 1", "Tese 2"}, driver.vectors[0].Theses)
}

func TestPipelineIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"id": "a1", "inteiroTeor": "Texto."}`)

	driver := &fakeDriver{}
	ledger := newMemLedger()
	pipeline := newTestPipeline(driver, ledger, newMockEmbedder(4))

	_, err := pipeline.Run(context.Background(), dir)
	require.NoError(t, err)
	stats, err := pipeline.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.RecordsIngested)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Len(t, driver.decisions, 1)
	assert.Len(t, driver.vectors, 1)
}

func TestPipelineNoDuplicatesAfterCrashBeforeMark(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"id": "a1", "inteiroTeor": "Texto."}`)

	driver := &fakeDriver{}
	pipeline := newTestPipeline(driver, newMemLedger(), newMockEmbedder(4))
	_, err := pipeline.Run(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, driver.decisions, 1)

	// A crash between commit and mark loses the ledger entry; the re-run
	// must not duplicate rows because persistence is keyed on source id.
	rerun := newTestPipeline(driver, newMemLedger(), newMockEmbedder(4))
	_, err = rerun.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Len(t, driver.decisions, 1)
	assert.Len(t, driver.vectors, 1)
}

func TestPipelineEmbeddingFailureLeavesNoRows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"id": "a1", "inteiroTeor": "Texto."}`)

	driver := &fakeDriver{}
	ledger := newMemLedger()
	embedder := newMockEmbedder(4)
	embedder.shouldFail = true
	pipeline := newTestPipeline(driver, ledger, embedder)

	stats, err := pipeline.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesFailed)
	assert.Empty(t, driver.decisions)
	assert.Empty(t, driver.vectors)
	assert.False(t, ledger.IsProcessed("a.json"))
}

func TestPipelineDimensionMismatchLeavesNoRows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"id": "a1", "inteiroTeor": "Texto."}`)

	driver := &fakeDriver{}
	ledger := newMemLedger()
	embedder := newMockEmbedder(4)
	embedder.wrongDim = true
	pipeline := newTestPipeline(driver, ledger, embedder)

	stats, err := pipeline.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesFailed)
	assert.Empty(t, driver.decisions)
	assert.Empty(t, driver.vectors)
	assert.False(t, ledger.IsProcessed("a.json"))
}

func TestPipelineSkipsInvalidRecordsButMarksFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `[
		{"id": "a1", "inteiroTeor": ""},
		{"inteiroTeor": "Sem id."},
		{"id": "a3", "inteiroTeor": "Texto válido."}
	]`)

	driver := &fakeDriver{}
	ledger := newMemLedger()
	pipeline := newTestPipeline(driver, ledger, newMockEmbedder(4))

	stats, err := pipeline.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.RecordsIngested)
	assert.Equal(t, 2, stats.RecordsSkipped)
	assert.Equal(t, 1, stats.FilesProcessed)
	assert.True(t, ledger.IsProcessed("a.json"))
	assert.Len(t, driver.decisions, 1)
}

func TestPipelineMalformedFileContinuesRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `42`)
	writeFile(t, dir, "b.json", `{"id": "b1", "inteiroTeor": "Texto."}`)

	driver := &fakeDriver{}
	ledger := newMemLedger()
	pipeline := newTestPipeline(driver, ledger, newMockEmbedder(4))

	stats, err := pipeline.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, 1, stats.FilesProcessed)
	assert.False(t, ledger.IsProcessed("a.json"))
	assert.True(t, ledger.IsProcessed("b.json"))
	assert.Len(t, driver.decisions, 1)
}

func TestPipelineAbortsAfterRepeatedPersistenceFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"id": "a1", "inteiroTeor": "Texto A."}`)
	writeFile(t, dir, "b.json", `{"id": "b1", "inteiroTeor": "Texto B."}`)
	writeFile(t, dir, "c.json", `{"id": "c1", "inteiroTeor": "Texto C."}`)
	writeFile(t, dir, "d.json", `{"id": "d1", "inteiroTeor": "Texto D."}`)

	driver := &fakeDriver{failCreates: true}
	ledger := newMemLedger()
	pipeline := newTestPipeline(driver, ledger, newMockEmbedder(4))

	_, err := pipeline.Run(context.Background(), dir)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePersistenceFailed, apperrors.CodeOf(err))
}

func TestPipelineProcessesFilesInLexicographicOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "z.json", `{"id": "z1", "inteiroTeor": "Texto Z."}`)
	writeFile(t, dir, "a.json", `{"id": "a1", "inteiroTeor": "Texto A."}`)
	writeFile(t, dir, "m/n.json", `{"id": "m1", "inteiroTeor": "Texto M."}`)

	driver := &fakeDriver{}
	embedder := newMockEmbedder(4)
	pipeline := newTestPipeline(driver, newMemLedger(), embedder)

	_, err := pipeline.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"Texto A.", "Texto M.", "Texto Z."}, embedder.texts)
}

func TestPipelineCanceledBetweenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"id": "a1", "inteiroTeor": "Texto."}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline := newTestPipeline(&fakeDriver{}, newMemLedger(), newMockEmbedder(4))
	_, err := pipeline.Run(ctx, dir)
	require.ErrorIs(t, err, context.Canceled)
}
