package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/openjuris/lexvec/internal/apperrors"
	"github.com/openjuris/lexvec/internal/observability"
	"github.com/openjuris/lexvec/server/ai"
	"github.com/openjuris/lexvec/store"
)

// maxConsecutivePersistFailures aborts the run once the database looks
// down, rather than silently dropping every remaining record.
const maxConsecutivePersistFailures = 3

// Pipeline coordinates one ingestion run: walk the input directory, gate
// files through the ledger, parse, extract, embed and persist, then mark.
//
// Per record, persistence is atomic: the structured row and the vector row
// commit in one transaction or not at all. Per file, marking happens only
// after every record has been attempted and none hit an embedding or
// persistence failure (write-then-mark); a failed file stays unmarked and
// is retried wholesale next run.
type Pipeline struct {
	store    *store.Store
	ledger   store.Ledger
	embedder ai.EmbeddingService
	model    string
	now      func() int64
}

// NewPipeline creates an ingestion pipeline. The ledger is injected so
// tests can swap in an in-memory fake.
func NewPipeline(s *store.Store, ledger store.Ledger, embedder ai.EmbeddingService, model string) *Pipeline {
	return &Pipeline{
		store:    s,
		ledger:   ledger,
		embedder: embedder,
		model:    model,
		now:      func() int64 { return time.Now().Unix() },
	}
}

// Stats summarizes one ingestion run.
type Stats struct {
	FilesSeen       int
	FilesSkipped    int // already in the ledger
	FilesProcessed  int // fully committed and marked this run
	FilesFailed     int // malformed, or left unmarked after a record failure
	RecordsIngested int
	RecordsSkipped  int // per-record validation failures
}

// Run executes one ingestion pass over dir. Files are visited in
// lexicographic path order so a crash-resumed run is deterministic.
func (p *Pipeline) Run(ctx context.Context, dir string) (*Stats, error) {
	rc := observability.NewRequestContext(slog.Default(), "ingest")
	stats := &Stats{}

	files, err := collectJSONFiles(dir)
	if err != nil {
		return stats, errors.Wrapf(err, "failed to scan input directory %s", dir)
	}
	stats.FilesSeen = len(files)
	rc.Info("ingestion run started",
		slog.String("dir", dir),
		slog.Int("files", len(files)))

	consecutivePersistFailures := 0

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			// Interrupt between files is safe: the ledger reflects exactly
			// the files fully committed so far.
			return stats, err
		}

		if p.ledger.IsProcessed(file.rel) {
			stats.FilesSkipped++
			rc.Debug("file already processed", slog.String(observability.LogFieldFile, file.rel))
			continue
		}

		ingested, skipped, err := p.processFile(ctx, rc, file)
		stats.RecordsIngested += ingested
		stats.RecordsSkipped += skipped
		if err != nil {
			stats.FilesFailed++
			rc.Error("file not marked, will retry next run", err,
				slog.String(observability.LogFieldFile, file.rel))
			if apperrors.Is(err, apperrors.ErrCodePersistenceFailed) {
				consecutivePersistFailures++
				if consecutivePersistFailures >= maxConsecutivePersistFailures {
					return stats, apperrors.PersistenceFailed("aborting run after repeated persistence failures", err)
				}
			}
			continue
		}
		consecutivePersistFailures = 0

		if err := p.ledger.MarkProcessed(file.rel); err != nil {
			// A ledger that cannot be written means re-runs would duplicate
			// rows; fail loud instead of continuing.
			return stats, errors.Wrapf(err, "failed to mark %s processed", file.rel)
		}
		stats.FilesProcessed++
	}

	rc.Info("ingestion run finished",
		slog.Int("files_processed", stats.FilesProcessed),
		slog.Int("files_skipped", stats.FilesSkipped),
		slog.Int("files_failed", stats.FilesFailed),
		slog.Int("records_ingested", stats.RecordsIngested),
		slog.Int("records_skipped", stats.RecordsSkipped),
		slog.Int64(observability.LogFieldDuration, rc.Duration().Milliseconds()))
	return stats, nil
}

// processFile attempts every record of one file. It returns an error when
// the file must stay unmarked: malformed input, or any embedding or
// persistence failure. Validation skips do not block marking.
func (p *Pipeline) processFile(ctx context.Context, rc *observability.RequestContext, file inputFile) (ingested, skipped int, err error) {
	raw, err := os.ReadFile(file.abs)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "failed to read %s", file.abs)
	}

	records, err := ParseDecisions(raw)
	if err != nil {
		return 0, 0, err
	}

	for _, rec := range records {
		decision, payload, err := ExtractAttributes(rec)
		if err != nil {
			// Per-record validation failure: log and move on, the file is
			// still markable once all records were attempted.
			skipped++
			rc.Warn("record skipped",
				slog.String(observability.LogFieldFile, file.rel),
				slog.String("reason", err.Error()))
			continue
		}

		embedding, err := p.embedder.Embed(ctx, payload.Content)
		if err != nil {
			// Abort the file on the first hard failure so it is retried as
			// a unit; records committed earlier in this file will be
			// re-inserted on retry, a race the file-granular ledger accepts.
			return ingested, skipped, apperrors.EmbeddingFailed("failed to embed record", err)
		}
		if len(embedding) != p.embedder.Dimensions() {
			return ingested, skipped, apperrors.Newf(apperrors.ErrCodeEmbeddingFailed,
				"embedding has dimension %d, expected %d", len(embedding), p.embedder.Dimensions())
		}

		uid := shortuuid.New()
		now := p.now()
		decision.UID = uid
		decision.CreatedTs = now
		vector := &store.DecisionVector{
			UID:       uid,
			Content:   payload.Content,
			Theses:    payload.Theses,
			Embedding: embedding,
			Model:     p.model,
			CreatedTs: now,
		}

		if _, err := p.store.CreateDecision(ctx, decision, vector); err != nil {
			return ingested, skipped, apperrors.PersistenceFailed("failed to persist record", err)
		}
		ingested++
	}

	return ingested, skipped, nil
}

type inputFile struct {
	abs string
	rel string // ledger key, relative to the input directory
}

// collectJSONFiles walks dir for .json files, sorted by relative path.
func collectJSONFiles(dir string) ([]inputFile, error) {
	files := []inputFile{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != ".json" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, inputFile{abs: path, rel: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })
	return files, nil
}
