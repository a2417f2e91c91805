package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the lexvec server and ingestion job.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for the query server
	Addr string
	// Port is the binding port for the query server
	Port int
	// Data is the data directory; the processed-file ledger lives here
	Data string
	// Driver is the database driver (postgres or sqlite)
	Driver string
	// DSN points to where lexvec stores decision rows and vectors
	DSN string
	// Version is the current version of the server
	Version string

	// Embedding configuration
	EmbeddingBaseURL string // LEXVEC_EMBEDDING_BASE_URL (default: https://api.openai.com/v1)
	EmbeddingAPIKey  string // LEXVEC_EMBEDDING_API_KEY
	EmbeddingModel   string // LEXVEC_EMBEDDING_MODEL (default: text-embedding-3-small)
	// EmbeddingDim is the fixed vector dimension; must match the dimension
	// the vector column and its index were created with.
	EmbeddingDim int // LEXVEC_EMBEDDING_DIM (default: 768)

	// Retrieval configuration
	TopK         int           // LEXVEC_TOPK (default: 5)
	QueryTimeout time.Duration // LEXVEC_QUERY_TIMEOUT (default: 30s)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// LedgerPath returns the path of the processed-file ledger inside the data directory.
func (p *Profile) LedgerPath() string {
	return filepath.Join(p.Data, "ingest_ledger.log")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from LEXVEC_* environment variables.
func (p *Profile) FromEnv() {
	p.EmbeddingBaseURL = getEnvOrDefault("LEXVEC_EMBEDDING_BASE_URL", "https://api.openai.com/v1")
	p.EmbeddingAPIKey = os.Getenv("LEXVEC_EMBEDDING_API_KEY")
	p.EmbeddingModel = getEnvOrDefault("LEXVEC_EMBEDDING_MODEL", "text-embedding-3-small")

	if v := os.Getenv("LEXVEC_EMBEDDING_DIM"); v != "" {
		if dim, err := strconv.Atoi(v); err == nil && dim > 0 {
			p.EmbeddingDim = dim
		}
	}
	if v := os.Getenv("LEXVEC_TOPK"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			p.TopK = k
		}
	}
	if v := os.Getenv("LEXVEC_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			p.QueryTimeout = d
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver != "postgres" && p.Driver != "sqlite" {
		return errors.Errorf("unsupported database driver %q: only 'postgres' and 'sqlite' are supported", p.Driver)
	}
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("lexvec_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	if p.EmbeddingDim <= 0 {
		p.EmbeddingDim = 768
	}
	if p.TopK <= 0 {
		p.TopK = 5
	}
	if p.QueryTimeout <= 0 {
		p.QueryTimeout = 30 * time.Second
	}

	return nil
}
