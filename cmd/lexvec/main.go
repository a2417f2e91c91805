package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openjuris/lexvec/internal/profile"
	"github.com/openjuris/lexvec/server"
	"github.com/openjuris/lexvec/server/ai"
	"github.com/openjuris/lexvec/server/ingest"
	"github.com/openjuris/lexvec/server/retrieval"
	"github.com/openjuris/lexvec/store"
	"github.com/openjuris/lexvec/store/db"
)

const version = "0.3.0"

var (
	instanceProfile *profile.Profile

	rootCmd = &cobra.Command{
		Use:   "lexvec",
		Short: "Judicial-decision ingestion and semantic retrieval",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			instanceProfile = &profile.Profile{
				Mode:    viper.GetString("mode"),
				Addr:    viper.GetString("addr"),
				Port:    viper.GetInt("port"),
				Data:    viper.GetString("data"),
				Driver:  viper.GetString("driver"),
				DSN:     viper.GetString("dsn"),
				Version: version,
			}
			instanceProfile.FromEnv()
			if err := instanceProfile.Validate(); err != nil {
				return err
			}
			setupLogger(instanceProfile)
			return nil
		},
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a directory tree of decision JSON files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := cmd.Flags().GetString("dir")
			if err != nil {
				return err
			}
			return runIngest(cmd.Context(), dir)
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the semantic query endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().String("mode", "dev", `mode of the instance, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "binding address for the query server")
	rootCmd.PersistentFlags().Int("port", 8230, "binding port for the query server")
	rootCmd.PersistentFlags().String("data", "", "data directory (ledger, sqlite database)")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, "postgres" or "sqlite"`)
	rootCmd.PersistentFlags().String("dsn", "", "database connection string")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("lexvec")
	viper.AutomaticEnv()

	ingestCmd.Flags().String("dir", "", "directory tree of decision JSON files (required)")
	_ = ingestCmd.MarkFlagRequired("dir")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(serveCmd)
}

func setupLogger(p *profile.Profile) {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func newEmbeddingProvider(p *profile.Profile) *ai.Provider {
	return ai.NewProvider(&ai.Config{
		BaseURL:    p.EmbeddingBaseURL,
		APIKey:     p.EmbeddingAPIKey,
		Model:      p.EmbeddingModel,
		Dimensions: p.EmbeddingDim,
		Timeout:    p.QueryTimeout,
	})
}

func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}
	st := store.New(driver, p)
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func runIngest(ctx context.Context, dir string) error {
	st, err := openStore(ctx, instanceProfile)
	if err != nil {
		return err
	}
	defer st.Close()

	ledger, err := store.OpenFileLedger(instanceProfile.LedgerPath())
	if err != nil {
		return err
	}
	defer ledger.Close()

	pipeline := ingest.NewPipeline(st, ledger, newEmbeddingProvider(instanceProfile), instanceProfile.EmbeddingModel)
	stats, err := pipeline.Run(ctx, dir)
	if err != nil {
		return err
	}

	decisions, vectors, err := st.CountDecisions(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("ingested %d records from %d files (%d skipped, %d failed); store now holds %d decisions / %d vectors\n",
		stats.RecordsIngested, stats.FilesProcessed, stats.FilesSkipped, stats.FilesFailed, decisions, vectors)
	return nil
}

func runServe(ctx context.Context) error {
	st, err := openStore(ctx, instanceProfile)
	if err != nil {
		return err
	}
	defer st.Close()

	retrievalService := retrieval.NewService(st, newEmbeddingProvider(instanceProfile))
	srv := server.NewServer(instanceProfile, st, retrievalService)
	return srv.Start(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
