// Command embedload ingests tabular data into a vector store and
// searches it. Three modes: load (CSV batch ingestion), search
// (one-shot query), serve (HTTP search API).
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/kailas-cloud/embedload/internal/config"
	"github.com/kailas-cloud/embedload/internal/domain"
	"github.com/kailas-cloud/embedload/internal/embedding/local"
	"github.com/kailas-cloud/embedload/internal/loader"
	logpkg "github.com/kailas-cloud/embedload/internal/logger"
	"github.com/kailas-cloud/embedload/internal/metrics"
	"github.com/kailas-cloud/embedload/internal/store"
	"github.com/kailas-cloud/embedload/internal/store/chromemstore"
	"github.com/kailas-cloud/embedload/internal/store/flat"
	"github.com/kailas-cloud/embedload/internal/store/sqlvec"
	chiTransport "github.com/kailas-cloud/embedload/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/embedload/internal/transport/openai"
	"github.com/kailas-cloud/embedload/internal/usecase/dataload"
	"github.com/kailas-cloud/embedload/internal/usecase/query"
	"github.com/kailas-cloud/embedload/internal/usecase/reconcile"
	"github.com/kailas-cloud/embedload/internal/version"
)

const usage = `usage: embedload <load|search|serve> [flags]

modes:
  load    ingest a CSV file into the configured vector store
  search  run a one-shot nearest-neighbor query
  serve   start the HTTP search API
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	metrics.Register()

	ctx := context.Background()

	var code int
	switch os.Args[1] {
	case "load":
		code = runLoad(ctx, cfg, logger, os.Args[2:])
	case "search":
		code = runSearch(ctx, cfg, logger, os.Args[2:])
	case "serve":
		code = runServe(ctx, cfg, logger, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		code = 2
	}
	os.Exit(code)
}

// buildStore creates the vector store adapter for the configured driver.
func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, func(), error) {
	noop := func() {}
	switch cfg.Store.Driver {
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.Store.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite %s: %w", cfg.Store.Path, err)
		}
		s, err := sqlvec.New(ctx, db, cfg.Embedding.Dimensions, logger)
		if err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return store.WithMetrics(s, "sqlite"), func() { _ = db.Close() }, nil
	case "flat":
		return store.WithMetrics(flat.New(cfg.Embedding.Dimensions, logger), "flat"), noop, nil
	case "chromem":
		return store.WithMetrics(chromemstore.New(cfg.Embedding.Dimensions, logger), "chromem"), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// buildEmbedder creates the embedding provider.
func buildEmbedder(cfg config.Config, logger *zap.Logger) dataload.Embedder {
	if cfg.Embedding.Provider == "openai" {
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
	}
	return local.New(cfg.Embedding.Dimensions)
}

func runLoad(ctx context.Context, cfg config.Config, logger *zap.Logger, args []string) int {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	source := fs.String("source", "", "path to the CSV file")
	table := fs.String("table", "", "target table name")
	embedCols := fs.String("embed-columns", "", "comma-separated columns to embed")
	primaryKeys := fs.String("primary-keys", "", "comma-separated primary key columns")
	mode := fs.String("mode", cfg.Load.DefaultMode, "embedding mode: combined or separated")
	create := fs.Bool("create-table", true, "synthesize the table if absent")
	_ = fs.Parse(args)

	if *source == "" || *table == "" || *embedCols == "" || *primaryKeys == "" {
		fs.Usage()
		return 2
	}

	st, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build store", zap.Error(err))
		return 1
	}
	defer closeStore()

	runID := uuid.NewString()
	logger.Info("starting load run",
		zap.String("run_id", runID),
		zap.String("version", version.Version),
		zap.String("source", *source),
		zap.String("table", *table),
		zap.String("driver", cfg.Store.Driver),
	)

	embedder := &progressEmbedder{
		next:      buildEmbedder(cfg, logger),
		batchSize: cfg.Load.MaxBatchSize,
	}
	engine := reconcile.New(st, logger)
	svc := dataload.New(loader.NewCSV(), embedder, engine, logger)

	res, err := svc.Execute(ctx, *source, *table,
		splitList(*embedCols), splitList(*primaryKeys), *create, domain.EmbedMode(*mode))
	if err != nil {
		logger.Error("load failed", zap.String("run_id", runID), zap.Error(err))
		return 1
	}

	logger.Info("load completed",
		zap.String("run_id", runID),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("deactivated", res.Deactivated),
	)
	return 0
}

func runSearch(ctx context.Context, cfg config.Config, logger *zap.Logger, args []string) int {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	table := fs.String("table", "", "table to search")
	queryText := fs.String("query", "", "query text")
	topK := fs.Int("top-k", 5, "number of results")
	embedColumn := fs.String("embed-column", "", "vector column to search (separated mode)")
	_ = fs.Parse(args)

	if *table == "" || *queryText == "" {
		fs.Usage()
		return 2
	}

	st, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build store", zap.Error(err))
		return 1
	}
	defer closeStore()

	svc := query.New(st, buildEmbedder(cfg, logger), logger)
	results, err := svc.Search(ctx, *table, *queryText, *topK, *embedColumn)
	if err != nil {
		logger.Error("search failed", zap.Error(err))
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		logger.Error("failed to encode results", zap.Error(err))
		return 1
	}
	return 0
}

func runServe(ctx context.Context, cfg config.Config, logger *zap.Logger, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	_ = fs.Parse(args)

	st, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build store", zap.Error(err))
		return 1
	}
	defer closeStore()

	svc := query.New(st, buildEmbedder(cfg, logger), logger)
	server := chiTransport.NewServer(svc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting HTTP server",
			zap.String("addr", addr),
			zap.String("version", version.Version),
			zap.String("driver", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
		return 1
	}

	logger.Info("server stopped gracefully")
	return 0
}

// progressEmbedder chunks embedding batches and renders a terminal
// progress bar across them.
type progressEmbedder struct {
	next      dataload.Embedder
	batchSize int
}

func (p *progressEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) <= p.batchSize {
		return p.next.Embed(ctx, texts)
	}

	bar := progressbar.Default(int64(len(texts)), "embedding")
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := p.next.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
		_ = bar.Add(end - start)
	}
	_ = bar.Finish()
	return out, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
