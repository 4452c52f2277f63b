// Command compile runs one enclave compilation: it fetches the raw snapshot,
// normalizes and validates it, optionally filters it to a research cohort,
// and writes the entity tables.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/enclave/internal/cohort"
	"github.com/JonMunkholm/enclave/internal/config"
	"github.com/JonMunkholm/enclave/internal/core"
	_ "github.com/JonMunkholm/enclave/internal/core/entities" // Register all entities
	"github.com/JonMunkholm/enclave/internal/logging"
	"github.com/JonMunkholm/enclave/internal/pipeline"
	"github.com/JonMunkholm/enclave/internal/sink"
	"github.com/JonMunkholm/enclave/internal/source"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithRunID(ctx, uuid.NewString())

	logger := logging.FromContext(ctx)
	logger.Info("configuration loaded", "config", cfg.String(), "entities", core.EntityCount())

	if err := run(ctx, cfg); err != nil {
		logger.Error("compilation failed", "error", err)
		fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		stop()
		os.Exit(1)
	}
	logger.Info("compilation finished")
}

func run(ctx context.Context, cfg *config.Config) error {
	loader, closeStores, err := newLoader(ctx, cfg.Source)
	if err != nil {
		return err
	}
	defer closeStores()

	snap, err := loader.Load(ctx)
	if err != nil {
		return err
	}

	var set cohort.Set
	if cfg.Output.CohortFile != "" {
		set, err = readCohort(cfg.Output.CohortFile)
		if err != nil {
			return err
		}
	}

	result, err := pipeline.Run(ctx, pipeline.Input{
		Export: snap.Export,
		Tables: snap.Tables,
		Cohort: set,
	}, pipeline.Options{})
	if err != nil {
		return err
	}

	writers := []sink.Writer{sink.NewCSVWriter(cfg.Output.CSVDir)}
	if cfg.Database.PostgresEnabled() {
		pool, err := sink.NewPool(ctx, sink.PoolConfig{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return err
		}
		defer pool.Close()
		writers = append(writers, sink.NewPostgresWriter(pool, cfg.Database.Schema))
	}

	for _, w := range writers {
		if err := w.Write(ctx, result.Dataset); err != nil {
			return err
		}
	}
	return nil
}

// newLoader builds the object stores named by the source config. The
// returned func closes any remote clients.
func newLoader(ctx context.Context, cfg config.SourceConfig) (*source.Loader, func(), error) {
	loader := &source.Loader{
		Prefix:        cfg.Prefix,
		EventsPrefix:  cfg.EventsPrefix,
		MaxConcurrent: cfg.MaxConcurrent,
	}

	if strings.EqualFold(cfg.Kind, config.SourceLocal) {
		loader.Store = source.NewLocalStore(os.DirFS(cfg.Dir))
		return loader, func() {}, nil
	}

	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	store, err := source.NewGCSStore(ctx, cfg.Bucket, cfg.CredentialsFile, cfg.Timeout)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, store)
	loader.Store = store

	if bucket := cfg.EventsBucketOrDefault(); bucket != cfg.Bucket {
		events, err := source.NewGCSStore(ctx, bucket, cfg.CredentialsFile, cfg.Timeout)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, events)
		loader.EventsStore = events
	}
	return loader, closeAll, nil
}

func readCohort(path string) (cohort.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &core.SourceError{Key: path, Op: "fetch", Err: err}
	}
	defer f.Close()
	return source.ReadCohort(f, path)
}
