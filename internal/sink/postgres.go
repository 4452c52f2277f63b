package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/enclave/internal/core"
	"github.com/JonMunkholm/enclave/internal/core/entities"
	"github.com/JonMunkholm/enclave/internal/logging"
)

// PoolConfig configures the connection pool.
type PoolConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// NewPool parses the URL, applies the pool limits, connects and pings.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PostgresWriter loads every entity into a table of the same name in Schema.
//
// The whole dataset is replaced in one transaction: tables are created when
// missing, truncated, then filled with COPY. A failure leaves the previous
// contents untouched.
type PostgresWriter struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgresWriter returns a writer loading into schema.
func NewPostgresWriter(pool *pgxpool.Pool, schema string) *PostgresWriter {
	return &PostgresWriter{pool: pool, schema: schema}
}

func (w *PostgresWriter) Write(ctx context.Context, ds *entities.Dataset) error {
	logger := logging.WithFields(ctx, "component", "sink", "schema", w.schema)

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{w.schema}.Sanitize()); err != nil {
		return fmt.Errorf("create schema %s: %w", w.schema, err)
	}

	for _, set := range ds.Sets() {
		table := pgx.Identifier{w.schema, set.Def.Info.Key}
		if _, err := tx.Exec(ctx, createTableSQL(table, set.Def)); err != nil {
			return fmt.Errorf("create table %s: %w", set.Def.Info.Key, err)
		}
		if _, err := tx.Exec(ctx, "TRUNCATE "+table.Sanitize()); err != nil {
			return fmt.Errorf("truncate %s: %w", set.Def.Info.Key, err)
		}

		rows := make([][]any, len(set.Records))
		for i, rec := range set.Records {
			rows[i] = copyRow(set.Def, rec.Row())
		}
		n, err := tx.CopyFrom(ctx, table, set.Def.Columns(), pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("copy %s: %w", set.Def.Info.Key, err)
		}
		logger.Debug("loaded table", "table", set.Def.Info.Key, "rows", n)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	logger.Info("loaded dataset into postgres", "tables", len(ds.Sets()))
	return nil
}

// createTableSQL builds the DDL for an entity table.
func createTableSQL(table pgx.Identifier, def core.EntityDefinition) string {
	cols := make([]string, len(def.FieldSpecs))
	for i, spec := range def.FieldSpecs {
		cols[i] = pgx.Identifier{spec.Name}.Sanitize() + " " + sqlType(spec.Type) + " NOT NULL"
	}
	return "CREATE TABLE IF NOT EXISTS " + table.Sanitize() + " (" + strings.Join(cols, ", ") + ")"
}

func sqlType(t core.FieldType) string {
	switch t {
	case core.FieldInt:
		return "bigint"
	case core.FieldFloat:
		return "double precision"
	case core.FieldUUID:
		return "uuid"
	case core.FieldBool:
		return "boolean"
	default:
		// text, enum, and text-or-list (lists stored as their JSON rendering)
		return "text"
	}
}

// copyRow converts a record's row to COPY values in declared column order.
func copyRow(def core.EntityDefinition, row core.Row) []any {
	out := make([]any, len(def.FieldSpecs))
	for i, spec := range def.FieldSpecs {
		v := row[spec.Name]
		switch spec.Type {
		case core.FieldUUID:
			if u, ok := v.(uuid.UUID); ok {
				v = pgtype.UUID{Bytes: u, Valid: true}
			}
		case core.FieldTextOrList:
			v = core.FormatCell(v)
		}
		out[i] = v
	}
	return out
}
