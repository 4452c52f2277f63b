// Package sink writes a finished dataset to its destinations: a directory of
// CSV files, one per entity, and optionally a PostgreSQL schema.
package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/enclave/internal/core"
	"github.com/JonMunkholm/enclave/internal/core/entities"
	"github.com/JonMunkholm/enclave/internal/logging"
)

// Writer persists a dataset.
type Writer interface {
	Write(ctx context.Context, ds *entities.Dataset) error
}

// CSVWriter writes one headed CSV file per entity into Dir.
//
// Each file is written to a temporary name in the same directory and renamed
// into place, so a reader never observes a partial file. Files of entities
// already written stay in place if a later entity fails.
type CSVWriter struct {
	Dir string
}

// NewCSVWriter returns a writer for dir. The directory is created on Write.
func NewCSVWriter(dir string) *CSVWriter {
	return &CSVWriter{Dir: dir}
}

func (w *CSVWriter) Write(ctx context.Context, ds *entities.Dataset) error {
	logger := logging.WithFields(ctx, "component", "sink", "dir", w.Dir)

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for _, set := range ds.Sets() {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(w.Dir, set.Def.Info.File)
		if err := writeCSV(path, set); err != nil {
			return fmt.Errorf("write %s: %w", set.Def.Info.File, err)
		}
		logger.Debug("wrote table", "file", set.Def.Info.File, "rows", len(set.Records))
	}

	logger.Info("wrote csv tables", "files", len(ds.Sets()))
	return nil
}

func writeCSV(path string, set entities.EntitySet) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	cw := csv.NewWriter(tmp)
	if err = cw.Write(set.Def.Columns()); err != nil {
		return err
	}
	for _, rec := range set.Records {
		if err = cw.Write(core.FormatRow(set.Def, rec.Row())); err != nil {
			return err
		}
	}
	cw.Flush()
	if err = cw.Error(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
