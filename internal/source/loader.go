// Package source fetches the raw snapshot of one compilation run from an
// object store: the per-course LMS grade and roster documents, the static
// content CSVs and the event exports.
//
// Objects are fetched concurrently with a bounded worker count. The first
// failure cancels the remaining fetches and is returned as a SourceError
// naming the object.
package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/enclave/internal/cohort"
	"github.com/JonMunkholm/enclave/internal/core"
	"github.com/JonMunkholm/enclave/internal/derive"
	"github.com/JonMunkholm/enclave/internal/logging"
	"github.com/JonMunkholm/enclave/internal/moodle"
)

// DefaultMaxConcurrent bounds parallel object fetches when none is configured.
const DefaultMaxConcurrent = 8

// Object layout under the snapshot prefix.
const (
	gradesDir  = "moodle/grades"
	usersDir   = "moodle/users"
	contentDir = "content"
)

// contentFiles lists the static content CSVs, by table name.
var contentFiles = []string{
	derive.SourceQuizQuestions,
	derive.SourceQuizQuestionContents,
	derive.SourceQuizMultichoiceAnswers,
	derive.SourceInputInstances,
	derive.SourcePsetProblems,
	derive.SourceCourseContents,
}

// eventFiles maps event export object names to table names.
var eventFiles = map[string]string{
	"content_loaded_v1.json":            derive.SourceContentLoads,
	"ib_pset_problem_attempted_v1.json": derive.SourceProblemAttempts,
	"ib_input_submitted_v1.json":        derive.SourceInputSubmissions,
}

// Loader fetches a snapshot.
type Loader struct {
	Store        ObjectStore
	Prefix       string
	EventsStore  ObjectStore // defaults to Store
	EventsPrefix string

	// MaxConcurrent bounds parallel fetches. Zero means DefaultMaxConcurrent.
	MaxConcurrent int
}

// Snapshot is the raw input of one run.
type Snapshot struct {
	Export *moodle.Export
	Tables core.Tables
}

// Load lists and fetches every object of the snapshot.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	logger := logging.WithFields(ctx, "component", "source", "prefix", l.Prefix)

	gradeKeys, err := l.courseKeys(ctx, gradesDir)
	if err != nil {
		return nil, err
	}
	userKeys, err := l.courseKeys(ctx, usersDir)
	if err != nil {
		return nil, err
	}
	logger.Info("listed course documents", "grades", len(gradeKeys), "rosters", len(userKeys))

	snap := &Snapshot{Export: moodle.NewExport(), Tables: core.Tables{}}
	var mu sync.Mutex

	limit := l.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for course, key := range gradeKeys {
		g.Go(func() error {
			var doc *moodle.GradeExport
			err := fetch(gctx, l.Store, key, func(r io.Reader) error {
				var err error
				doc, err = moodle.DecodeGrades(r, key)
				return err
			})
			if err != nil {
				return err
			}
			mu.Lock()
			snap.Export.Grades[course] = doc
			mu.Unlock()
			return nil
		})
	}

	for course, key := range userKeys {
		g.Go(func() error {
			var roster []moodle.RosterEntry
			err := fetch(gctx, l.Store, key, func(r io.Reader) error {
				var err error
				roster, err = moodle.DecodeRoster(r, key)
				return err
			})
			if err != nil {
				return err
			}
			mu.Lock()
			snap.Export.Rosters[course] = roster
			mu.Unlock()
			return nil
		})
	}

	for _, name := range contentFiles {
		key := path.Join(l.Prefix, contentDir, name+".csv")
		g.Go(func() error {
			var t *core.Table
			err := fetch(gctx, l.Store, key, func(r io.Reader) error {
				var err error
				t, err = ReadCSV(r, name)
				return err
			})
			if err != nil {
				return err
			}
			mu.Lock()
			snap.Tables[name] = t
			mu.Unlock()
			return nil
		})
	}

	events := l.EventsStore
	if events == nil {
		events = l.Store
	}
	for file, name := range eventFiles {
		key := path.Join(l.EventsPrefix, file)
		g.Go(func() error {
			var t *core.Table
			err := fetch(gctx, events, key, func(r io.Reader) error {
				var err error
				t, err = ReadEvents(r, name)
				return err
			})
			if err != nil {
				return err
			}
			if name == derive.SourceProblemAttempts {
				if err := NormalizeResponses(t); err != nil {
					return err
				}
			}
			mu.Lock()
			snap.Tables[name] = t
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("loaded snapshot",
		"courses", len(snap.Export.Rosters),
		"tables", len(snap.Tables),
	)
	return snap, nil
}

// courseKeys lists the per-course JSON documents under dir, keyed by the
// course id in the file stem.
func (l *Loader) courseKeys(ctx context.Context, dir string) (map[int64]string, error) {
	prefix := path.Join(l.Prefix, dir) + "/"
	keys, err := l.Store.List(ctx, prefix)
	if err != nil {
		return nil, &core.SourceError{Key: prefix, Op: "list", Err: err}
	}

	out := make(map[int64]string, len(keys))
	for _, key := range keys {
		base := path.Base(key)
		if !strings.HasSuffix(base, ".json") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(base, ".json"), 10, 64)
		if err != nil {
			return nil, &core.ShapeError{Source: prefix, Key: key, Detail: "file name is not a course id"}
		}
		out[id] = key
	}
	return out, nil
}

// fetch opens key, passes the sanitised body to decode and closes it.
func fetch(ctx context.Context, store ObjectStore, key string, decode func(io.Reader) error) error {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return &core.SourceError{Key: key, Op: "fetch", Err: err}
	}
	defer rc.Close()

	body := sanitize(rc)
	if err := decode(body); err != nil {
		return err
	}
	logging.FromContext(ctx).Debug("fetched object", "key", key, "bytes", body.n)
	return nil
}

// ReadCohort reads a cohort CSV with a course_id column.
func ReadCohort(r io.Reader, name string) (cohort.Set, error) {
	t, err := ReadCSV(sanitize(r), name)
	if err != nil {
		return nil, err
	}
	set, err := cohort.FromTable(t)
	if err != nil {
		return nil, fmt.Errorf("cohort %s: %w", name, err)
	}
	return set, nil
}
