package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/JonMunkholm/enclave/internal/cohort"
	"github.com/JonMunkholm/enclave/internal/core"
	"github.com/JonMunkholm/enclave/internal/core/entities"
	"github.com/JonMunkholm/enclave/internal/derive"
	"github.com/JonMunkholm/enclave/internal/moodle"
	"github.com/JonMunkholm/enclave/internal/sink"
	"github.com/JonMunkholm/enclave/internal/source"
)

var ada = uuid.MustParse("6a0e4f7e-1b2c-4d3e-8f90-a1b2c3d4e5f6")

func loadSnapshot(t *testing.T) *source.Snapshot {
	t.Helper()
	l := &source.Loader{
		Store:        source.NewLocalStore(os.DirFS("testdata")),
		Prefix:       "snapshot",
		EventsPrefix: "snapshot/events",
	}
	snap, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return snap
}

func runSnapshot(t *testing.T, set cohort.Set) *Result {
	t.Helper()
	snap := loadSnapshot(t)
	res, err := Run(context.Background(), Input{Export: snap.Export, Tables: snap.Tables, Cohort: set},
		Options{NewID: moodle.SequentialIDs("pipeline-test")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res
}

func TestRun_Snapshot(t *testing.T) {
	res := runSnapshot(t, nil)

	want := map[string]int{
		entities.KeyUsers:                           3,
		entities.KeyCourses:                         2,
		entities.KeyEnrollments:                     4,
		entities.KeyAssessments:                     2,
		entities.KeyGrades:                          3,
		entities.KeyQuizQuestions:                   2,
		entities.KeyQuizQuestionContents:            2,
		entities.KeyQuizMultichoiceAnswers:          2,
		entities.KeyInputInteractiveBlocks:          1,
		entities.KeyProblemSetProblems:              1,
		entities.KeyCourseContents:                  1,
		entities.KeyQuizAttempts:                    1,
		entities.KeyQuizAttemptMultichoiceResponses: 1,
		entities.KeyContentLoads:                    1,
		entities.KeyIBProblemAttempts:               1,
		entities.KeyIBInputSubmissions:              1,
	}
	for key, n := range want {
		if got := res.Report.Counts[key]; got != n {
			t.Errorf("Counts[%s] = %d, want %d", key, got, n)
		}
	}

	wantDrops := map[string]int{
		derive.DropGradesUnnamed:            1,
		derive.DropGradesUngraded:           1,
		derive.DropResponsesUnmatchedAnswer: 1,
		derive.DropContentLoadsUnenrolled:   1,
	}
	for name, n := range wantDrops {
		if got := res.Report.Drops[name]; got != n {
			t.Errorf("Drops[%s] = %d, want %d", name, got, n)
		}
	}
	if len(res.Report.Cohort) != 0 || len(res.Report.Removed) != 0 {
		t.Errorf("unfiltered run reports cohort %v removed %v", res.Report.Cohort, res.Report.Removed)
	}

	a := res.Dataset.QuizAttempts[0]
	if a.GradePercentage != 80.0 || a.UserUUID != ada {
		t.Errorf("QuizAttempt = %+v, want 80.0 for ada", a)
	}
}

// The same email carries one UUID everywhere, whichever native id or course
// the row came from.
func TestRun_IdentityIsStable(t *testing.T) {
	ds := runSnapshot(t, nil).Dataset

	byEmail := map[string]uuid.UUID{}
	for _, u := range ds.Users {
		if _, dup := byEmail[u.Email]; dup {
			t.Errorf("email %s appears twice in users", u.Email)
		}
		byEmail[u.Email] = u.UUID
	}
	if byEmail["ada@x.com"] != ada {
		t.Fatalf("ada = %s, want source uuid %s", byEmail["ada@x.com"], ada)
	}
	if byEmail["bob@x.com"] == uuid.Nil || byEmail["tess@x.com"] == uuid.Nil {
		t.Errorf("generated uuids missing: %v", byEmail)
	}

	adaGrades := 0
	for _, g := range ds.Grades {
		if g.UserUUID == ada {
			adaGrades++
		}
	}
	// one in course 1 under native id 7, one in course 2 under native id 70
	if adaGrades != 2 {
		t.Errorf("ada has %d grades, want 2", adaGrades)
	}
}

func TestRun_OutputIsDeterministic(t *testing.T) {
	ctx := context.Background()
	dirs := []string{filepath.Join(t.TempDir(), "a"), filepath.Join(t.TempDir(), "b")}
	for _, dir := range dirs {
		res := runSnapshot(t, nil)
		if err := sink.NewCSVWriter(dir).Write(ctx, res.Dataset); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	for _, def := range core.All() {
		first, err := os.ReadFile(filepath.Join(dirs[0], def.Info.File))
		if err != nil {
			t.Fatalf("read %s: %v", def.Info.File, err)
		}
		second, err := os.ReadFile(filepath.Join(dirs[1], def.Info.File))
		if err != nil {
			t.Fatalf("read %s: %v", def.Info.File, err)
		}
		if !bytes.Equal(first, second) {
			t.Errorf("%s differs between runs:\n%s\n---\n%s", def.Info.File, first, second)
		}
	}
}

func TestRun_Cohort(t *testing.T) {
	res := runSnapshot(t, cohort.NewSet(1))
	ds := res.Dataset

	if len(ds.Courses) != 1 || ds.Courses[0].ID != 1 {
		t.Errorf("Courses = %+v, want only course 1", ds.Courses)
	}
	for _, u := range ds.Users {
		if u.Email == "bob@x.com" {
			t.Error("bob survived a cohort without his course")
		}
	}
	if len(ds.Users) != 2 {
		t.Errorf("Users = %d, want ada and tess", len(ds.Users))
	}
	if len(ds.IBProblemAttempts) != 0 {
		t.Errorf("course 2 pset attempt survived: %+v", ds.IBProblemAttempts)
	}
	if len(ds.QuizAttemptMultichoiceResponses) != 1 {
		t.Errorf("responses = %d, want 1", len(ds.QuizAttemptMultichoiceResponses))
	}

	if res.Report.Removed[entities.KeyUsers] != 1 {
		t.Errorf("Removed[users] = %d, want 1", res.Report.Removed[entities.KeyUsers])
	}
	if len(res.Report.Cohort) != 1 || res.Report.Cohort[0] != 1 {
		t.Errorf("Report.Cohort = %v, want [1]", res.Report.Cohort)
	}
	if err := ds.CheckClosure(); err != nil {
		t.Errorf("CheckClosure() after filter = %v", err)
	}
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*source.Snapshot)
		want   error
	}{
		{
			name:   "missing content table",
			mutate: func(s *source.Snapshot) { delete(s.Tables, derive.SourceCourseContents) },
			want:   core.ErrShape,
		},
		{
			name: "grade for unknown user",
			mutate: func(s *source.Snapshot) {
				s.Export.Grades[2].UserGrades[1].UserID = 404
			},
			want: core.ErrIdentity,
		},
		{
			name: "malformed percentage",
			mutate: func(s *source.Snapshot) {
				s.Export.Grades[2].UserGrades[1].GradeItems[0].PercentageFormatted = "n/a"
			},
			want: core.ErrSchema,
		},
		{
			name: "grade over 100",
			mutate: func(s *source.Snapshot) {
				s.Export.Grades[2].UserGrades[1].GradeItems[0].PercentageFormatted = "120 %"
			},
			want: core.ErrSchema,
		},
		{
			// user 9 is enrolled in course 1 only
			name: "grade outside the user's enrollments",
			mutate: func(s *source.Snapshot) {
				s.Export.Grades[2].UserGrades[1].UserID = 9
			},
			want: core.ErrIntegrity,
		},
		{
			name: "roster without roles",
			mutate: func(s *source.Snapshot) {
				s.Export.Rosters[2][1].Roles = nil
			},
			want: core.ErrShape,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := loadSnapshot(t)
			tt.mutate(snap)
			_, err := Run(context.Background(), Input{Export: snap.Export, Tables: snap.Tables}, Options{})
			if !errors.Is(err, tt.want) {
				t.Errorf("Run() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRun_DoesNotModifyInputTables(t *testing.T) {
	snap := loadSnapshot(t)
	before := len(snap.Tables)
	if _, err := Run(context.Background(), Input{Export: snap.Export, Tables: snap.Tables}, Options{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(snap.Tables) != before {
		t.Errorf("input tables grew from %d to %d", before, len(snap.Tables))
	}
}

func TestRun_Cancelled(t *testing.T) {
	snap := loadSnapshot(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, Input{Export: snap.Export, Tables: snap.Tables}, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
