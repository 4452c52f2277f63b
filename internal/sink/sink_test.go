package sink

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/enclave/internal/core"
	"github.com/JonMunkholm/enclave/internal/core/entities"
)

var student = uuid.MustParse("6a0e4f7e-1b2c-4d3e-8f90-a1b2c3d4e5f6")

func sampleDataset() *entities.Dataset {
	return &entities.Dataset{
		Users:       []entities.User{{UUID: student, FirstName: "Ada", LastName: "Lovelace", Email: "ada@x.com"}},
		Courses:     []entities.Course{{ID: 1, Name: "Algebra, Part 1"}},
		Enrollments: []entities.Enrollment{{UserUUID: student, CourseID: 1, Role: entities.RoleStudent}},
		Assessments: []entities.Assessment{{ID: 0, Name: "Quiz 1"}},
		Grades: []entities.Grade{
			{AssessmentID: 0, UserUUID: student, CourseID: 1, GradePercentage: 83, TimeSubmitted: 1700000000},
		},
		IBProblemAttempts: []entities.IBProblemAttempt{{
			UserUUID: student, CourseID: 1, ImpressionID: student, Timestamp: 5,
			ContentID: student, PsetContentID: student, PsetProblemContentID: student,
			Variant: "main", ProblemType: entities.ProblemTypeMultiselect,
			Response: []string{"a", "b"}, Correct: true, Attempt: 1, FinalAttempt: false,
		}},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return recs
}

func TestCSVWriter_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	if err := NewCSVWriter(dir).Write(context.Background(), sampleDataset()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != core.EntityCount() {
		t.Errorf("wrote %d files, want %d", len(entries), core.EntityCount())
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}

	tests := []struct {
		file string
		want [][]string
	}{
		{
			file: "users.csv",
			want: [][]string{
				{"uuid", "first_name", "last_name", "email"},
				{student.String(), "Ada", "Lovelace", "ada@x.com"},
			},
		},
		{
			file: "courses.csv",
			want: [][]string{{"id", "name"}, {"1", "Algebra, Part 1"}},
		},
		{
			file: "grades.csv",
			want: [][]string{
				{"assessment_id", "user_uuid", "course_id", "grade_percentage", "time_submitted"},
				{"0", student.String(), "1", "83.0", "1700000000"},
			},
		},
		{
			file: "quiz_attempts.csv",
			want: [][]string{
				{"id", "assessment_id", "user_uuid", "course_id", "attempt_number", "grade_percentage", "time_started", "time_finished"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got := readCSV(t, filepath.Join(dir, tt.file))
			if len(got) != len(tt.want) {
				t.Fatalf("%s has %d records, want %d: %v", tt.file, len(got), len(tt.want), got)
			}
			for i := range got {
				if strings.Join(got[i], "|") != strings.Join(tt.want[i], "|") {
					t.Errorf("%s record %d = %v, want %v", tt.file, i, got[i], tt.want[i])
				}
			}
		})
	}

	attempts := readCSV(t, filepath.Join(dir, "ib_pset_problem_attempts.csv"))
	header := attempts[0]
	row := attempts[1]
	for i, col := range header {
		switch col {
		case "response":
			if row[i] != `["a","b"]` {
				t.Errorf("response = %s, want JSON list", row[i])
			}
		case "correct":
			if row[i] != "True" {
				t.Errorf("correct = %s, want True", row[i])
			}
		case "final_attempt":
			if row[i] != "False" {
				t.Errorf("final_attempt = %s, want False", row[i])
			}
		}
	}
}

func TestCSVWriter_Overwrites(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir)
	ctx := context.Background()

	if err := w.Write(ctx, sampleDataset()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Write(ctx, &entities.Dataset{}); err != nil {
		t.Fatalf("Write(empty) error = %v", err)
	}

	got := readCSV(t, filepath.Join(dir, "users.csv"))
	if len(got) != 1 {
		t.Errorf("users.csv has %d records after rewrite, want header only", len(got))
	}
}

func TestCreateTableSQL(t *testing.T) {
	def := core.MustGet(entities.KeyGrades)
	got := createTableSQL(pgx.Identifier{"enclave", def.Info.Key}, def)
	want := `CREATE TABLE IF NOT EXISTS "enclave"."grades" (` +
		`"assessment_id" bigint NOT NULL, "user_uuid" uuid NOT NULL, "course_id" bigint NOT NULL, ` +
		`"grade_percentage" double precision NOT NULL, "time_submitted" bigint NOT NULL)`
	if got != want {
		t.Errorf("createTableSQL() =\n%s\nwant\n%s", got, want)
	}
}

func TestSQLType(t *testing.T) {
	tests := []struct {
		in   core.FieldType
		want string
	}{
		{core.FieldText, "text"},
		{core.FieldEnum, "text"},
		{core.FieldInt, "bigint"},
		{core.FieldFloat, "double precision"},
		{core.FieldUUID, "uuid"},
		{core.FieldBool, "boolean"},
		{core.FieldTextOrList, "text"},
	}
	for _, tt := range tests {
		if got := sqlType(tt.in); got != tt.want {
			t.Errorf("sqlType(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestCopyRow(t *testing.T) {
	def := core.MustGet(entities.KeyIBProblemAttempts)
	rec := sampleDataset().IBProblemAttempts[0]
	got := copyRow(def, rec.Row())

	for i, spec := range def.FieldSpecs {
		switch spec.Name {
		case "user_uuid":
			u, ok := got[i].(pgtype.UUID)
			if !ok || !u.Valid || uuid.UUID(u.Bytes) != student {
				t.Errorf("user_uuid = %#v, want valid pgtype.UUID", got[i])
			}
		case "response":
			if got[i] != `["a","b"]` {
				t.Errorf("response = %#v, want JSON text", got[i])
			}
		case "course_id":
			if got[i] != int64(1) {
				t.Errorf("course_id = %#v, want int64 1", got[i])
			}
		}
	}
}
