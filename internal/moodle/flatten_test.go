package moodle

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JonMunkholm/enclave/internal/core"
)

const gradesJSON = `{
  "usergrades": [
    {"userid": 7, "gradeitems": [
      {"percentageformatted": "83.00 %", "itemname": "Quiz 1", "gradedatesubmitted": 1700000000},
      {"percentageformatted": "-", "itemname": null, "gradedatesubmitted": null}
    ]}
  ],
  "quizzes": [{"id": 11, "name": "Quiz 1", "sumgrades": 10, "course": 1}],
  "attempts": {
    "7": {"11": {
      "summaries": [{"userid": 7, "quiz": 11, "id": 500, "attempt": 1, "timestart": 1, "timefinish": 2, "sumgrades": 8.3}],
      "details": {"500": {"attempt": {"userid": 7, "quiz": 11, "id": 500, "attempt": 1},
                          "questions": [{"slot": 1, "answer": ["Paris"]}, {"slot": 2, "answer": []}]}}
    }}
  }
}`

const emptyGradesJSON = `{"usergrades": [], "quizzes": [], "attempts": []}`

const rosterJSON = `[
  {"id": 7, "email": "A@X.com", "firstname": "Ada", "lastname": "L", "uuid": "",
   "roles": [{"shortname": "student"}], "enrolledcourses": [{"id": 1, "fullname": "Algebra"}, {"id": 2, "fullname": "Biology"}]}
]`

func decodeGrades(t *testing.T, s string) *GradeExport {
	t.Helper()
	g, err := DecodeGrades(strings.NewReader(s), "grades.json")
	if err != nil {
		t.Fatalf("DecodeGrades() error = %v", err)
	}
	return g
}

func decodeRoster(t *testing.T, s string) []RosterEntry {
	t.Helper()
	r, err := DecodeRoster(strings.NewReader(s), "users.json")
	if err != nil {
		t.Fatalf("DecodeRoster() error = %v", err)
	}
	return r
}

func TestFlatten_Tables(t *testing.T) {
	exp := NewExport()
	exp.Grades[1] = decodeGrades(t, gradesJSON)
	exp.Rosters[1] = decodeRoster(t, rosterJSON)

	tables, err := Flatten(exp, SequentialIDs("test"))
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	wantLens := map[string]int{
		TableMoodleUsers:                1,
		TableUserIDs:                    1,
		TableCourses:                    1,
		TableEnrollments:                1,
		TableGrades:                     2,
		TableQuizData:                   1,
		TableAttemptsSummary:            1,
		TableAttemptMultichoiceResponse: 1,
	}
	for name, want := range wantLens {
		if got := tables[name].Len(); got != want {
			t.Errorf("%s has %d rows, want %d", name, got, want)
		}
	}

	user := tables[TableMoodleUsers].Rows[0]
	if user["email"] != "a@x.com" {
		t.Errorf("email = %v, want a@x.com", user["email"])
	}
	if user["uuid"] == uuid.Nil {
		t.Error("uuid was not assigned")
	}

	if name := tables[TableCourses].Rows[0]["name"]; name != "Algebra" {
		t.Errorf("course name = %v, want Algebra", name)
	}

	ungraded := tables[TableGrades].Rows[1]
	if ungraded["assessment_name"] != nil || ungraded["grade_percentage"] != "-" {
		t.Errorf("ungraded row = %v", ungraded)
	}

	resp := tables[TableAttemptMultichoiceResponse].Rows[0]
	if resp["answer"] != "Paris" || resp["attempt_id"] != int64(500) || resp["question_number"] != int64(1) {
		t.Errorf("response row = %v", resp)
	}
}

// Empty sources still produce every column.
func TestFlatten_EmptyCourseKeepsColumns(t *testing.T) {
	exp := NewExport()
	exp.Grades[3] = decodeGrades(t, emptyGradesJSON)
	exp.Rosters[3] = []RosterEntry{}

	tables, err := Flatten(exp, SequentialIDs("test"))
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	want := map[string][]string{
		TableGrades:                     GradesColumns,
		TableAttemptsSummary:            AttemptsColumns,
		TableAttemptMultichoiceResponse: ResponsesColumns,
		TableEnrollments:                EnrollmentsColumns,
		TableMoodleUsers:                MoodleUsersColumns,
	}
	for name, cols := range want {
		tbl := tables[name]
		if tbl.Len() != 0 {
			t.Errorf("%s has %d rows, want 0", name, tbl.Len())
		}
		if err := tbl.Require(cols...); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestFlatten_IdentityAcrossCourses(t *testing.T) {
	existing := uuid.MustParse("2d9c1f4e-8b3a-4c6d-9e0f-1a2b3c4d5e6f")
	exp := NewExport()
	exp.Rosters[2] = []RosterEntry{
		{ID: 9, Email: "b@x.com", UUID: existing.String(), Roles: []Role{{ShortName: "student"}}, EnrolledCourses: []EnrolledCourse{{ID: 2, FullName: "Biology"}}},
		{ID: 7, Email: "a@x.com", Roles: []Role{{ShortName: "teacher"}}, EnrolledCourses: []EnrolledCourse{{ID: 2, FullName: "Biology"}}},
	}
	exp.Rosters[1] = []RosterEntry{
		{ID: 7, Email: "A@x.com", Roles: []Role{{ShortName: "student"}}, EnrolledCourses: []EnrolledCourse{{ID: 1, FullName: "Algebra"}}},
		{ID: 70, Email: "a@X.COM", Roles: []Role{{ShortName: "student"}}, EnrolledCourses: []EnrolledCourse{{ID: 1, FullName: "Algebra"}}},
	}

	tables, err := Flatten(exp, SequentialIDs("test"))
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	users := tables[TableMoodleUsers]
	if users.Len() != 2 {
		t.Fatalf("moodle_users has %d rows, want 2", users.Len())
	}
	// course 1 is visited first, so a@x.com keeps native id 7
	if users.Rows[0]["user_id"] != int64(7) {
		t.Errorf("first user_id = %v, want 7", users.Rows[0]["user_id"])
	}
	if users.Rows[1]["uuid"] != existing {
		t.Errorf("source uuid not reused: %v", users.Rows[1]["uuid"])
	}

	aliases := map[int64]uuid.UUID{}
	for _, r := range tables[TableUserIDs].Rows {
		aliases[r["user_id"].(int64)] = r["uuid"].(uuid.UUID)
	}
	if aliases[7] != aliases[70] {
		t.Errorf("ids 7 and 70 share an email but map to %v and %v", aliases[7], aliases[70])
	}
	if tables[TableEnrollments].Len() != 4 {
		t.Errorf("enrollments has %d rows, want 4", tables[TableEnrollments].Len())
	}
	if tables[TableCourses].Rows[0]["id"] != int64(1) {
		t.Errorf("courses not in ascending id order: %v", tables[TableCourses].Rows)
	}
}

func TestFlatten_ShapeErrors(t *testing.T) {
	tests := []struct {
		name   string
		export func() *Export
		key    string
	}{
		{
			name: "roster entry without roles",
			export: func() *Export {
				exp := NewExport()
				exp.Rosters[1] = decodeRoster(t, `[{"id": 1, "email": "a@x.com", "enrolledcourses": [{"id": 1, "fullname": "A"}]}]`)
				return exp
			},
			key: "roles",
		},
		{
			name: "grades without attempts",
			export: func() *Export {
				exp := NewExport()
				exp.Grades[1] = decodeGrades(t, `{"usergrades": [], "quizzes": []}`)
				return exp
			},
			key: "attempts",
		},
		{
			name: "roster without course metadata",
			export: func() *Export {
				exp := NewExport()
				exp.Rosters[5] = decodeRoster(t, `[{"id": 1, "email": "a@x.com", "roles": [], "enrolledcourses": [{"id": 1, "fullname": "A"}]}]`)
				return exp
			},
			key: "enrolledcourses",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Flatten(tt.export(), SequentialIDs("test"))
			var shape *core.ShapeError
			if !errors.As(err, &shape) {
				t.Fatalf("Flatten() error = %v, want *ShapeError", err)
			}
			if !strings.Contains(shape.Key, tt.key) {
				t.Errorf("ShapeError.Key = %q, want %q", shape.Key, tt.key)
			}
		})
	}
}

// An empty role list is not a shape error; the enrollment contract rejects it later.
func TestFlatten_EmptyRolesCarriedThrough(t *testing.T) {
	exp := NewExport()
	exp.Rosters[1] = decodeRoster(t, `[{"id": 1, "email": "a@x.com", "roles": [], "enrolledcourses": [{"id": 1, "fullname": "A"}]}]`)

	tables, err := Flatten(exp, SequentialIDs("test"))
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}
	if role := tables[TableEnrollments].Rows[0]["role"]; role != "" {
		t.Errorf("role = %q, want empty", role)
	}
}

func TestSequentialIDs_Deterministic(t *testing.T) {
	a, b := SequentialIDs("seed"), SequentialIDs("seed")
	for i := 0; i < 3; i++ {
		if x, y := a(), b(); x != y {
			t.Errorf("call %d: %v != %v", i, x, y)
		}
	}
	if SequentialIDs("seed")() == SequentialIDs("other")() {
		t.Error("different seeds produced the same first id")
	}
}

func TestDecodeGrades_Malformed(t *testing.T) {
	_, err := DecodeGrades(strings.NewReader(`{"usergrades": [`), "p/moodle/grades/1.json")
	if !errors.Is(err, core.ErrSource) {
		t.Errorf("DecodeGrades() error = %v, want ErrSource", err)
	}
}
