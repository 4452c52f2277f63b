package entities

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JonMunkholm/enclave/internal/core"
)

var testUUID = uuid.MustParse("0b6f3a3c-7c9e-4c1d-9a51-1f0d3e7c2a10")

func TestRegistry_AllEntitiesRegistered(t *testing.T) {
	defs := core.All()
	if len(defs) != 16 {
		t.Fatalf("All() returned %d entities, want 16", len(defs))
	}
	if defs[0].Info.Key != KeyUsers {
		t.Errorf("first entity = %q, want %q", defs[0].Info.Key, KeyUsers)
	}
	if defs[len(defs)-1].Info.Key != KeyIBInputSubmissions {
		t.Errorf("last entity = %q, want %q", defs[len(defs)-1].Info.Key, KeyIBInputSubmissions)
	}
	for _, def := range defs {
		if def.Info.File != def.Info.Key+".csv" {
			t.Errorf("%s file = %q, want %q", def.Info.Key, def.Info.File, def.Info.Key+".csv")
		}
	}
}

// Every record's row view must line up with its declared columns.
func TestRecords_RowMatchesContract(t *testing.T) {
	records := map[string]core.Record{
		KeyUsers:                           User{},
		KeyCourses:                         Course{},
		KeyEnrollments:                     Enrollment{},
		KeyAssessments:                     Assessment{},
		KeyGrades:                          Grade{},
		KeyQuizQuestions:                   QuizQuestion{},
		KeyQuizQuestionContents:            QuizQuestionContents{},
		KeyQuizMultichoiceAnswers:          QuizMultichoiceAnswer{},
		KeyInputInteractiveBlocks:          InputInteractiveBlock{},
		KeyProblemSetProblems:              ProblemSetProblem{},
		KeyCourseContents:                  CourseContents{},
		KeyQuizAttempts:                    QuizAttempt{},
		KeyQuizAttemptMultichoiceResponses: QuizAttemptMultichoiceResponse{},
		KeyContentLoads:                    ContentLoad{},
		KeyIBProblemAttempts:               IBProblemAttempt{},
		KeyIBInputSubmissions:              IBInputSubmission{},
	}

	for key, rec := range records {
		t.Run(key, func(t *testing.T) {
			def := core.MustGet(key)
			row := rec.Row()
			if len(row) != len(def.FieldSpecs) {
				t.Errorf("Row() has %d fields, want %d", len(row), len(def.FieldSpecs))
			}
			for _, col := range def.Columns() {
				if _, ok := row[col]; !ok {
					t.Errorf("Row() missing column %q", col)
				}
			}
		})
	}
}

func TestGrade_PercentageRule(t *testing.T) {
	def := core.MustGet(KeyGrades)
	v := core.NewRowValidator(def)

	tests := []struct {
		name    string
		value   float64
		wantMsg string
	}{
		{name: "zero", value: 0},
		{name: "hundred", value: 100},
		{name: "fractional", value: 83.5},
		{name: "nan", value: math.NaN(), wantMsg: "Grade value is nan"},
		{name: "negative", value: -1, wantMsg: "Grade value -1 is out of expected range"},
		{name: "above range", value: 100.5, wantMsg: "Grade value 100.5 is out of expected range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Grade{AssessmentID: 0, UserUUID: testUUID, CourseID: 1, GradePercentage: tt.value, TimeSubmitted: 1}
			errs := v.Validate(g)
			if tt.wantMsg == "" {
				if len(errs) != 0 {
					t.Errorf("Validate() = %v, want no errors", errs)
				}
				return
			}
			if len(errs) != 1 {
				t.Fatalf("Validate() returned %d errors, want 1: %v", len(errs), errs)
			}
			if errs[0].Field != "grade_percentage" {
				t.Errorf("Field = %q, want %q", errs[0].Field, "grade_percentage")
			}
			if errs[0].Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", errs[0].Message, tt.wantMsg)
			}
		})
	}
}

func TestQuizAttempt_PercentageRule(t *testing.T) {
	a := QuizAttempt{ID: 0, AssessmentID: 0, UserUUID: testUUID, CourseID: 1, AttemptNumber: 1, GradePercentage: 150}
	err := core.ValidateRecords(core.MustGet(KeyQuizAttempts), []QuizAttempt{a})
	if !errors.Is(err, core.ErrSchema) {
		t.Fatalf("ValidateRecords() error = %v, want ErrSchema", err)
	}
	if !strings.Contains(err.Error(), "out of expected range") {
		t.Errorf("error = %q, want range message", err.Error())
	}
	if got := core.MapError(err).Code; got != "VAL004" {
		t.Errorf("MapError().Code = %q, want VAL004", got)
	}
}

func TestIBProblemAttempt_ResponseShape(t *testing.T) {
	v := core.NewRowValidator(core.MustGet(KeyIBProblemAttempts))

	tests := []struct {
		name        string
		problemType string
		response    any
		wantMsg     string
	}{
		{name: "multiselect list", problemType: "multiselect", response: []string{"a", "b"}},
		{name: "multiselect empty list", problemType: "multiselect", response: []string{}},
		{name: "input string", problemType: "input", response: "42"},
		{name: "dropdown string", problemType: "dropdown", response: "a"},
		{name: "multiselect string", problemType: "multiselect", response: "a", wantMsg: "Response must be a list"},
		{name: "input list", problemType: "input", response: []string{"42"}, wantMsg: "Response must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := IBProblemAttempt{
				UserUUID:             testUUID,
				CourseID:             1,
				ImpressionID:         testUUID,
				ContentID:            testUUID,
				PsetContentID:        testUUID,
				PsetProblemContentID: testUUID,
				ProblemType:          tt.problemType,
				Response:             tt.response,
				Attempt:              1,
			}
			errs := v.Validate(a)
			if tt.wantMsg == "" {
				if len(errs) != 0 {
					t.Errorf("Validate() = %v, want no errors", errs)
				}
				return
			}
			if len(errs) != 1 || errs[0].Message != tt.wantMsg {
				t.Errorf("Validate() = %v, want %q", errs, tt.wantMsg)
			}
		})
	}
}

func TestEnrollment_RoleEnum(t *testing.T) {
	v := core.NewRowValidator(core.MustGet(KeyEnrollments))

	for _, role := range []string{RoleStudent, RoleTeacher} {
		if errs := v.Validate(Enrollment{UserUUID: testUUID, CourseID: 1, Role: role}); len(errs) != 0 {
			t.Errorf("Validate(%q) = %v, want no errors", role, errs)
		}
	}

	for _, role := range []string{"", "Student", "editingteacher"} {
		errs := v.Validate(Enrollment{UserUUID: testUUID, CourseID: 1, Role: role})
		if len(errs) != 1 || !strings.HasPrefix(errs[0].Message, "invalid enum") {
			t.Errorf("Validate(%q) = %v, want invalid enum", role, errs)
		}
	}
}

func TestDecodeTable(t *testing.T) {
	t.Run("valid rows", func(t *testing.T) {
		tbl := core.NewTable("quiz_question_contents", "id", "text", "type")
		tbl.Append(core.Row{"id": testUUID.String(), "text": "What is 2+2?", "type": "multichoice"})
		tbl.Append(core.Row{"id": testUUID.String(), "text": "", "type": "essay"})

		got, err := DecodeTable(KeyQuizQuestionContents, tbl, QuizQuestionContentsFromRow)
		if err != nil {
			t.Fatalf("DecodeTable() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("DecodeTable() returned %d rows, want 2", len(got))
		}
		if got[0].ID != testUUID || got[0].Type != "multichoice" {
			t.Errorf("row 0 = %+v", got[0])
		}
	})

	t.Run("undeclared column", func(t *testing.T) {
		tbl := core.NewTable("quiz_question_contents", "id", "text", "type", "extra")
		tbl.Append(core.Row{"id": testUUID.String(), "text": "q", "type": "essay", "extra": "x"})

		_, err := DecodeTable(KeyQuizQuestionContents, tbl, QuizQuestionContentsFromRow)
		var serr *core.SchemaError
		if !errors.As(err, &serr) {
			t.Fatalf("DecodeTable() error = %v, want *SchemaError", err)
		}
		if serr.Entity != KeyQuizQuestionContents || serr.Row != 0 {
			t.Errorf("SchemaError = %+v", serr)
		}
		if got := core.MapError(err).Code; got != "VAL001" {
			t.Errorf("MapError().Code = %q, want VAL001", got)
		}
	})

	t.Run("bad enum names row", func(t *testing.T) {
		tbl := core.NewTable("ib_pset_problems")
		good := core.Row{
			"id": testUUID.String(), "content_id": testUUID.String(), "variant": "main",
			"pset_id": testUUID.String(), "content": "c", "problem_type": "input",
			"solution": "s", "solution_options": "",
		}
		bad := core.Row{}
		for k, v := range good {
			bad[k] = v
		}
		bad["problem_type"] = "freeform"
		tbl.Append(good)
		tbl.Append(bad)

		_, err := DecodeTable(KeyProblemSetProblems, tbl, ProblemSetProblemFromRow)
		var serr *core.SchemaError
		if !errors.As(err, &serr) {
			t.Fatalf("DecodeTable() error = %v, want *SchemaError", err)
		}
		if serr.Row != 1 {
			t.Errorf("SchemaError.Row = %d, want 1", serr.Row)
		}
		if !strings.Contains(err.Error(), "freeform") {
			t.Errorf("error %q does not name the offending value", err.Error())
		}
	})
}

func closedDataset() *Dataset {
	other := uuid.MustParse("5c1d2e3f-4a5b-4c6d-8e7f-9a0b1c2d3e4f")
	return &Dataset{
		Users:       []User{{UUID: testUUID, Email: "a@x.com"}, {UUID: other, Email: "b@x.com"}},
		Courses:     []Course{{ID: 1, Name: "Algebra"}, {ID: 2, Name: "Biology"}},
		Enrollments: []Enrollment{{UserUUID: testUUID, CourseID: 1, Role: RoleStudent}, {UserUUID: other, CourseID: 2, Role: RoleStudent}},
		Assessments: []Assessment{{ID: 0, Name: "Quiz 1"}},
		Grades:      []Grade{{AssessmentID: 0, UserUUID: testUUID, CourseID: 1, GradePercentage: 80}},
		QuizAttempts: []QuizAttempt{
			{ID: 0, AssessmentID: 0, UserUUID: testUUID, CourseID: 1, GradePercentage: 80},
		},
		QuizMultichoiceAnswers:          []QuizMultichoiceAnswer{{ID: 0, QuestionID: testUUID, Text: "Paris"}},
		QuizAttemptMultichoiceResponses: []QuizAttemptMultichoiceResponse{{AttemptID: 0, QuestionNumber: 1, QuestionID: testUUID, AnswerID: 0}},
	}
}

func TestDataset_CheckClosure(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Dataset)
		contains string
	}{
		{name: "closed"},
		{
			name:     "grade user missing",
			mutate:   func(d *Dataset) { d.Grades[0].UserUUID = uuid.Nil },
			contains: "grades.user_uuid",
		},
		{
			name:     "grade outside the user's enrollments",
			mutate:   func(d *Dataset) { d.Grades[0].CourseID = 2 },
			contains: "has no row in enrollments",
		},
		{
			name:     "attempt outside the user's enrollments",
			mutate:   func(d *Dataset) { d.QuizAttempts[0].CourseID = 2 },
			contains: "quiz_attempts.(user_uuid, course_id)",
		},
		{
			name:     "response to unknown attempt",
			mutate:   func(d *Dataset) { d.QuizAttemptMultichoiceResponses[0].AttemptID = 9 },
			contains: "attempt_id=9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := closedDataset()
			if tt.mutate != nil {
				tt.mutate(ds)
			}

			err := ds.CheckClosure()
			if tt.contains == "" {
				if err != nil {
					t.Fatalf("CheckClosure() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, core.ErrIntegrity) {
				t.Fatalf("CheckClosure() error = %v, want ErrIntegrity", err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("CheckClosure() error = %q, want it to contain %q", err.Error(), tt.contains)
			}
		})
	}
}
