package moodle

// flatten.go converts the nested per-course export into flat candidate tables.
//
// Every table is created with its full column set before any row is added, so
// a course with no grades, attempts or enrollments still yields a joinable
// (empty) table. Courses are visited in ascending id order and nested attempt
// maps in ascending numeric key order, which makes the output order a pure
// function of the input.

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/JonMunkholm/enclave/internal/core"
)

// Candidate table names and column sets.
const (
	TableMoodleUsers                = "moodle_users"
	TableUserIDs                    = "moodle_user_ids"
	TableCourses                    = "courses"
	TableEnrollments                = "enrollments"
	TableGrades                     = "grades"
	TableQuizData                   = "quiz_data"
	TableAttemptsSummary            = "attempts_summary"
	TableAttemptMultichoiceResponse = "attempt_multichoice_response"
)

var (
	MoodleUsersColumns = []string{"first_name", "last_name", "email", "user_id", "uuid"}
	UserIDsColumns     = []string{"user_id", "uuid"}
	CoursesColumns     = []string{"id", "name"}
	EnrollmentsColumns = []string{"user_id", "course_id", "role"}
	GradesColumns      = []string{"user_id", "grade_percentage", "assessment_name", "course_id", "time_submitted"}
	QuizDataColumns    = []string{"quiz_id", "quiz_name", "max_grade", "course_id"}
	AttemptsColumns    = []string{
		"course_id", "user_id", "quiz_id", "attempt_id", "attempt_number",
		"time_started", "time_finished", "attempt_grade",
	}
	ResponsesColumns = []string{
		"course_id", "user_id", "quiz_id", "attempt_id", "attempt_number",
		"answer", "question_number",
	}
)

// Flatten reshapes the export into candidate tables keyed by table name and
// resolves user identity across all course rosters.
func Flatten(exp *Export, newID IDGenerator) (core.Tables, error) {
	if exp == nil {
		exp = NewExport()
	}

	tables := core.Tables{
		TableMoodleUsers:                core.NewTable(TableMoodleUsers, MoodleUsersColumns...),
		TableUserIDs:                    core.NewTable(TableUserIDs, UserIDsColumns...),
		TableCourses:                    core.NewTable(TableCourses, CoursesColumns...),
		TableEnrollments:                core.NewTable(TableEnrollments, EnrollmentsColumns...),
		TableGrades:                     core.NewTable(TableGrades, GradesColumns...),
		TableQuizData:                   core.NewTable(TableQuizData, QuizDataColumns...),
		TableAttemptsSummary:            core.NewTable(TableAttemptsSummary, AttemptsColumns...),
		TableAttemptMultichoiceResponse: core.NewTable(TableAttemptMultichoiceResponse, ResponsesColumns...),
	}

	if err := flattenRosters(exp.Rosters, newID, tables); err != nil {
		return nil, err
	}
	for _, courseID := range sortedKeys(exp.Grades) {
		if err := flattenGrades(courseID, exp.Grades[courseID], tables); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

func flattenRosters(rosters map[int64][]RosterEntry, newID IDGenerator, tables core.Tables) error {
	ids := newIdentity(newID)
	users := tables[TableMoodleUsers]
	enrollments := tables[TableEnrollments]
	courses := tables[TableCourses]

	for _, courseID := range sortedKeys(rosters) {
		roster := rosters[courseID]
		source := fmt.Sprintf("roster %d", courseID)

		for i, e := range roster {
			if e.Roles == nil {
				return &core.ShapeError{Source: source, Key: "roles", Detail: fmt.Sprintf("entry %d (user %d) has no roles", i, e.ID)}
			}

			u, first, err := ids.resolve(e)
			if err != nil {
				return &core.SchemaError{Entity: TableMoodleUsers, Row: users.Len(), Errors: []core.ValidationError{
					{Field: "uuid", Value: e.UUID, Message: "invalid uuid"},
				}}
			}
			if first {
				users.Append(core.Row{
					"first_name": e.FirstName,
					"last_name":  e.LastName,
					"email":      NormalizeEmail(e.Email),
					"user_id":    e.ID,
					"uuid":       u,
				})
			}

			// An empty role list is carried as an empty role so the enrollment
			// contract rejects it with the offending row.
			role := ""
			if len(e.Roles) > 0 {
				role = e.Roles[0].ShortName
			}
			enrollments.Append(core.Row{"user_id": e.ID, "course_id": courseID, "role": role})
		}

		if len(roster) == 0 {
			continue
		}
		course, ok := findCourse(roster, courseID)
		if !ok {
			return &core.ShapeError{Source: source, Key: "enrolledcourses", Detail: fmt.Sprintf("no entry describes course %d", courseID)}
		}
		courses.Append(core.Row{"id": course.ID, "name": course.FullName})
	}

	aliases := tables[TableUserIDs]
	for _, userID := range sortedKeys(ids.byUserID) {
		aliases.Append(core.Row{"user_id": userID, "uuid": ids.byUserID[userID]})
	}
	return nil
}

// findCourse returns the course metadata from the first roster entry that
// lists the course among its enrolled courses.
func findCourse(roster []RosterEntry, courseID int64) (EnrolledCourse, bool) {
	for _, e := range roster {
		for _, c := range e.EnrolledCourses {
			if c.ID == courseID {
				return c, true
			}
		}
	}
	return EnrolledCourse{}, false
}

func flattenGrades(courseID int64, g *GradeExport, tables core.Tables) error {
	source := fmt.Sprintf("grades %d", courseID)
	if g == nil {
		return &core.ShapeError{Source: source, Detail: "document is null"}
	}
	switch {
	case g.UserGrades == nil:
		return &core.ShapeError{Source: source, Key: "usergrades", Detail: "missing key"}
	case g.Quizzes == nil:
		return &core.ShapeError{Source: source, Key: "quizzes", Detail: "missing key"}
	case g.Attempts == nil:
		return &core.ShapeError{Source: source, Key: "attempts", Detail: "missing key"}
	}

	grades := tables[TableGrades]
	for _, ug := range g.UserGrades {
		if ug.GradeItems == nil {
			return &core.ShapeError{Source: source, Key: "gradeitems", Detail: fmt.Sprintf("user %d", ug.UserID)}
		}
		for _, item := range ug.GradeItems {
			grades.Append(core.Row{
				"user_id":          ug.UserID,
				"grade_percentage": item.PercentageFormatted,
				"assessment_name":  optional(item.ItemName),
				"course_id":        courseID,
				"time_submitted":   optional(item.DateSubmitted),
			})
		}
	}

	quizData := tables[TableQuizData]
	for _, q := range g.Quizzes {
		quizData.Append(core.Row{
			"quiz_id":   q.ID,
			"quiz_name": q.Name,
			"max_grade": optional(q.SumGrades),
			"course_id": q.Course,
		})
	}

	summaries := tables[TableAttemptsSummary]
	responses := tables[TableAttemptMultichoiceResponse]
	for _, userKey := range sortedNumericKeys(g.Attempts) {
		quizzes := g.Attempts[userKey]
		for _, quizKey := range sortedNumericKeys(quizzes) {
			qa := quizzes[quizKey]
			at := fmt.Sprintf("attempts[%s][%s]", userKey, quizKey)
			if qa.Summaries == nil {
				return &core.ShapeError{Source: source, Key: at + ".summaries", Detail: "missing key"}
			}
			if qa.Details == nil {
				return &core.ShapeError{Source: source, Key: at + ".details", Detail: "missing key"}
			}

			for _, s := range qa.Summaries {
				summaries.Append(core.Row{
					"course_id":      courseID,
					"user_id":        s.UserID,
					"quiz_id":        s.Quiz,
					"attempt_id":     s.ID,
					"attempt_number": s.Attempt,
					"time_started":   s.TimeStart,
					"time_finished":  s.TimeFinish,
					"attempt_grade":  optional(s.SumGrades),
				})
			}

			for _, detailKey := range sortedNumericKeys(qa.Details) {
				d := qa.Details[detailKey]
				if d.Questions == nil {
					return &core.ShapeError{Source: source, Key: at + ".details." + detailKey + ".questions", Detail: "missing key"}
				}
				for _, question := range d.Questions {
					if question.Answer == nil {
						return &core.ShapeError{Source: source, Key: at + ".details." + detailKey + ".answer", Detail: fmt.Sprintf("slot %d", question.Slot)}
					}
					for _, answer := range question.Answer {
						responses.Append(core.Row{
							"course_id":       courseID,
							"user_id":         d.Attempt.UserID,
							"quiz_id":         d.Attempt.Quiz,
							"attempt_id":      d.Attempt.ID,
							"attempt_number":  d.Attempt.Attempt,
							"answer":          answer,
							"question_number": question.Slot,
						})
					}
				}
			}
		}
	}
	return nil
}

// optional dereferences a nullable source value, keeping null as nil.
func optional[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// sortedNumericKeys orders string keys numerically when they parse as
// integers, falling back to lexical order otherwise.
func sortedNumericKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.ParseInt(keys[i], 10, 64)
		b, errB := strconv.ParseInt(keys[j], 10, 64)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}
