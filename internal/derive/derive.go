// Package derive builds every output entity from the flattened candidate
// tables and the static content and event tables.
//
// Entities are derived in dependency order: users and courses first, then
// enrollments, assessments before anything keyed by assessment id, answers
// before the responses that resolve against them. Each step reads only
// tables and indexes produced by earlier steps.
//
// Join policy:
//   - a user reference needed to build an enrollment, grade or quiz attempt
//     must resolve, otherwise the run fails with an identity error
//   - ungraded grade items, responses without a matching answer and events
//     without a matching enrollment are dropped and counted
//   - when two rows share an entity key the first is kept and the rest are
//     dropped and counted; alias accounts merged by email produce these
package derive

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/JonMunkholm/enclave/internal/core"
	"github.com/JonMunkholm/enclave/internal/core/entities"
	"github.com/JonMunkholm/enclave/internal/moodle"
)

// Drop counter names.
const (
	DropEnrollmentsDuplicate       = "enrollments_duplicate"
	DropGradesUnnamed              = "grades_unnamed"
	DropGradesUngraded             = "grades_ungraded"
	DropGradesDuplicate            = "grades_duplicate"
	DropQuizQuestionsUnknownQuiz   = "quiz_questions_unknown_assessment"
	DropQuizQuestionsDuplicate     = "quiz_questions_duplicate"
	DropAttemptsUnknownQuiz        = "quiz_attempts_unknown_quiz"
	DropAttemptsUnknownAssessment  = "quiz_attempts_unknown_assessment"
	DropResponsesUnknownAttempt    = "responses_unknown_attempt"
	DropResponsesUnknownQuestion   = "responses_unknown_question"
	DropResponsesUnmatchedAnswer   = "responses_unmatched_answer"
	DropContentLoadsUnenrolled     = "content_loads_unenrolled"
	DropProblemAttemptsUnenrolled  = "ib_pset_problem_attempts_unenrolled"
	DropInputSubmissionsUnenrolled = "ib_input_submissions_unenrolled"
)

// Static content and event source names.
const (
	SourceQuizQuestions          = "quiz_questions"
	SourceQuizQuestionContents   = "quiz_question_contents"
	SourceQuizMultichoiceAnswers = "quiz_multichoice_answers"
	SourceInputInstances         = "ib_input_instances"
	SourcePsetProblems           = "ib_pset_problems"
	SourceCourseContents         = "course_contents"
	SourceContentLoads           = "content_loads"
	SourceProblemAttempts        = "ib_pset_problem_attempts"
	SourceInputSubmissions       = "ib_input_submissions"
)

// Drops counts rows removed by each silent-drop policy.
type Drops map[string]int

// Total returns the number of dropped rows across all policies.
func (d Drops) Total() int {
	n := 0
	for _, v := range d {
		n += v
	}
	return n
}

type enrollmentKey struct {
	user   uuid.UUID
	course int64
}

type gradeKey struct {
	user       uuid.UUID
	assessment int64
}

type questionKey struct {
	assessment int64
	number     int64
}

type answerKey struct {
	question uuid.UUID
	text     string
}

type attemptKey struct {
	quiz    int64
	attempt int64
}

type quizInfo struct {
	name     string
	maxGrade any
}

// deriver carries the input tables and the indexes each step leaves behind
// for the steps that depend on it.
type deriver struct {
	in    core.Tables
	ds    *entities.Dataset
	drops Drops

	grades      *core.Table // scrubbed
	moodleUsers *core.Table // scrubbed

	userIDs     map[int64]uuid.UUID
	enrolled    map[enrollmentKey]struct{}
	assessments map[string]int64
	questions   map[questionKey]uuid.UUID
	answers     map[answerKey]int64
	quizzes     map[int64]quizInfo
	attempts    map[attemptKey]int64
}

// Derive produces the full entity graph. Rows in each entity are converted to
// their declared types on the way in; entity rules run in the validation stage.
// The input tables are not modified.
func Derive(tables core.Tables) (*entities.Dataset, Drops, error) {
	d := &deriver{
		in:    tables,
		ds:    &entities.Dataset{},
		drops: Drops{},
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"scrub", d.scrub},
		{entities.KeyUsers, d.users},
		{entities.KeyCourses, d.courses},
		{entities.KeyEnrollments, d.enrollments},
		{entities.KeyAssessments, d.deriveAssessments},
		{entities.KeyGrades, d.deriveGrades},
		{entities.KeyQuizQuestions, d.quizQuestions},
		{entities.KeyQuizQuestionContents, d.quizQuestionContents},
		{entities.KeyQuizMultichoiceAnswers, d.multichoiceAnswers},
		{entities.KeyInputInteractiveBlocks, d.inputBlocks},
		{entities.KeyProblemSetProblems, d.problemSetProblems},
		{entities.KeyCourseContents, d.courseContents},
		{entities.KeyQuizAttempts, d.quizAttempts},
		{entities.KeyQuizAttemptMultichoiceResponses, d.multichoiceResponses},
		{entities.KeyContentLoads, d.contentLoads},
		{entities.KeyIBProblemAttempts, d.problemAttempts},
		{entities.KeyIBInputSubmissions, d.inputSubmissions},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			return nil, nil, fmt.Errorf("derive %s: %w", step.name, err)
		}
	}
	return d.ds, d.drops, nil
}

// scrub lower-cases user emails and removes grade items with no name.
func (d *deriver) scrub() error {
	users, err := d.in.Lookup(moodle.TableMoodleUsers)
	if err != nil {
		return err
	}
	if err := users.Require(moodle.MoodleUsersColumns...); err != nil {
		return err
	}
	d.moodleUsers = core.NewTable(users.Name, users.Columns...)
	for i, row := range users.Rows {
		email, err := core.ToText(row["email"])
		if err != nil {
			return fieldError(entities.KeyUsers, i, "email", row["email"], err)
		}
		clean := copyRow(row)
		clean["email"] = moodle.NormalizeEmail(email)
		d.moodleUsers.Append(clean)
	}

	grades, err := d.in.Lookup(moodle.TableGrades)
	if err != nil {
		return err
	}
	if err := grades.Require(moodle.GradesColumns...); err != nil {
		return err
	}
	d.grades = core.NewTable(grades.Name, grades.Columns...)
	for _, row := range grades.Rows {
		if row["assessment_name"] == nil {
			d.drops[DropGradesUnnamed]++
			continue
		}
		d.grades.Append(row)
	}
	return nil
}

func (d *deriver) users() error {
	d.userIDs = make(map[int64]uuid.UUID, d.moodleUsers.Len())
	rows := make([]core.Row, 0, d.moodleUsers.Len())

	for i, row := range d.moodleUsers.Rows {
		id, err := core.ToInt(row["user_id"])
		if err != nil {
			return fieldError(entities.KeyUsers, i, "user_id", row["user_id"], err)
		}
		u, err := core.ToUUID(row["uuid"])
		if err != nil {
			return fieldError(entities.KeyUsers, i, "uuid", row["uuid"], err)
		}
		if _, seen := d.userIDs[id]; !seen {
			d.userIDs[id] = u
		}
		rows = append(rows, core.Row{
			"uuid":       u,
			"first_name": row["first_name"],
			"last_name":  row["last_name"],
			"email":      row["email"],
		})
	}

	// Secondary native ids collected during identity resolution.
	if aliases, ok := d.in[moodle.TableUserIDs]; ok && aliases != nil {
		if err := aliases.Require(moodle.UserIDsColumns...); err != nil {
			return err
		}
		for i, row := range aliases.Rows {
			id, err := core.ToInt(row["user_id"])
			if err != nil {
				return fieldError(moodle.TableUserIDs, i, "user_id", row["user_id"], err)
			}
			u, err := core.ToUUID(row["uuid"])
			if err != nil {
				return fieldError(moodle.TableUserIDs, i, "uuid", row["uuid"], err)
			}
			if _, seen := d.userIDs[id]; !seen {
				d.userIDs[id] = u
			}
		}
	}

	users, err := decodeRows(entities.KeyUsers, rows, entities.UserFromRow)
	if err != nil {
		return err
	}
	d.ds.Users = users
	return nil
}

func (d *deriver) courses() error {
	src, err := d.in.Lookup(moodle.TableCourses)
	if err != nil {
		return err
	}
	sel, err := src.Select(moodle.CoursesColumns...)
	if err != nil {
		return err
	}
	courses, err := decodeRows(entities.KeyCourses, sel.Rows, entities.CourseFromRow)
	if err != nil {
		return err
	}
	d.ds.Courses = courses
	return nil
}

// enrollments resolves every roster row to its user. Alias accounts of one
// user in the same course collapse to the first row.
func (d *deriver) enrollments() error {
	src, err := d.in.Lookup(moodle.TableEnrollments)
	if err != nil {
		return err
	}
	if err := src.Require(moodle.EnrollmentsColumns...); err != nil {
		return err
	}

	d.enrolled = make(map[enrollmentKey]struct{}, src.Len())
	rows := make([]core.Row, 0, src.Len())
	for i, row := range src.Rows {
		u, err := d.resolveUser(entities.KeyEnrollments, i, row["user_id"])
		if err != nil {
			return err
		}
		course, err := core.ToInt(row["course_id"])
		if err != nil {
			return fieldError(entities.KeyEnrollments, i, "course_id", row["course_id"], err)
		}
		key := enrollmentKey{u, course}
		if _, seen := d.enrolled[key]; seen {
			d.drops[DropEnrollmentsDuplicate]++
			continue
		}
		d.enrolled[key] = struct{}{}
		rows = append(rows, core.Row{"user_uuid": u, "course_id": course, "role": row["role"]})
	}

	enrollments, err := decodeRows(entities.KeyEnrollments, rows, entities.EnrollmentFromRow)
	if err != nil {
		return err
	}
	d.ds.Enrollments = enrollments
	return nil
}

// resolveUser maps a native user id to its UUID. An unknown id is an
// identity failure for the entity being built.
func (d *deriver) resolveUser(entity string, row int, raw any) (uuid.UUID, error) {
	id, err := core.ToInt(raw)
	if err != nil {
		return uuid.Nil, fieldError(entity, row, "user_id", raw, err)
	}
	u, ok := d.userIDs[id]
	if !ok {
		return uuid.Nil, &core.IdentityError{Entity: entity, Ref: "user_id", Value: id}
	}
	return u, nil
}

// decodeRows converts derived rows to the declared field types of the entity
// and builds its records.
func decodeRows[T core.Record](key string, rows []core.Row, build func(core.Row) T) ([]T, error) {
	tbl := &core.Table{Name: key, Columns: core.MustGet(key).Columns(), Rows: rows}
	return entities.DecodeTable(key, tbl, build)
}

// fieldError reports a single bad value as a schema violation.
func fieldError(entity string, row int, field string, value any, err error) error {
	return &core.SchemaError{Entity: entity, Row: row, Errors: []core.ValidationError{
		{Field: field, Value: value, Message: err.Error()},
	}}
}

func copyRow(row core.Row) core.Row {
	out := make(core.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
