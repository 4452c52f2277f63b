package entities

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/JonMunkholm/enclave/internal/core"
)

// Dataset is the complete entity graph of one compilation.
type Dataset struct {
	Users                           []User
	Courses                         []Course
	Enrollments                     []Enrollment
	Assessments                     []Assessment
	Grades                          []Grade
	QuizQuestions                   []QuizQuestion
	QuizQuestionContents            []QuizQuestionContents
	QuizMultichoiceAnswers          []QuizMultichoiceAnswer
	InputInteractiveBlocks          []InputInteractiveBlock
	ProblemSetProblems              []ProblemSetProblem
	CourseContents                  []CourseContents
	QuizAttempts                    []QuizAttempt
	QuizAttemptMultichoiceResponses []QuizAttemptMultichoiceResponse
	ContentLoads                    []ContentLoad
	IBProblemAttempts               []IBProblemAttempt
	IBInputSubmissions              []IBInputSubmission
}

// EntitySet pairs an entity definition with its records in output order.
type EntitySet struct {
	Def     core.EntityDefinition
	Records []core.Record
}

// Sets returns every entity of the dataset in emit order.
func (d *Dataset) Sets() []EntitySet {
	byKey := map[string][]core.Record{
		KeyUsers:                           records(d.Users),
		KeyCourses:                         records(d.Courses),
		KeyEnrollments:                     records(d.Enrollments),
		KeyAssessments:                     records(d.Assessments),
		KeyGrades:                          records(d.Grades),
		KeyQuizQuestions:                   records(d.QuizQuestions),
		KeyQuizQuestionContents:            records(d.QuizQuestionContents),
		KeyQuizMultichoiceAnswers:          records(d.QuizMultichoiceAnswers),
		KeyInputInteractiveBlocks:          records(d.InputInteractiveBlocks),
		KeyProblemSetProblems:              records(d.ProblemSetProblems),
		KeyCourseContents:                  records(d.CourseContents),
		KeyQuizAttempts:                    records(d.QuizAttempts),
		KeyQuizAttemptMultichoiceResponses: records(d.QuizAttemptMultichoiceResponses),
		KeyContentLoads:                    records(d.ContentLoads),
		KeyIBProblemAttempts:               records(d.IBProblemAttempts),
		KeyIBInputSubmissions:              records(d.IBInputSubmissions),
	}

	defs := core.All()
	sets := make([]EntitySet, 0, len(defs))
	for _, def := range defs {
		recs, ok := byKey[def.Info.Key]
		if !ok {
			continue
		}
		sets = append(sets, EntitySet{Def: def, Records: recs})
	}
	return sets
}

func records[T core.Record](in []T) []core.Record {
	out := make([]core.Record, len(in))
	for i, r := range in {
		out[i] = r
	}
	return out
}

// Counts returns the number of records per entity key.
func (d *Dataset) Counts() map[string]int {
	counts := make(map[string]int)
	for _, s := range d.Sets() {
		counts[s.Def.Info.Key] = len(s.Records)
	}
	return counts
}

// Validate checks every record of every entity against its contract and
// returns the first violation.
func (d *Dataset) Validate() error {
	for _, s := range d.Sets() {
		if err := core.ValidateRecords(s.Def, s.Records); err != nil {
			return err
		}
	}
	return nil
}

// CheckClosure verifies that every user, course, assessment, attempt and
// answer reference resolves to a row of the referenced entity, and that
// every grade and quiz attempt belongs to an enrollment of its user in its
// course.
func (d *Dataset) CheckClosure() error {
	users := make(map[uuid.UUID]struct{}, len(d.Users))
	for _, u := range d.Users {
		users[u.UUID] = struct{}{}
	}
	courses := make(map[int64]struct{}, len(d.Courses))
	for _, c := range d.Courses {
		courses[c.ID] = struct{}{}
	}
	assessments := make(map[int64]struct{}, len(d.Assessments))
	for _, a := range d.Assessments {
		assessments[a.ID] = struct{}{}
	}
	attempts := make(map[int64]struct{}, len(d.QuizAttempts))
	for _, a := range d.QuizAttempts {
		attempts[a.ID] = struct{}{}
	}
	answers := make(map[int64]struct{}, len(d.QuizMultichoiceAnswers))
	for _, a := range d.QuizMultichoiceAnswers {
		answers[a.ID] = struct{}{}
	}

	refs := []struct {
		entity string
		rows   int
		user   func(i int) uuid.UUID
		course func(i int) int64
	}{
		{KeyEnrollments, len(d.Enrollments), func(i int) uuid.UUID { return d.Enrollments[i].UserUUID }, func(i int) int64 { return d.Enrollments[i].CourseID }},
		{KeyGrades, len(d.Grades), func(i int) uuid.UUID { return d.Grades[i].UserUUID }, func(i int) int64 { return d.Grades[i].CourseID }},
		{KeyQuizAttempts, len(d.QuizAttempts), func(i int) uuid.UUID { return d.QuizAttempts[i].UserUUID }, func(i int) int64 { return d.QuizAttempts[i].CourseID }},
		{KeyContentLoads, len(d.ContentLoads), func(i int) uuid.UUID { return d.ContentLoads[i].UserUUID }, func(i int) int64 { return d.ContentLoads[i].CourseID }},
		{KeyIBProblemAttempts, len(d.IBProblemAttempts), func(i int) uuid.UUID { return d.IBProblemAttempts[i].UserUUID }, func(i int) int64 { return d.IBProblemAttempts[i].CourseID }},
		{KeyIBInputSubmissions, len(d.IBInputSubmissions), func(i int) uuid.UUID { return d.IBInputSubmissions[i].UserUUID }, func(i int) int64 { return d.IBInputSubmissions[i].CourseID }},
	}
	for _, ref := range refs {
		for i := 0; i < ref.rows; i++ {
			if u := ref.user(i); !has(users, u) {
				return &core.IntegrityError{Entity: ref.entity, Field: "user_uuid", Value: u, Target: KeyUsers}
			}
			if c := ref.course(i); !has(courses, c) {
				return &core.IntegrityError{Entity: ref.entity, Field: "course_id", Value: c, Target: KeyCourses}
			}
		}
	}

	enrolled := make(map[enrollment]struct{}, len(d.Enrollments))
	for _, e := range d.Enrollments {
		enrolled[enrollment{e.UserUUID, e.CourseID}] = struct{}{}
	}
	for _, g := range d.Grades {
		if k := (enrollment{g.UserUUID, g.CourseID}); !has(enrolled, k) {
			return &core.IntegrityError{Entity: KeyGrades, Field: "(user_uuid, course_id)", Value: k, Target: KeyEnrollments}
		}
	}
	for _, a := range d.QuizAttempts {
		if k := (enrollment{a.UserUUID, a.CourseID}); !has(enrolled, k) {
			return &core.IntegrityError{Entity: KeyQuizAttempts, Field: "(user_uuid, course_id)", Value: k, Target: KeyEnrollments}
		}
	}

	for _, g := range d.Grades {
		if !has(assessments, g.AssessmentID) {
			return &core.IntegrityError{Entity: KeyGrades, Field: "assessment_id", Value: g.AssessmentID, Target: KeyAssessments}
		}
	}
	for _, q := range d.QuizQuestions {
		if !has(assessments, q.AssessmentID) {
			return &core.IntegrityError{Entity: KeyQuizQuestions, Field: "assessment_id", Value: q.AssessmentID, Target: KeyAssessments}
		}
	}
	for _, a := range d.QuizAttempts {
		if !has(assessments, a.AssessmentID) {
			return &core.IntegrityError{Entity: KeyQuizAttempts, Field: "assessment_id", Value: a.AssessmentID, Target: KeyAssessments}
		}
	}
	for _, r := range d.QuizAttemptMultichoiceResponses {
		if !has(attempts, r.AttemptID) {
			return &core.IntegrityError{Entity: KeyQuizAttemptMultichoiceResponses, Field: "attempt_id", Value: r.AttemptID, Target: KeyQuizAttempts}
		}
		if !has(answers, r.AnswerID) {
			return &core.IntegrityError{Entity: KeyQuizAttemptMultichoiceResponses, Field: "answer_id", Value: r.AnswerID, Target: KeyQuizMultichoiceAnswers}
		}
	}
	return nil
}

type enrollment struct {
	user   uuid.UUID
	course int64
}

func (e enrollment) String() string { return fmt.Sprintf("(%s, %d)", e.user, e.course) }

func has[K comparable](set map[K]struct{}, k K) bool {
	_, ok := set[k]
	return ok
}

// String summarizes the dataset for log output.
func (d *Dataset) String() string {
	return fmt.Sprintf("dataset(users=%d courses=%d enrollments=%d grades=%d attempts=%d)",
		len(d.Users), len(d.Courses), len(d.Enrollments), len(d.Grades), len(d.QuizAttempts))
}
