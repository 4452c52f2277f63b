// Package entities registers every output entity with the core registry.
// Import this package to ensure all entities are registered.
//
// Each entity is a typed record whose Row view is checked against its closed
// field contract, and whose validate tags carry the entity rules.
package entities

import (
	"github.com/google/uuid"

	"github.com/JonMunkholm/enclave/internal/core"
)

// Entity keys. The key is also the output file stem.
const (
	KeyUsers                           = "users"
	KeyCourses                         = "courses"
	KeyEnrollments                     = "enrollments"
	KeyAssessments                     = "assessments"
	KeyGrades                          = "grades"
	KeyQuizQuestions                   = "quiz_questions"
	KeyQuizQuestionContents            = "quiz_question_contents"
	KeyQuizMultichoiceAnswers          = "quiz_multichoice_answers"
	KeyInputInteractiveBlocks          = "ib_input_instances"
	KeyProblemSetProblems              = "ib_pset_problems"
	KeyCourseContents                  = "course_contents"
	KeyQuizAttempts                    = "quiz_attempts"
	KeyQuizAttemptMultichoiceResponses = "quiz_attempt_multichoice_responses"
	KeyContentLoads                    = "content_loads"
	KeyIBProblemAttempts               = "ib_pset_problem_attempts"
	KeyIBInputSubmissions              = "ib_input_submissions"
)

// Enrollment roles.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

// ProblemTypeMultiselect is the problem type whose responses are string lists.
const ProblemTypeMultiselect = "multiselect"

// User is one person, deduplicated by email across courses.
type User struct {
	UUID      uuid.UUID `csv:"uuid"`
	FirstName string    `csv:"first_name"`
	LastName  string    `csv:"last_name"`
	Email     string    `csv:"email"`
}

// Row returns the record keyed by column name. Every entity implements
// core.Record the same way.
func (u User) Row() core.Row {
	return core.Row{"uuid": u.UUID, "first_name": u.FirstName, "last_name": u.LastName, "email": u.Email}
}

// Course is one course of the export.
type Course struct {
	ID   int64  `csv:"id"`
	Name string `csv:"name"`
}

func (c Course) Row() core.Row {
	return core.Row{"id": c.ID, "name": c.Name}
}

// Enrollment places a user in a course with a role.
type Enrollment struct {
	UserUUID uuid.UUID `csv:"user_uuid"`
	CourseID int64     `csv:"course_id"`
	Role     string    `csv:"role" validate:"oneof=student teacher"`
}

func (e Enrollment) Row() core.Row {
	return core.Row{"user_uuid": e.UserUUID, "course_id": e.CourseID, "role": e.Role}
}

// Assessment is a graded item; ids are dense in first-appearance order.
type Assessment struct {
	ID   int64  `csv:"id" validate:"gte=0"`
	Name string `csv:"name"`
}

func (a Assessment) Row() core.Row {
	return core.Row{"id": a.ID, "name": a.Name}
}

// Grade is a user's percentage on one assessment.
type Grade struct {
	AssessmentID    int64     `csv:"assessment_id" validate:"gte=0"`
	UserUUID        uuid.UUID `csv:"user_uuid"`
	CourseID        int64     `csv:"course_id"`
	GradePercentage float64   `csv:"grade_percentage" validate:"percentage"`
	TimeSubmitted   int64     `csv:"time_submitted"`
}

func (g Grade) Row() core.Row {
	return core.Row{
		"assessment_id":    g.AssessmentID,
		"user_uuid":        g.UserUUID,
		"course_id":        g.CourseID,
		"grade_percentage": g.GradePercentage,
		"time_submitted":   g.TimeSubmitted,
	}
}

// QuizQuestion maps a question slot of an assessment to its question.
type QuizQuestion struct {
	AssessmentID   int64     `csv:"assessment_id" validate:"gte=0"`
	QuestionNumber int64     `csv:"question_number"`
	QuestionID     uuid.UUID `csv:"question_id"`
}

func (q QuizQuestion) Row() core.Row {
	return core.Row{"assessment_id": q.AssessmentID, "question_number": q.QuestionNumber, "question_id": q.QuestionID}
}

// QuizQuestionContents is the text and type of a quiz question.
type QuizQuestionContents struct {
	ID   uuid.UUID `csv:"id"`
	Text string    `csv:"text"`
	Type string    `csv:"type" validate:"oneof=multichoice multianswer numerical essay"`
}

func (q QuizQuestionContents) Row() core.Row {
	return core.Row{"id": q.ID, "text": q.Text, "type": q.Type}
}

// QuizMultichoiceAnswer is one answer option; ID is its row position.
type QuizMultichoiceAnswer struct {
	ID         int64     `csv:"id" validate:"gte=0"`
	QuestionID uuid.UUID `csv:"question_id"`
	Text       string    `csv:"text"`
	Grade      float64   `csv:"grade"`
	Feedback   string    `csv:"feedback"`
}

func (a QuizMultichoiceAnswer) Row() core.Row {
	return core.Row{"id": a.ID, "question_id": a.QuestionID, "text": a.Text, "grade": a.Grade, "feedback": a.Feedback}
}

// InputInteractiveBlock is an interactive input block of course content.
type InputInteractiveBlock struct {
	ID        uuid.UUID `csv:"id"`
	ContentID uuid.UUID `csv:"content_id"`
	Variant   string    `csv:"variant"`
	Content   string    `csv:"content"`
	Prompt    string    `csv:"prompt"`
}

func (b InputInteractiveBlock) Row() core.Row {
	return core.Row{"id": b.ID, "content_id": b.ContentID, "variant": b.Variant, "content": b.Content, "prompt": b.Prompt}
}

// ProblemSetProblem is one problem of an interactive problem set.
type ProblemSetProblem struct {
	ID              uuid.UUID `csv:"id"`
	ContentID       uuid.UUID `csv:"content_id"`
	Variant         string    `csv:"variant"`
	PsetID          uuid.UUID `csv:"pset_id"`
	Content         string    `csv:"content"`
	ProblemType     string    `csv:"problem_type" validate:"oneof=input dropdown multiselect multiplechoice"`
	Solution        string    `csv:"solution"`
	SolutionOptions string    `csv:"solution_options"`
}

func (p ProblemSetProblem) Row() core.Row {
	return core.Row{
		"id":               p.ID,
		"content_id":       p.ContentID,
		"variant":          p.Variant,
		"pset_id":          p.PsetID,
		"content":          p.Content,
		"problem_type":     p.ProblemType,
		"solution":         p.Solution,
		"solution_options": p.SolutionOptions,
	}
}

// CourseContents places a content id in the course outline.
type CourseContents struct {
	Section      string    `csv:"section"`
	ActivityName string    `csv:"activity_name"`
	LessonPage   string    `csv:"lesson_page"`
	ContentID    uuid.UUID `csv:"content_id"`
}

func (c CourseContents) Row() core.Row {
	return core.Row{"section": c.Section, "activity_name": c.ActivityName, "lesson_page": c.LessonPage, "content_id": c.ContentID}
}

// QuizAttempt is one attempt at a quiz with its percentage grade.
type QuizAttempt struct {
	ID              int64     `csv:"id" validate:"gte=0"`
	AssessmentID    int64     `csv:"assessment_id" validate:"gte=0"`
	UserUUID        uuid.UUID `csv:"user_uuid"`
	CourseID        int64     `csv:"course_id"`
	AttemptNumber   int64     `csv:"attempt_number"`
	GradePercentage float64   `csv:"grade_percentage" validate:"percentage"`
	TimeStarted     int64     `csv:"time_started"`
	TimeFinished    int64     `csv:"time_finished"`
}

func (a QuizAttempt) Row() core.Row {
	return core.Row{
		"id":               a.ID,
		"assessment_id":    a.AssessmentID,
		"user_uuid":        a.UserUUID,
		"course_id":        a.CourseID,
		"attempt_number":   a.AttemptNumber,
		"grade_percentage": a.GradePercentage,
		"time_started":     a.TimeStarted,
		"time_finished":    a.TimeFinished,
	}
}

// QuizAttemptMultichoiceResponse is an answer chosen during an attempt.
type QuizAttemptMultichoiceResponse struct {
	AttemptID      int64     `csv:"attempt_id" validate:"gte=0"`
	QuestionNumber int64     `csv:"question_number"`
	QuestionID     uuid.UUID `csv:"question_id"`
	AnswerID       int64     `csv:"answer_id" validate:"gte=0"`
}

func (r QuizAttemptMultichoiceResponse) Row() core.Row {
	return core.Row{"attempt_id": r.AttemptID, "question_number": r.QuestionNumber, "question_id": r.QuestionID, "answer_id": r.AnswerID}
}

// ContentLoad is a content_loaded event.
type ContentLoad struct {
	UserUUID     uuid.UUID `csv:"user_uuid"`
	CourseID     int64     `csv:"course_id"`
	ImpressionID uuid.UUID `csv:"impression_id"`
	Timestamp    int64     `csv:"timestamp"`
	ContentID    uuid.UUID `csv:"content_id"`
	Variant      string    `csv:"variant"`
}

func (e ContentLoad) Row() core.Row {
	return core.Row{
		"user_uuid":     e.UserUUID,
		"course_id":     e.CourseID,
		"impression_id": e.ImpressionID,
		"timestamp":     e.Timestamp,
		"content_id":    e.ContentID,
		"variant":       e.Variant,
	}
}

// IBProblemAttempt is an ib_pset_problem_attempted event. Response holds a
// string, or a []string when ProblemType is multiselect.
type IBProblemAttempt struct {
	UserUUID             uuid.UUID `csv:"user_uuid"`
	CourseID             int64     `csv:"course_id"`
	ImpressionID         uuid.UUID `csv:"impression_id"`
	Timestamp            int64     `csv:"timestamp"`
	ContentID            uuid.UUID `csv:"content_id"`
	PsetContentID        uuid.UUID `csv:"pset_content_id"`
	PsetProblemContentID uuid.UUID `csv:"pset_problem_content_id"`
	Variant              string    `csv:"variant"`
	ProblemType          string    `csv:"problem_type"`
	Response             any       `csv:"response"`
	Correct              bool      `csv:"correct"`
	Attempt              int64     `csv:"attempt"`
	FinalAttempt         bool      `csv:"final_attempt"`
}

func (e IBProblemAttempt) Row() core.Row {
	return core.Row{
		"user_uuid":               e.UserUUID,
		"course_id":               e.CourseID,
		"impression_id":           e.ImpressionID,
		"timestamp":               e.Timestamp,
		"content_id":              e.ContentID,
		"pset_content_id":         e.PsetContentID,
		"pset_problem_content_id": e.PsetProblemContentID,
		"variant":                 e.Variant,
		"problem_type":            e.ProblemType,
		"response":                e.Response,
		"correct":                 e.Correct,
		"attempt":                 e.Attempt,
		"final_attempt":           e.FinalAttempt,
	}
}

// IBInputSubmission is an ib_input_submitted event.
type IBInputSubmission struct {
	UserUUID       uuid.UUID `csv:"user_uuid"`
	CourseID       int64     `csv:"course_id"`
	ImpressionID   uuid.UUID `csv:"impression_id"`
	Timestamp      int64     `csv:"timestamp"`
	ContentID      uuid.UUID `csv:"content_id"`
	InputContentID uuid.UUID `csv:"input_content_id"`
	Variant        string    `csv:"variant"`
	Response       string    `csv:"response"`
}

func (e IBInputSubmission) Row() core.Row {
	return core.Row{
		"user_uuid":        e.UserUUID,
		"course_id":        e.CourseID,
		"impression_id":    e.ImpressionID,
		"timestamp":        e.Timestamp,
		"content_id":       e.ContentID,
		"input_content_id": e.InputContentID,
		"variant":          e.Variant,
		"response":         e.Response,
	}
}
