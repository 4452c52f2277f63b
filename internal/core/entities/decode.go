package entities

import (
	"github.com/google/uuid"

	"github.com/JonMunkholm/enclave/internal/core"
)

// DecodeTable checks every row of t against the contract of entity key and
// builds typed records from the canonical rows. The first failing row is
// returned as a *core.SchemaError.
func DecodeTable[T core.Record](key string, t *core.Table, build func(core.Row) T) ([]T, error) {
	def := core.MustGet(key)
	out := make([]T, 0, t.Len())
	for i, raw := range t.Rows {
		row, err := core.Decode(def, raw, i)
		if err != nil {
			return nil, err
		}
		out = append(out, build(row))
	}
	return out, nil
}

// QuizQuestionContentsFromRow builds the record from a row converted by core.Decode.
func QuizQuestionContentsFromRow(r core.Row) QuizQuestionContents {
	return QuizQuestionContents{
		ID:   r["id"].(uuid.UUID),
		Text: r["text"].(string),
		Type: r["type"].(string),
	}
}

// QuizMultichoiceAnswerFromRow builds the record from a row converted by core.Decode.
func QuizMultichoiceAnswerFromRow(r core.Row) QuizMultichoiceAnswer {
	return QuizMultichoiceAnswer{
		ID:         r["id"].(int64),
		QuestionID: r["question_id"].(uuid.UUID),
		Text:       r["text"].(string),
		Grade:      r["grade"].(float64),
		Feedback:   r["feedback"].(string),
	}
}

// InputInteractiveBlockFromRow builds the record from a row converted by core.Decode.
func InputInteractiveBlockFromRow(r core.Row) InputInteractiveBlock {
	return InputInteractiveBlock{
		ID:        r["id"].(uuid.UUID),
		ContentID: r["content_id"].(uuid.UUID),
		Variant:   r["variant"].(string),
		Content:   r["content"].(string),
		Prompt:    r["prompt"].(string),
	}
}

// ProblemSetProblemFromRow builds the record from a row converted by core.Decode.
func ProblemSetProblemFromRow(r core.Row) ProblemSetProblem {
	return ProblemSetProblem{
		ID:              r["id"].(uuid.UUID),
		ContentID:       r["content_id"].(uuid.UUID),
		Variant:         r["variant"].(string),
		PsetID:          r["pset_id"].(uuid.UUID),
		Content:         r["content"].(string),
		ProblemType:     r["problem_type"].(string),
		Solution:        r["solution"].(string),
		SolutionOptions: r["solution_options"].(string),
	}
}

// CourseContentsFromRow builds the record from a row converted by core.Decode.
func CourseContentsFromRow(r core.Row) CourseContents {
	return CourseContents{
		Section:      r["section"].(string),
		ActivityName: r["activity_name"].(string),
		LessonPage:   r["lesson_page"].(string),
		ContentID:    r["content_id"].(uuid.UUID),
	}
}

// ContentLoadFromRow builds the record from a row converted by core.Decode.
func ContentLoadFromRow(r core.Row) ContentLoad {
	return ContentLoad{
		UserUUID:     r["user_uuid"].(uuid.UUID),
		CourseID:     r["course_id"].(int64),
		ImpressionID: r["impression_id"].(uuid.UUID),
		Timestamp:    r["timestamp"].(int64),
		ContentID:    r["content_id"].(uuid.UUID),
		Variant:      r["variant"].(string),
	}
}

// IBProblemAttemptFromRow builds the record from a row converted by core.Decode.
func IBProblemAttemptFromRow(r core.Row) IBProblemAttempt {
	return IBProblemAttempt{
		UserUUID:             r["user_uuid"].(uuid.UUID),
		CourseID:             r["course_id"].(int64),
		ImpressionID:         r["impression_id"].(uuid.UUID),
		Timestamp:            r["timestamp"].(int64),
		ContentID:            r["content_id"].(uuid.UUID),
		PsetContentID:        r["pset_content_id"].(uuid.UUID),
		PsetProblemContentID: r["pset_problem_content_id"].(uuid.UUID),
		Variant:              r["variant"].(string),
		ProblemType:          r["problem_type"].(string),
		Response:             r["response"],
		Correct:              r["correct"].(bool),
		Attempt:              r["attempt"].(int64),
		FinalAttempt:         r["final_attempt"].(bool),
	}
}

// IBInputSubmissionFromRow builds the record from a row converted by core.Decode.
func IBInputSubmissionFromRow(r core.Row) IBInputSubmission {
	return IBInputSubmission{
		UserUUID:       r["user_uuid"].(uuid.UUID),
		CourseID:       r["course_id"].(int64),
		ImpressionID:   r["impression_id"].(uuid.UUID),
		Timestamp:      r["timestamp"].(int64),
		ContentID:      r["content_id"].(uuid.UUID),
		InputContentID: r["input_content_id"].(uuid.UUID),
		Variant:        r["variant"].(string),
		Response:       r["response"].(string),
	}
}

// UserFromRow builds the record from a row converted by core.Decode.
func UserFromRow(r core.Row) User {
	return User{
		UUID:      r["uuid"].(uuid.UUID),
		FirstName: r["first_name"].(string),
		LastName:  r["last_name"].(string),
		Email:     r["email"].(string),
	}
}

// CourseFromRow builds the record from a row converted by core.Decode.
func CourseFromRow(r core.Row) Course {
	return Course{ID: r["id"].(int64), Name: r["name"].(string)}
}

// EnrollmentFromRow builds the record from a row converted by core.Decode.
func EnrollmentFromRow(r core.Row) Enrollment {
	return Enrollment{
		UserUUID: r["user_uuid"].(uuid.UUID),
		CourseID: r["course_id"].(int64),
		Role:     r["role"].(string),
	}
}

// AssessmentFromRow builds the record from a row converted by core.Decode.
func AssessmentFromRow(r core.Row) Assessment {
	return Assessment{ID: r["id"].(int64), Name: r["name"].(string)}
}

// GradeFromRow builds the record from a row converted by core.Decode.
func GradeFromRow(r core.Row) Grade {
	return Grade{
		AssessmentID:    r["assessment_id"].(int64),
		UserUUID:        r["user_uuid"].(uuid.UUID),
		CourseID:        r["course_id"].(int64),
		GradePercentage: r["grade_percentage"].(float64),
		TimeSubmitted:   r["time_submitted"].(int64),
	}
}

// QuizQuestionFromRow builds the record from a row converted by core.Decode.
func QuizQuestionFromRow(r core.Row) QuizQuestion {
	return QuizQuestion{
		AssessmentID:   r["assessment_id"].(int64),
		QuestionNumber: r["question_number"].(int64),
		QuestionID:     r["question_id"].(uuid.UUID),
	}
}

// QuizAttemptFromRow builds the record from a row converted by core.Decode.
func QuizAttemptFromRow(r core.Row) QuizAttempt {
	return QuizAttempt{
		ID:              r["id"].(int64),
		AssessmentID:    r["assessment_id"].(int64),
		UserUUID:        r["user_uuid"].(uuid.UUID),
		CourseID:        r["course_id"].(int64),
		AttemptNumber:   r["attempt_number"].(int64),
		GradePercentage: r["grade_percentage"].(float64),
		TimeStarted:     r["time_started"].(int64),
		TimeFinished:    r["time_finished"].(int64),
	}
}

// QuizAttemptMultichoiceResponseFromRow builds the record from a row converted by core.Decode.
func QuizAttemptMultichoiceResponseFromRow(r core.Row) QuizAttemptMultichoiceResponse {
	return QuizAttemptMultichoiceResponse{
		AttemptID:      r["attempt_id"].(int64),
		QuestionNumber: r["question_number"].(int64),
		QuestionID:     r["question_id"].(uuid.UUID),
		AnswerID:       r["answer_id"].(int64),
	}
}
