package derive

import (
	"math"

	"github.com/JonMunkholm/enclave/internal/core"
	"github.com/JonMunkholm/enclave/internal/core/entities"
	"github.com/JonMunkholm/enclave/internal/moodle"
)

// quizAttempts joins attempt summaries with their quiz, user and assessment
// and re-keys each surviving attempt to a dense id. The native attempt id is
// only unique within a quiz, so the (quiz, attempt) pair is remembered for
// linking responses.
func (d *deriver) quizAttempts() error {
	if err := d.indexQuizzes(); err != nil {
		return err
	}

	src, err := d.in.Lookup(moodle.TableAttemptsSummary)
	if err != nil {
		return err
	}
	if err := src.Require(moodle.AttemptsColumns...); err != nil {
		return err
	}

	d.attempts = make(map[attemptKey]int64, src.Len())
	rows := make([]core.Row, 0, src.Len())

	for _, row := range src.Rows {
		pos := len(rows)

		quizID, err := core.ToInt(row["quiz_id"])
		if err != nil {
			return fieldError(entities.KeyQuizAttempts, pos, "quiz_id", row["quiz_id"], err)
		}
		quiz, ok := d.quizzes[quizID]
		if !ok {
			d.drops[DropAttemptsUnknownQuiz]++
			continue
		}

		u, err := d.resolveUser(entities.KeyQuizAttempts, pos, row["user_id"])
		if err != nil {
			return err
		}

		assessmentID, ok := d.assessments[quiz.name]
		if !ok {
			d.drops[DropAttemptsUnknownAssessment]++
			continue
		}

		nativeID, err := core.ToInt(row["attempt_id"])
		if err != nil {
			return fieldError(entities.KeyQuizAttempts, pos, "attempt_id", row["attempt_id"], err)
		}

		pct, err := attemptPercentage(row["attempt_grade"], quiz.maxGrade)
		if err != nil {
			return fieldError(entities.KeyQuizAttempts, pos, "grade_percentage", row["attempt_grade"], err)
		}

		id := int64(pos)
		d.attempts[attemptKey{quizID, nativeID}] = id
		rows = append(rows, core.Row{
			"id":               id,
			"assessment_id":    assessmentID,
			"user_uuid":        u,
			"course_id":        row["course_id"],
			"attempt_number":   row["attempt_number"],
			"grade_percentage": pct,
			"time_started":     row["time_started"],
			"time_finished":    row["time_finished"],
		})
	}

	attempts, err := decodeRows(entities.KeyQuizAttempts, rows, entities.QuizAttemptFromRow)
	if err != nil {
		return err
	}
	d.ds.QuizAttempts = attempts
	return nil
}

func (d *deriver) indexQuizzes() error {
	src, err := d.in.Lookup(moodle.TableQuizData)
	if err != nil {
		return err
	}
	if err := src.Require(moodle.QuizDataColumns...); err != nil {
		return err
	}

	d.quizzes = make(map[int64]quizInfo, src.Len())
	for i, row := range src.Rows {
		id, err := core.ToInt(row["quiz_id"])
		if err != nil {
			return fieldError(moodle.TableQuizData, i, "quiz_id", row["quiz_id"], err)
		}
		name, err := core.ToText(row["quiz_name"])
		if err != nil {
			return fieldError(moodle.TableQuizData, i, "quiz_name", row["quiz_name"], err)
		}
		if _, seen := d.quizzes[id]; !seen {
			d.quizzes[id] = quizInfo{name: name, maxGrade: row["max_grade"]}
		}
	}
	return nil
}

// attemptPercentage scales an attempt grade by the quiz maximum. A missing
// grade or maximum yields NaN, which the range rule rejects.
func attemptPercentage(grade, maxGrade any) (float64, error) {
	g, err := nullableFloat(grade)
	if err != nil {
		return 0, err
	}
	m, err := nullableFloat(maxGrade)
	if err != nil {
		return 0, err
	}
	return 100 * (g / m), nil
}

func nullableFloat(v any) (float64, error) {
	if v == nil {
		return math.NaN(), nil
	}
	return core.ToFloat(v)
}

// multichoiceResponses links each raw answer to its dense attempt id, its
// question and the answer row with the same text. Rows that do not resolve
// are dropped and counted.
func (d *deriver) multichoiceResponses() error {
	src, err := d.in.Lookup(moodle.TableAttemptMultichoiceResponse)
	if err != nil {
		return err
	}
	if err := src.Require(moodle.ResponsesColumns...); err != nil {
		return err
	}

	const entity = entities.KeyQuizAttemptMultichoiceResponses
	rows := make([]core.Row, 0, src.Len())

	for _, row := range src.Rows {
		pos := len(rows)

		quizID, err := core.ToInt(row["quiz_id"])
		if err != nil {
			return fieldError(entity, pos, "quiz_id", row["quiz_id"], err)
		}
		nativeID, err := core.ToInt(row["attempt_id"])
		if err != nil {
			return fieldError(entity, pos, "attempt_id", row["attempt_id"], err)
		}
		attemptID, ok := d.attempts[attemptKey{quizID, nativeID}]
		if !ok {
			d.drops[DropResponsesUnknownAttempt]++
			continue
		}

		// The attempt survived, so its quiz names a known assessment.
		assessmentID := d.assessments[d.quizzes[quizID].name]
		number, err := core.ToInt(row["question_number"])
		if err != nil {
			return fieldError(entity, pos, "question_number", row["question_number"], err)
		}
		questionID, ok := d.questions[questionKey{assessmentID, number}]
		if !ok {
			d.drops[DropResponsesUnknownQuestion]++
			continue
		}

		answer, err := core.ToText(row["answer"])
		if err != nil {
			return fieldError(entity, pos, "answer", row["answer"], err)
		}
		answerID, ok := d.answers[answerKey{questionID, answer}]
		if !ok {
			d.drops[DropResponsesUnmatchedAnswer]++
			continue
		}

		rows = append(rows, core.Row{
			"attempt_id":      attemptID,
			"question_number": number,
			"question_id":     questionID,
			"answer_id":       answerID,
		})
	}

	responses, err := decodeRows(entity, rows, entities.QuizAttemptMultichoiceResponseFromRow)
	if err != nil {
		return err
	}
	d.ds.QuizAttemptMultichoiceResponses = responses
	return nil
}
