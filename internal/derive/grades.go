package derive

import (
	"github.com/google/uuid"

	"github.com/JonMunkholm/enclave/internal/core"
	"github.com/JonMunkholm/enclave/internal/core/entities"
)

// deriveAssessments assigns a dense id to each distinct grade item name in
// order of first appearance. Ungraded items still name an assessment.
func (d *deriver) deriveAssessments() error {
	d.assessments = make(map[string]int64)
	rows := make([]core.Row, 0)

	for i, row := range d.grades.Rows {
		name, err := core.ToText(row["assessment_name"])
		if err != nil {
			return fieldError(entities.KeyAssessments, i, "name", row["assessment_name"], err)
		}
		if _, seen := d.assessments[name]; seen {
			continue
		}
		id := int64(len(rows))
		d.assessments[name] = id
		rows = append(rows, core.Row{"id": id, "name": name})
	}

	assessments, err := decodeRows(entities.KeyAssessments, rows, entities.AssessmentFromRow)
	if err != nil {
		return err
	}
	d.ds.Assessments = assessments
	return nil
}

// deriveGrades parses grade percentages, drops ungraded items and resolves
// the assessment and user of every remaining item. A user keeps one grade
// per assessment: the first.
func (d *deriver) deriveGrades() error {
	rows := make([]core.Row, 0, d.grades.Len())
	seen := make(map[gradeKey]struct{}, d.grades.Len())

	for _, row := range d.grades.Rows {
		pos := len(rows)

		raw, err := core.ToText(row["grade_percentage"])
		if err != nil {
			return fieldError(entities.KeyGrades, pos, "grade_percentage", row["grade_percentage"], err)
		}
		pct, graded, err := core.ParsePercentage(raw)
		if err != nil {
			return fieldError(entities.KeyGrades, pos, "grade_percentage", raw, err)
		}
		if !graded {
			d.drops[DropGradesUngraded]++
			continue
		}

		name := row["assessment_name"].(string) // checked by deriveAssessments
		u, err := d.resolveUser(entities.KeyGrades, pos, row["user_id"])
		if err != nil {
			return err
		}
		key := gradeKey{u, d.assessments[name]}
		if _, dup := seen[key]; dup {
			d.drops[DropGradesDuplicate]++
			continue
		}
		seen[key] = struct{}{}

		rows = append(rows, core.Row{
			"assessment_id":    key.assessment,
			"user_uuid":        u,
			"course_id":        row["course_id"],
			"grade_percentage": pct,
			"time_submitted":   row["time_submitted"],
		})
	}

	grades, err := decodeRows(entities.KeyGrades, rows, entities.GradeFromRow)
	if err != nil {
		return err
	}
	d.ds.Grades = grades
	return nil
}

// quizQuestions links question slots to assessments by quiz name. Slots of
// quizzes that never appear as a grade item are dropped, as are repeats of
// a slot already linked.
func (d *deriver) quizQuestions() error {
	src, err := d.in.Lookup(SourceQuizQuestions)
	if err != nil {
		return err
	}
	if err := src.Require("quiz_name", "question_number", "question_id"); err != nil {
		return err
	}

	rows := make([]core.Row, 0, src.Len())
	for _, row := range src.Rows {
		name, err := core.ToText(row["quiz_name"])
		if err != nil {
			return fieldError(entities.KeyQuizQuestions, len(rows), "quiz_name", row["quiz_name"], err)
		}
		id, ok := d.assessments[name]
		if !ok {
			d.drops[DropQuizQuestionsUnknownQuiz]++
			continue
		}
		rows = append(rows, core.Row{
			"assessment_id":   id,
			"question_number": row["question_number"],
			"question_id":     row["question_id"],
		})
	}

	questions, err := decodeRows(entities.KeyQuizQuestions, rows, entities.QuizQuestionFromRow)
	if err != nil {
		return err
	}

	d.questions = make(map[questionKey]uuid.UUID, len(questions))
	kept := questions[:0]
	for _, q := range questions {
		key := questionKey{q.AssessmentID, q.QuestionNumber}
		if _, seen := d.questions[key]; seen {
			d.drops[DropQuizQuestionsDuplicate]++
			continue
		}
		d.questions[key] = q.QuestionID
		kept = append(kept, q)
	}
	d.ds.QuizQuestions = kept
	return nil
}
