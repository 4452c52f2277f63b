package derive

import (
	"github.com/JonMunkholm/enclave/internal/core"
	"github.com/JonMunkholm/enclave/internal/core/entities"
)

// Quiz content tables are checked on their raw columns, so a column the
// contract does not declare fails the run.

func (d *deriver) quizQuestionContents() error {
	src, err := d.in.Lookup(SourceQuizQuestionContents)
	if err != nil {
		return err
	}
	contents, err := entities.DecodeTable(entities.KeyQuizQuestionContents, src, entities.QuizQuestionContentsFromRow)
	if err != nil {
		return err
	}
	d.ds.QuizQuestionContents = contents
	return nil
}

// multichoiceAnswers numbers answers by row position and indexes them by
// (question, text) for response resolution. The first of several identical
// answers wins. The source must not carry its own id column.
func (d *deriver) multichoiceAnswers() error {
	src, err := d.in.Lookup(SourceQuizMultichoiceAnswers)
	if err != nil {
		return err
	}
	if src.HasColumn("id") {
		return &core.ShapeError{Source: src.Name, Key: "id", Detail: "column is assigned by row position"}
	}

	numbered := core.NewTable(src.Name, append([]string{"id"}, src.Columns...)...)
	for i, row := range src.Rows {
		r := copyRow(row)
		r["id"] = int64(i)
		numbered.Append(r)
	}

	answers, err := entities.DecodeTable(entities.KeyQuizMultichoiceAnswers, numbered, entities.QuizMultichoiceAnswerFromRow)
	if err != nil {
		return err
	}

	d.answers = make(map[answerKey]int64, len(answers))
	for _, a := range answers {
		key := answerKey{a.QuestionID, a.Text}
		if _, seen := d.answers[key]; !seen {
			d.answers[key] = a.ID
		}
	}
	d.ds.QuizMultichoiceAnswers = answers
	return nil
}

// Interactive content tables are projected onto their declared columns
// before validation; extra export columns are ignored.

func (d *deriver) inputBlocks() error {
	blocks, err := decodeProjected(d.in, SourceInputInstances, entities.KeyInputInteractiveBlocks, entities.InputInteractiveBlockFromRow)
	if err != nil {
		return err
	}
	d.ds.InputInteractiveBlocks = blocks
	return nil
}

func (d *deriver) problemSetProblems() error {
	problems, err := decodeProjected(d.in, SourcePsetProblems, entities.KeyProblemSetProblems, entities.ProblemSetProblemFromRow)
	if err != nil {
		return err
	}
	d.ds.ProblemSetProblems = problems
	return nil
}

func (d *deriver) courseContents() error {
	contents, err := decodeProjected(d.in, SourceCourseContents, entities.KeyCourseContents, entities.CourseContentsFromRow)
	if err != nil {
		return err
	}
	d.ds.CourseContents = contents
	return nil
}

func decodeProjected[T core.Record](in core.Tables, source, key string, build func(core.Row) T) ([]T, error) {
	src, err := in.Lookup(source)
	if err != nil {
		return nil, err
	}
	sel, err := src.Select(core.MustGet(key).Columns()...)
	if err != nil {
		return nil, err
	}
	return entities.DecodeTable(key, sel, build)
}
