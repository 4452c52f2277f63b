package entities

import "github.com/JonMunkholm/enclave/internal/core"

func init() {
	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyUsers, Label: "User", Order: 10},
		FieldSpecs: []core.FieldSpec{
			{Name: "uuid", Type: core.FieldUUID},
			{Name: "first_name", Type: core.FieldText},
			{Name: "last_name", Type: core.FieldText},
			{Name: "email", Type: core.FieldText},
		},
		Check: checkStruct,
	})

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyCourses, Label: "Course", Order: 20},
		FieldSpecs: []core.FieldSpec{
			{Name: "id", Type: core.FieldInt},
			{Name: "name", Type: core.FieldText},
		},
		Check: checkStruct,
	})

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyEnrollments, Label: "Enrollment", Order: 30},
		FieldSpecs: []core.FieldSpec{
			{Name: "user_uuid", Type: core.FieldUUID},
			{Name: "course_id", Type: core.FieldInt},
			{Name: "role", Type: core.FieldEnum, EnumValues: []string{RoleStudent, RoleTeacher}},
		},
		Check: checkStruct,
	})

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyAssessments, Label: "Assessment", Order: 40},
		FieldSpecs: []core.FieldSpec{
			{Name: "id", Type: core.FieldInt},
			{Name: "name", Type: core.FieldText},
		},
		Check: checkStruct,
	})

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyGrades, Label: "Grade", Order: 50},
		FieldSpecs: []core.FieldSpec{
			{Name: "assessment_id", Type: core.FieldInt},
			{Name: "user_uuid", Type: core.FieldUUID},
			{Name: "course_id", Type: core.FieldInt},
			{Name: "grade_percentage", Type: core.FieldFloat},
			{Name: "time_submitted", Type: core.FieldInt},
		},
		Check: checkStruct,
	})

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyQuizQuestions, Label: "Quiz Question", Order: 60},
		FieldSpecs: []core.FieldSpec{
			{Name: "assessment_id", Type: core.FieldInt},
			{Name: "question_number", Type: core.FieldInt},
			{Name: "question_id", Type: core.FieldUUID},
		},
		Check: checkStruct,
	})

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyQuizQuestionContents, Label: "Quiz Question Contents", Order: 70},
		FieldSpecs: []core.FieldSpec{
			{Name: "id", Type: core.FieldUUID},
			{Name: "text", Type: core.FieldText},
			{Name: "type", Type: core.FieldEnum, EnumValues: []string{"multichoice", "multianswer", "numerical", "essay"}},
		},
		Check: checkStruct,
	})

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyQuizMultichoiceAnswers, Label: "Quiz Multichoice Answer", Order: 80},
		FieldSpecs: []core.FieldSpec{
			{Name: "id", Type: core.FieldInt},
			{Name: "question_id", Type: core.FieldUUID},
			{Name: "text", Type: core.FieldText},
			{Name: "grade", Type: core.FieldFloat},
			{Name: "feedback", Type: core.FieldText},
		},
		Check: checkStruct,
	})

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyInputInteractiveBlocks, Label: "Input Interactive Block", Order: 90},
		FieldSpecs: []core.FieldSpec{
			{Name: "id", Type: core.FieldUUID},
			{Name: "content_id", Type: core.FieldUUID},
			{Name: "variant", Type: core.FieldText},
			{Name: "content", Type: core.FieldText},
			{Name: "prompt", Type: core.FieldText},
		},
		Check: checkStruct,
	})

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyProblemSetProblems, Label: "Problem Set Problem", Order: 100},
		FieldSpecs: []core.FieldSpec{
			{Name: "id", Type: core.FieldUUID},
			{Name: "content_id", Type: core.FieldUUID},
			{Name: "variant", Type: core.FieldText},
			{Name: "pset_id", Type: core.FieldUUID},
			{Name: "content", Type: core.FieldText},
			{Name: "problem_type", Type: core.FieldEnum, EnumValues: []string{"input", "dropdown", ProblemTypeMultiselect, "multiplechoice"}},
			{Name: "solution", Type: core.FieldText},
			{Name: "solution_options", Type: core.FieldText},
		},
		Check: checkStruct,
	})

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyCourseContents, Label: "Course Contents", Order: 110},
		FieldSpecs: []core.FieldSpec{
			{Name: "section", Type: core.FieldText},
			{Name: "activity_name", Type: core.FieldText},
			{Name: "lesson_page", Type: core.FieldText},
			{Name: "content_id", Type: core.FieldUUID},
		},
		Check: checkStruct,
	})

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyQuizAttempts, Label: "Quiz Attempt", Order: 120},
		FieldSpecs: []core.FieldSpec{
			{Name: "id", Type: core.FieldInt},
			{Name: "assessment_id", Type: core.FieldInt},
			{Name: "user_uuid", Type: core.FieldUUID},
			{Name: "course_id", Type: core.FieldInt},
			{Name: "attempt_number", Type: core.FieldInt},
			{Name: "grade_percentage", Type: core.FieldFloat},
			{Name: "time_started", Type: core.FieldInt},
			{Name: "time_finished", Type: core.FieldInt},
		},
		Check: checkStruct,
	})

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyQuizAttemptMultichoiceResponses, Label: "Quiz Attempt Multichoice Response", Order: 130},
		FieldSpecs: []core.FieldSpec{
			{Name: "attempt_id", Type: core.FieldInt},
			{Name: "question_number", Type: core.FieldInt},
			{Name: "question_id", Type: core.FieldUUID},
			{Name: "answer_id", Type: core.FieldInt},
		},
		Check: checkStruct,
	})

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyContentLoads, Label: "Content Load", Order: 140},
		FieldSpecs: eventSpecs(
			core.FieldSpec{Name: "content_id", Type: core.FieldUUID},
			core.FieldSpec{Name: "variant", Type: core.FieldText},
		),
		Check: checkStruct,
	})

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyIBProblemAttempts, Label: "Problem Set Problem Attempt", Order: 150},
		FieldSpecs: eventSpecs(
			core.FieldSpec{Name: "content_id", Type: core.FieldUUID},
			core.FieldSpec{Name: "pset_content_id", Type: core.FieldUUID},
			core.FieldSpec{Name: "pset_problem_content_id", Type: core.FieldUUID},
			core.FieldSpec{Name: "variant", Type: core.FieldText},
			core.FieldSpec{Name: "problem_type", Type: core.FieldText},
			core.FieldSpec{Name: "response", Type: core.FieldTextOrList},
			core.FieldSpec{Name: "correct", Type: core.FieldBool},
			core.FieldSpec{Name: "attempt", Type: core.FieldInt},
			core.FieldSpec{Name: "final_attempt", Type: core.FieldBool},
		),
		Check: checkStruct,
	})

	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{Key: KeyIBInputSubmissions, Label: "Input Submission", Order: 160},
		FieldSpecs: eventSpecs(
			core.FieldSpec{Name: "content_id", Type: core.FieldUUID},
			core.FieldSpec{Name: "input_content_id", Type: core.FieldUUID},
			core.FieldSpec{Name: "variant", Type: core.FieldText},
			core.FieldSpec{Name: "response", Type: core.FieldText},
		),
		Check: checkStruct,
	})
}

// eventSpecs prefixes the fields every event table shares.
func eventSpecs(rest ...core.FieldSpec) []core.FieldSpec {
	specs := []core.FieldSpec{
		{Name: "user_uuid", Type: core.FieldUUID},
		{Name: "course_id", Type: core.FieldInt},
		{Name: "impression_id", Type: core.FieldUUID},
		{Name: "timestamp", Type: core.FieldInt},
	}
	return append(specs, rest...)
}
