// Package moodle models the per-course LMS export and flattens it into the
// candidate tables the derivation engine joins.
//
// Two documents exist per course: a grade export (grade items, quiz
// definitions and the attempt tree) and a roster (enrolled users with roles
// and the courses they belong to). Course ids come from the object key, not
// from the document.
package moodle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/JonMunkholm/enclave/internal/core"
)

// GradeExport is the grade document of one course.
type GradeExport struct {
	UserGrades []UserGrades  `json:"usergrades"`
	Quizzes    []Quiz        `json:"quizzes"`
	Attempts   AttemptsIndex `json:"attempts"`
}

// UserGrades holds the grade items of one user.
type UserGrades struct {
	UserID     int64       `json:"userid"`
	GradeItems []GradeItem `json:"gradeitems"`
}

// GradeItem is one graded item. PercentageFormatted is "83.00 %" for graded
// items and "-" when no grade exists.
type GradeItem struct {
	PercentageFormatted string  `json:"percentageformatted"`
	ItemName            *string `json:"itemname"`
	DateSubmitted       *int64  `json:"gradedatesubmitted"`
}

// Quiz is a quiz definition. SumGrades is the maximum grade.
type Quiz struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	SumGrades *float64 `json:"sumgrades"`
	Course    int64    `json:"course"`
}

// AttemptsIndex nests attempts by user key, then quiz key.
type AttemptsIndex map[string]map[string]QuizAttempts

// QuizAttempts holds the attempts of one user on one quiz.
type QuizAttempts struct {
	Summaries []AttemptSummary         `json:"summaries"`
	Details   map[string]AttemptDetail `json:"details"`
}

// AttemptSummary is the overview of one quiz attempt. SumGrades is nil
// while the attempt is ungraded.
type AttemptSummary struct {
	UserID     int64    `json:"userid"`
	Quiz       int64    `json:"quiz"`
	ID         int64    `json:"id"`
	Attempt    int64    `json:"attempt"`
	TimeStart  int64    `json:"timestart"`
	TimeFinish int64    `json:"timefinish"`
	SumGrades  *float64 `json:"sumgrades"`
}

// AttemptDetail is the per-question review of one attempt.
type AttemptDetail struct {
	Attempt   AttemptRef        `json:"attempt"`
	Questions []AttemptQuestion `json:"questions"`
}

// AttemptRef identifies the attempt a detail record belongs to.
type AttemptRef struct {
	UserID  int64 `json:"userid"`
	Quiz    int64 `json:"quiz"`
	ID      int64 `json:"id"`
	Attempt int64 `json:"attempt"`
}

// AttemptQuestion carries the answers given for one question slot.
type AttemptQuestion struct {
	Slot   int64    `json:"slot"`
	Answer []string `json:"answer"`
}

// RosterEntry is one enrolled user of a course roster.
type RosterEntry struct {
	ID              int64            `json:"id"`
	Email           string           `json:"email"`
	FirstName       string           `json:"firstname"`
	LastName        string           `json:"lastname"`
	UUID            string           `json:"uuid"`
	Roles           []Role           `json:"roles"`
	EnrolledCourses []EnrolledCourse `json:"enrolledcourses"`
}

// Role is a course role; only the first role of an entry is used.
type Role struct {
	ShortName string `json:"shortname"`
}

// EnrolledCourse names a course a roster entry belongs to.
type EnrolledCourse struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullname"`
}

// Export is the LMS snapshot keyed by course id.
type Export struct {
	Grades  map[int64]*GradeExport
	Rosters map[int64][]RosterEntry
}

// NewExport returns an empty export.
func NewExport() *Export {
	return &Export{
		Grades:  make(map[int64]*GradeExport),
		Rosters: make(map[int64][]RosterEntry),
	}
}

// UnmarshalJSON accepts the empty JSON array the LMS emits in place of an
// empty object.
func (a *AttemptsIndex) UnmarshalJSON(data []byte) error {
	if isEmptyArray(data) {
		*a = AttemptsIndex{}
		return nil
	}
	var m map[string]map[string]QuizAttempts
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*a = m
	return nil
}

// UnmarshalJSON accepts an empty JSON array for details.
func (q *QuizAttempts) UnmarshalJSON(data []byte) error {
	var raw struct {
		Summaries []AttemptSummary `json:"summaries"`
		Details   json.RawMessage  `json:"details"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	q.Summaries = raw.Summaries
	q.Details = nil

	switch {
	case len(raw.Details) == 0 || bytes.Equal(bytes.TrimSpace(raw.Details), []byte("null")):
		// absent; reported as a shape error during flattening
	case isEmptyArray(raw.Details):
		q.Details = map[string]AttemptDetail{}
	default:
		if err := json.Unmarshal(raw.Details, &q.Details); err != nil {
			return err
		}
	}
	return nil
}

func isEmptyArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return false
	}
	return len(bytes.TrimSpace(trimmed[1:len(trimmed)-1])) == 0
}

// DecodeGrades reads a course grade document.
func DecodeGrades(r io.Reader, key string) (*GradeExport, error) {
	var g GradeExport
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, &core.SourceError{Key: key, Op: "decode", Err: err}
	}
	return &g, nil
}

// DecodeRoster reads a course roster document.
func DecodeRoster(r io.Reader, key string) ([]RosterEntry, error) {
	var entries []RosterEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, &core.SourceError{Key: key, Op: "decode", Err: err}
	}
	if entries == nil {
		return nil, &core.SourceError{Key: key, Op: "decode", Err: fmt.Errorf("roster is null")}
	}
	return entries, nil
}
