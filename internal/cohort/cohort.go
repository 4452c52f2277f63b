// Package cohort restricts a finished dataset to a set of research courses.
//
// The filter runs after derivation and validation and performs no joins
// against raw sources. Course-keyed entities are filtered directly; users are
// kept only while they hold an enrollment in the cohort, and multichoice
// responses only while their attempt survives. The result is checked for
// referential closure before it is returned.
package cohort

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/enclave/internal/core"
	"github.com/JonMunkholm/enclave/internal/core/entities"
)

// ColumnCourseID is the cohort table column listing eligible courses.
const ColumnCourseID = "course_id"

// Set is a set of eligible course ids.
type Set map[int64]struct{}

// NewSet builds a set from course ids.
func NewSet(ids ...int64) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether the course is in the cohort.
func (s Set) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the course ids in ascending order.
func (s Set) IDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s Set) String() string {
	parts := make([]string, 0, len(s))
	for _, id := range s.IDs() {
		parts = append(parts, fmt.Sprint(id))
	}
	return "cohort[" + strings.Join(parts, ",") + "]"
}

// FromTable reads the course_id column of a cohort table.
func FromTable(t *core.Table) (Set, error) {
	if err := t.Require(ColumnCourseID); err != nil {
		return nil, err
	}
	s := make(Set, t.Len())
	for i, row := range t.Rows {
		id, err := core.ToInt(row[ColumnCourseID])
		if err != nil {
			return nil, &core.SchemaError{Entity: "cohort", Row: i, Errors: []core.ValidationError{
				{Field: ColumnCourseID, Value: row[ColumnCourseID], Message: err.Error()},
			}}
		}
		s[id] = struct{}{}
	}
	return s, nil
}

// Removed counts rows removed per entity key.
type Removed map[string]int

// Filter returns a new dataset restricted to the cohort. Static content
// entities are course-agnostic and pass through unchanged. The input dataset
// is not modified.
func Filter(ds *entities.Dataset, cohort Set) (*entities.Dataset, Removed, error) {
	out := *ds
	removed := Removed{}

	out.Enrollments = keep(ds.Enrollments, func(e entities.Enrollment) bool { return cohort.Contains(e.CourseID) })
	out.Grades = keep(ds.Grades, func(g entities.Grade) bool { return cohort.Contains(g.CourseID) })
	out.ContentLoads = keep(ds.ContentLoads, func(e entities.ContentLoad) bool { return cohort.Contains(e.CourseID) })
	out.IBProblemAttempts = keep(ds.IBProblemAttempts, func(e entities.IBProblemAttempt) bool { return cohort.Contains(e.CourseID) })
	out.IBInputSubmissions = keep(ds.IBInputSubmissions, func(e entities.IBInputSubmission) bool { return cohort.Contains(e.CourseID) })
	out.QuizAttempts = keep(ds.QuizAttempts, func(a entities.QuizAttempt) bool { return cohort.Contains(a.CourseID) })
	out.Courses = keep(ds.Courses, func(c entities.Course) bool { return cohort.Contains(c.ID) })

	enrolled := make(map[uuid.UUID]struct{}, len(out.Enrollments))
	for _, e := range out.Enrollments {
		enrolled[e.UserUUID] = struct{}{}
	}
	out.Users = keep(ds.Users, func(u entities.User) bool {
		_, ok := enrolled[u.UUID]
		return ok
	})

	attempts := make(map[int64]struct{}, len(out.QuizAttempts))
	for _, a := range out.QuizAttempts {
		attempts[a.ID] = struct{}{}
	}
	out.QuizAttemptMultichoiceResponses = keep(ds.QuizAttemptMultichoiceResponses, func(r entities.QuizAttemptMultichoiceResponse) bool {
		_, ok := attempts[r.AttemptID]
		return ok
	})

	before, after := ds.Counts(), out.Counts()
	for key, n := range before {
		if d := n - after[key]; d > 0 {
			removed[key] = d
		}
	}

	if err := out.CheckClosure(); err != nil {
		return nil, nil, fmt.Errorf("cohort filter: %w", err)
	}
	return &out, removed, nil
}

// keep returns the elements of in that satisfy pred, preserving order.
func keep[T any](in []T, pred func(T) bool) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}
