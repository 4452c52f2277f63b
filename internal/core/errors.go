package core

// errors.go defines the typed failures raised by the pipeline.
//
// Each failure type matches one sentinel through errors.Is so callers can
// classify a failure without inspecting its message:
//
//	ErrShape     - a raw source lacks an expected structural key or column
//	ErrSchema    - a derived row breaks its entity contract
//	ErrIdentity  - a required user/course/assessment reference cannot be resolved
//	ErrIntegrity - a dangling reference survived derivation or filtering
//	ErrSource    - a raw object could not be fetched or decoded

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrShape     = errors.New("shape error")
	ErrSchema    = errors.New("schema violation")
	ErrIdentity  = errors.New("identity join failure")
	ErrIntegrity = errors.New("referential integrity violation")
	ErrSource    = errors.New("source error")
)

// ShapeError reports a raw source missing an expected structural key.
type ShapeError struct {
	Source string // Logical source name or object key
	Key    string // Missing key or column
	Detail string
}

func (e *ShapeError) Error() string {
	var b strings.Builder
	b.WriteString("shape error")
	if e.Source != "" {
		b.WriteString(" in ")
		b.WriteString(e.Source)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, ": %q", e.Key)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ShapeError) Is(target error) bool { return target == ErrShape }

// SchemaError reports the first row of an entity that failed validation.
type SchemaError struct {
	Entity string
	Row    int // Zero-based position within the entity table
	Errors []ValidationError
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		if ve.Value != nil {
			parts[i] = fmt.Sprintf("%s (value %v)", ve.Error(), ve.Value)
		} else {
			parts[i] = ve.Error()
		}
	}
	return fmt.Sprintf("schema violation in %s row %d: %s", e.Entity, e.Row, strings.Join(parts, "; "))
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// IdentityError reports a required reference that resolved to nothing.
type IdentityError struct {
	Entity string // Entity being constructed
	Ref    string // Reference kind: "user_id", "course_id", "assessment_name"
	Value  any
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity join failure building %s: unresolved %s %v", e.Entity, e.Ref, e.Value)
}

func (e *IdentityError) Is(target error) bool { return target == ErrIdentity }

// IntegrityError reports a dangling reference in finished output.
type IntegrityError struct {
	Entity string
	Field  string
	Value  any
	Target string // Entity the reference should resolve against
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("referential integrity violation: %s.%s=%v has no row in %s", e.Entity, e.Field, e.Value, e.Target)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// SourceError reports a raw object that could not be fetched or decoded.
type SourceError struct {
	Key string
	Op  string // "fetch", "list" or "decode"
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source error: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func (e *SourceError) Is(target error) bool { return target == ErrSource }
