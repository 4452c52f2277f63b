package core

// error_messages.go maps pipeline failures to operator-facing messages with
// codes for support reference.
//
// # Shape Errors (SHP001)
//
//	SHP001 - A raw source is missing an expected key or column
//	         Action: Check the export job that produced the source
//
// # Validation Errors (VAL001-VAL006)
//
//	VAL001 - Undeclared field present in an entity row
//	VAL002 - Invalid number (includes malformed grade percentages)
//	VAL003 - Required field missing from an entity row
//	VAL004 - Value outside the allowed range, or NaN
//	VAL005 - Value is not one of the allowed literals
//	VAL006 - Any other entity contract violation
//
// # Join Errors (JOIN001)
//
//	JOIN001 - A user, course or assessment reference could not be resolved
//
// # Integrity Errors (INT001)
//
//	INT001 - Output contains a dangling reference (programming contract violation)
//
// # Source Errors (SRC001-SRC002)
//
//	SRC001 - Raw object could not be listed or fetched
//	SRC002 - Raw object could not be decoded
//
// # Default Error (ERR000)
//
// Classification uses errors.Is against the typed sentinels first, then the
// message patterns within that class. The first matching pattern wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides operator-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match within a class and its message.
type errorPattern struct {
	class   error
	pattern string // empty matches any error of the class
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		class: ErrShape,
		msg: UserMessage{
			Message: "A raw source is missing an expected key or column",
			Action:  "Check the export job that produced the source",
			Code:    "SHP001",
		},
	},
	{
		class:   ErrSchema,
		pattern: "undeclared field",
		msg: UserMessage{
			Message: "An entity row carries a field its schema does not declare",
			Action:  "Remove the extra column from the source table",
			Code:    "VAL001",
		},
	},
	{
		class:   ErrSchema,
		pattern: "invalid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Check percentage and score columns in the source",
			Code:    "VAL002",
		},
	},
	{
		class:   ErrSchema,
		pattern: "missing required field",
		msg: UserMessage{
			Message: "Required field is missing",
			Action:  "Ensure every declared column is present in the source",
			Code:    "VAL003",
		},
	},
	{
		class:   ErrSchema,
		pattern: "out of expected range",
		msg: UserMessage{
			Message: "Value outside the allowed range",
			Action:  "Check grade values and maximum grades in the source",
			Code:    "VAL004",
		},
	},
	{
		class:   ErrSchema,
		pattern: "is nan",
		msg: UserMessage{
			Message: "Value is not a number",
			Action:  "Check grade values and maximum grades in the source",
			Code:    "VAL004",
		},
	},
	{
		class:   ErrSchema,
		pattern: "invalid enum",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Check the allowed values for this field",
			Code:    "VAL005",
		},
	},
	{
		class: ErrSchema,
		msg: UserMessage{
			Message: "An entity row violates its schema",
			Action:  "Review the reported row and field",
			Code:    "VAL006",
		},
	},
	{
		class: ErrIdentity,
		msg: UserMessage{
			Message: "A required reference could not be resolved",
			Action:  "Ensure every graded or enrolled user appears in a course roster",
			Code:    "JOIN001",
		},
	},
	{
		class: ErrIntegrity,
		msg: UserMessage{
			Message: "Output contains a dangling reference",
			Action:  "Report this run; it indicates a defect in the pipeline",
			Code:    "INT001",
		},
	},
	{
		class:   ErrSource,
		pattern: "decode",
		msg: UserMessage{
			Message: "A raw object could not be decoded",
			Action:  "Check the object's format and encoding",
			Code:    "SRC002",
		},
	},
	{
		class: ErrSource,
		msg: UserMessage{
			Message: "A raw object could not be fetched",
			Action:  "Check bucket permissions and object keys, then rerun",
			Code:    "SRC001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the run log for the original error",
	Code:    "ERR000",
}

// MapError converts a pipeline failure to an operator-facing message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if !errors.Is(err, ep.class) {
			continue
		}
		if ep.pattern == "" || strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
