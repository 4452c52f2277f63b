package core

// convert.go provides type conversion for raw source values.
//
// Sources disagree on representation: CSV cells are always strings, JSON
// numbers decode as json.Number or float64, and flattened LMS payloads carry
// native Go values. Each To* function accepts all of these and returns the
// canonical type, or an error describing why the value does not fit.
// Nothing is ever defaulted: a nil value is an error for every type.

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ToText returns a string value. Only strings are accepted.
func ToText(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case nil:
		return "", fmt.Errorf("invalid text: value is null")
	default:
		return "", fmt.Errorf("invalid text: got %T", v)
	}
}

// ToInt converts integers, integral floats and numeric strings to int64.
func ToInt(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t != math.Trunc(t) {
			return 0, fmt.Errorf("invalid integer: %v", t)
		}
		return int64(t), nil
	case json.Number:
		return parseIntString(t.String())
	case string:
		return parseIntString(t)
	case nil:
		return 0, fmt.Errorf("invalid integer: value is null")
	default:
		return 0, fmt.Errorf("invalid integer: got %T", v)
	}
}

func parseIntString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	// "3.0" is how float-typed CSV columns render integral values
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid integer: %q", s)
	}
	return int64(f), nil
}

// ToFloat converts numbers and numeric strings to float64.
// NaN passes conversion; range rules decide whether it is acceptable.
func ToFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return parseFloatString(t.String())
	case string:
		return parseFloatString(t)
	case nil:
		return 0, fmt.Errorf("invalid number: value is null")
	default:
		return 0, fmt.Errorf("invalid number: got %T", v)
	}
}

func parseFloatString(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %q", s)
	}
	return f, nil
}

// ToUUID converts a uuid.UUID or its string form.
func ToUUID(v any) (uuid.UUID, error) {
	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case string:
		u, err := uuid.Parse(strings.TrimSpace(t))
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid uuid: %q", t)
		}
		return u, nil
	case nil:
		return uuid.Nil, fmt.Errorf("invalid uuid: value is null")
	default:
		return uuid.Nil, fmt.Errorf("invalid uuid: got %T", v)
	}
}

// ToBool converts booleans and their common string spellings.
// Accepts: true/false, t/f, yes/no, y/n, 1/0 (case-insensitive).
func ToBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.TrimSpace(strings.ToLower(t)) {
		case "true", "t", "yes", "y", "1":
			return true, nil
		case "false", "f", "no", "n", "0":
			return false, nil
		}
		return false, fmt.Errorf("invalid bool: %q", t)
	case nil:
		return false, fmt.Errorf("invalid bool: value is null")
	default:
		return false, fmt.Errorf("invalid bool: got %T", v)
	}
}

// ToTextOrList accepts a string or a list of strings and returns either a
// string or a []string.
func ToTextOrList(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid list: item %d is %T, not text", i, item)
			}
			out[i] = s
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("invalid text or list: value is null")
	default:
		return nil, fmt.Errorf("invalid text or list: got %T", v)
	}
}

// UngradedMarker is the percentage string the LMS emits for items with no grade.
const UngradedMarker = "-"

// ParsePercentage converts an LMS percentage string such as "83%" or
// "83.00 %" to a number. The ungraded marker returns graded=false.
// Any other non-numeric string is an error.
func ParsePercentage(s string) (value float64, graded bool, err error) {
	s = strings.TrimSpace(s)
	if s == UngradedMarker {
		return 0, false, nil
	}
	s = strings.TrimSpace(strings.Trim(s, "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, true, fmt.Errorf("invalid number: %q is not a percentage", s)
	}
	return f, true, nil
}
