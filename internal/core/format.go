package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// FormatCell renders a canonical value as a CSV cell.
//
// Floats use the shortest representation that round-trips, with ".0" appended
// to integral values so a float column never looks like an integer column.
// Booleans render as True/False and string lists as JSON arrays.
func FormatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return formatFloat(t)
	case bool:
		if t {
			return "True"
		}
		return "False"
	case uuid.UUID:
		return t.String()
	case []string:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// FormatRow renders a record's row in declared column order.
func FormatRow(def EntityDefinition, row Row) []string {
	out := make([]string, len(def.FieldSpecs))
	for i, spec := range def.FieldSpecs {
		out[i] = FormatCell(row[spec.Name])
	}
	return out
}
