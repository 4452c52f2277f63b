package core

// validation.go provides row-level validation against an entity contract.
//
// Validation is closed: a row must carry every declared field, no undeclared
// field, and each value must convert to its declared type. Enum fields must
// match one of their literals exactly. Entity rules (ranges, cross-field
// constraints) run afterwards through the definition's CheckFunc.
//
// Rows are validated one at a time so a failure names the offending row.

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Field/column name
	Value   any    // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationResult contains the result of validating a row.
type ValidationResult struct {
	Valid  bool              // True if all validations passed
	Errors []ValidationError // List of validation errors (empty if Valid)
	Row    Row               // Row with every value converted to its canonical type
}

// RowValidator validates rows against an entity definition.
type RowValidator struct {
	def      EntityDefinition
	declared map[string]FieldSpec
}

// NewRowValidator creates a validator for the given entity definition.
func NewRowValidator(def EntityDefinition) *RowValidator {
	declared := make(map[string]FieldSpec, len(def.FieldSpecs))
	for _, spec := range def.FieldSpecs {
		declared[spec.Name] = spec
	}
	return &RowValidator{def: def, declared: declared}
}

// ValidateRow checks a generic row and returns all field errors together with
// the row converted to canonical types (int64, float64, uuid.UUID, bool, string, []string).
func (v *RowValidator) ValidateRow(row Row) ValidationResult {
	result := ValidationResult{Valid: true, Row: make(Row, len(v.def.FieldSpecs))}

	// Undeclared fields, reported in a stable order
	var extra []string
	for name := range row {
		if _, ok := v.declared[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:   name,
			Value:   row[name],
			Message: "undeclared field",
		})
	}

	for _, spec := range v.def.FieldSpecs {
		raw, ok := row[spec.Name]
		if !ok {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   spec.Name,
				Message: "missing required field",
			})
			continue
		}

		val, err := ConvertValue(raw, spec)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   spec.Name,
				Value:   raw,
				Message: err.Error(),
			})
			continue
		}
		result.Row[spec.Name] = val
	}

	return result
}

// Validate checks one record: the field contract on its row view, then the
// entity rules. Returns nil when the record passes.
func (v *RowValidator) Validate(rec Record) []ValidationError {
	result := v.ValidateRow(rec.Row())
	if !result.Valid {
		return result.Errors
	}
	if v.def.Check != nil {
		return v.def.Check(rec)
	}
	return nil
}

// ValidateRecords validates every record of an entity in order and returns a
// *SchemaError for the first failing row.
func ValidateRecords[T Record](def EntityDefinition, records []T) error {
	v := NewRowValidator(def)
	for i, rec := range records {
		if errs := v.Validate(rec); len(errs) > 0 {
			return &SchemaError{Entity: def.Info.Key, Row: i, Errors: errs}
		}
	}
	return nil
}

// Decode validates a raw source row against the entity contract and returns
// the canonical row. The error is a *SchemaError positioned at index.
func Decode(def EntityDefinition, row Row, index int) (Row, error) {
	result := NewRowValidator(def).ValidateRow(row)
	if !result.Valid {
		return nil, &SchemaError{Entity: def.Info.Key, Row: index, Errors: result.Errors}
	}
	return result.Row, nil
}

// ConvertValue converts a raw value to the canonical Go type of its field.
func ConvertValue(raw any, spec FieldSpec) (any, error) {
	switch spec.Type {
	case FieldText:
		return ToText(raw)
	case FieldEnum:
		s, err := ToText(raw)
		if err != nil {
			return nil, err
		}
		for _, ev := range spec.EnumValues {
			if ev == s {
				return s, nil
			}
		}
		return nil, fmt.Errorf("invalid enum: must be one of: %s", strings.Join(spec.EnumValues, ", "))
	case FieldInt:
		return ToInt(raw)
	case FieldFloat:
		return ToFloat(raw)
	case FieldUUID:
		return ToUUID(raw)
	case FieldBool:
		return ToBool(raw)
	case FieldTextOrList:
		return ToTextOrList(raw)
	default:
		return nil, fmt.Errorf("unsupported field type %s", fieldTypeName(spec.Type))
	}
}

// fieldTypeName returns a human-readable name for a field type.
func fieldTypeName(ft FieldType) string {
	switch ft {
	case FieldText:
		return "text"
	case FieldEnum:
		return "enum"
	case FieldInt:
		return "integer"
	case FieldFloat:
		return "float"
	case FieldUUID:
		return "uuid"
	case FieldBool:
		return "bool"
	case FieldTextOrList:
		return "text or list"
	default:
		return "value"
	}
}
