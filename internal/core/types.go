package core

// FieldType represents the expected value type of an entity field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldInt
	FieldFloat
	FieldUUID
	FieldBool
	FieldTextOrList // a single string, or a list of strings
)

// FieldSpec defines the contract for a single entity field.
type FieldSpec struct {
	Name       string    // Column header name, also the output header
	Type       FieldType // Expected data type
	EnumValues []string  // Valid values for FieldEnum (exact match)
}

// EntityInfo contains descriptive information about an output entity.
type EntityInfo struct {
	Key   string // Unique identifier: "grades"
	Label string // Display name: "Grade"
	File  string // Output file name: "grades.csv"
	Order int    // Position in emit order
}

// Record is a typed entity row that can be viewed as a generic field map.
type Record interface {
	Row() Row
}

// CheckFunc applies entity rules that go beyond the per-field contract
// (value ranges, cross-field constraints). It returns nil when the record passes.
type CheckFunc func(rec Record) []ValidationError

// EntityDefinition contains everything needed to validate and emit an entity.
type EntityDefinition struct {
	Info       EntityInfo
	FieldSpecs []FieldSpec
	Check      CheckFunc
}

// Columns returns the declared field names in declaration order.
func (d EntityDefinition) Columns() []string {
	cols := make([]string, len(d.FieldSpecs))
	for i, spec := range d.FieldSpecs {
		cols[i] = spec.Name
	}
	return cols
}

// Spec returns the field spec with the given name.
func (d EntityDefinition) Spec(name string) (FieldSpec, bool) {
	for _, spec := range d.FieldSpecs {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}
