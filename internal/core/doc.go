// Package core provides the schema machinery shared by every stage of the
// normalization pipeline.
//
// # Entity Registry
//
// Output entities are registered at init time using [Register]. Each
// [EntityDefinition] carries a closed field contract and optional entity rules:
//
//	core.Register(core.EntityDefinition{
//	    Info: core.EntityInfo{Key: "courses", Label: "Course", Order: 20},
//	    FieldSpecs: []core.FieldSpec{
//	        {Name: "id", Type: core.FieldInt},
//	        {Name: "name", Type: core.FieldText},
//	    },
//	})
//
// # Validation
//
// [RowValidator] checks one row at a time: every declared field present, no
// undeclared field, every value convertible to its declared type, enum
// literals matched exactly. [ValidateRecords] stops at the first failing row
// and returns a [SchemaError] that names the entity, the row and the values.
//
// # Tables
//
// Raw sources and flattened candidate tables travel as [Table] values that
// always carry their column set. [Tables.Lookup] and [Table.Require] turn a
// missing source or column into a [ShapeError].
//
// # Error Handling
//
// Every failure is typed and matches one sentinel ([ErrShape], [ErrSchema],
// [ErrIdentity], [ErrIntegrity], [ErrSource]). [MapError] converts a failure
// to an operator message with a support code.
package core
