package entities

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/enclave/internal/core"
)

// Tags reported by the custom rules.
const (
	tagPercentage   = "percentage"
	tagResponseList = "response_list"
	tagResponseText = "response_text"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their column name rather than the Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("csv"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation(tagPercentage, validPercentage); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tagPercentage, err))
	}
	v.RegisterStructValidation(validResponseShape, IBProblemAttempt{})

	return v
}

// validPercentage accepts values in [0, 100]. NaN fails every comparison.
func validPercentage(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return !math.IsNaN(f) && f >= 0 && f <= 100
}

// validResponseShape requires a string list for multiselect problems and a
// single string for every other problem type.
func validResponseShape(sl validator.StructLevel) {
	a := sl.Current().Interface().(IBProblemAttempt)

	_, isText := a.Response.(string)
	_, isList := a.Response.([]string)

	if a.ProblemType == ProblemTypeMultiselect {
		if !isList {
			sl.ReportError(a.Response, "response", "Response", tagResponseList, "")
		}
		return
	}
	if !isText {
		sl.ReportError(a.Response, "response", "Response", tagResponseText, "")
	}
}

// checkStruct runs the validate tags of a record and converts the result to
// field errors.
func checkStruct(rec core.Record) []core.ValidationError {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []core.ValidationError{{Message: err.Error()}}
	}

	out := make([]core.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, core.ValidationError{
			Field:   fe.Field(),
			Value:   fe.Value(),
			Message: ruleMessage(fe),
		})
	}
	return out
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case tagPercentage:
		f, _ := fe.Value().(float64)
		if math.IsNaN(f) {
			return "Grade value is nan"
		}
		return fmt.Sprintf("Grade value %v is out of expected range", f)
	case tagResponseList:
		return "Response must be a list"
	case tagResponseText:
		return "Response must be a string"
	case "oneof":
		return "invalid enum: must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s rule", fe.Tag())
	}
}
