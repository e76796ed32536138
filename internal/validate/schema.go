// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package validate

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/toeirei/shipmaster/internal/config"
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their config key, not the Go field name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// schema decodes raw into out and runs the struct tags. Decoding keeps going
// past type errors, so a field that does not decode is reported at its own
// path and the remaining fields are still checked. It returns false only when
// raw is not an object, in which case out must not be inspected further.
func schema(raw any, out any) ([]Problem, bool) {
	if raw == nil {
		return []Problem{{Message: "must be an object"}}, false
	}
	if reflect.ValueOf(raw).Kind() != reflect.Map {
		return []Problem{{Message: fmt.Sprintf("must be an object, got %s", typeName(raw))}}, false
	}

	unused, err := config.Decode(raw, out)
	problems := decodeProblems(err)
	for _, key := range unused {
		problems = append(problems, Problem{Message: "is not allowed", Path: key})
	}
	for _, p := range structProblems(out) {
		// A field that failed to decode is left zero; its tag checks would
		// only repeat the decode problem.
		if !reported(problems, p.Path) {
			problems = append(problems, p)
		}
	}
	return problems, true
}

func structProblems(s any) []Problem {
	err := structValidator.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []Problem{{Message: err.Error()}}
	}
	problems := make([]Problem, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, Problem{
			Message: fieldMessage(fe),
			Path:    fieldPath(fe.Namespace()),
		})
	}
	return problems
}

// fieldPath drops the struct type name that leads every namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "url":
		return "must be a valid url"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// decodeProblems turns a mapstructure error into one problem per field,
// located at the field's path. The summary line mapstructure puts in front of
// joined errors is not a problem of its own and is dropped.
func decodeProblems(err error) []Problem {
	var problems []Problem
	var walk func(error)
	walk = func(err error) {
		if de, ok := err.(*mapstructure.DecodeError); ok {
			msg := de.Error()
			if inner := de.Unwrap(); inner != nil {
				msg = inner.Error()
			}
			problems = append(problems, Problem{Message: msg, Path: fieldName(de.Name())})
			return
		}
		switch e := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(e.Unwrap())
		default:
			problems = append(problems, Problem{Message: err.Error()})
		}
	}
	if err != nil {
		walk(err)
	}
	sort.SliceStable(problems, func(i, j int) bool { return problems[i].Path < problems[j].Path })
	return problems
}

// fieldName drops map indexes mapstructure cannot print, such as the
// "[<interface {} Value>]" of a non-string key.
func fieldName(name string) string {
	if i := strings.Index(name, "[<"); i >= 0 {
		return name[:i]
	}
	return name
}

// reported tells whether problems already cover path or one of its parents.
func reported(problems []Problem, path string) bool {
	for _, p := range problems {
		if p.Path == "" {
			continue
		}
		if path == p.Path || strings.HasPrefix(path, p.Path+".") || strings.HasPrefix(path, p.Path+"[") {
			return true
		}
	}
	return false
}

// touched tells whether any problem sits at path, above it or below it.
func touched(problems []Problem, path string) bool {
	for _, p := range problems {
		if p.Path != "" && (reported([]Problem{p}, path) || reported([]Problem{{Path: path}}, p.Path)) {
			return true
		}
	}
	return false
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case []any:
		return "list"
	case bool:
		return "boolean"
	case int, int64, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
