// Package form validates screen forms against per-field rule lists.
//
// Each field is checked rule by rule and the first failing rule gives the
// field's message. A failing Required rule stops evaluation of the field.
package form

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
)

// ErrInvalidForm is joined with the field errors returned by Validator.Err.
var ErrInvalidForm = errors.New("form has invalid fields")

// Email is a loose address check: something@something.tld.
var Email = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Valuer is implemented by nested values that validate as a single scalar,
// e.g. a course's teacher validates as its teacher id.
type Valuer interface {
	FormValue() any
}

// Rule is one check on a field. Zero-valued limits are disabled, so Min and
// Max cannot express a bound of zero.
type Rule struct {
	Required  bool
	MinLength int
	MaxLength int
	Min       float64
	Max       float64
	Pattern   *regexp.Regexp
	// Message replaces the default message of whichever check fails.
	Message string
}

// Field names a form field and its rules. Label is used in default messages
// and falls back to Name.
type Field struct {
	Name  string
	Label string
	Rules []Rule
}

func (f Field) label() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Values holds the current form values by field name.
type Values map[string]any

// FieldError is the validation failure of one field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validator keeps the rules of a form and the errors of the last validation.
type Validator struct {
	fields []Field
	errors map[string]string
}

// New returns a validator for fields. Field order is kept in Err.
func New(fields ...Field) *Validator {
	return &Validator{fields: fields, errors: map[string]string{}}
}

// ValidateForm checks every field and replaces the stored errors. It returns
// true when the form is valid.
func (v *Validator) ValidateForm(values Values) bool {
	errs := map[string]string{}
	for _, f := range v.fields {
		if msg := Check(f.label(), values[f.Name], f.Rules); msg != "" {
			errs[f.Name] = msg
		}
	}
	v.errors = errs
	return len(errs) == 0
}

// ValidateField re-checks a single field, leaving other errors untouched.
// Unknown names are ignored.
func (v *Validator) ValidateField(name string, values Values) bool {
	f, ok := v.field(name)
	if !ok {
		return true
	}
	if msg := Check(f.label(), values[name], f.Rules); msg != "" {
		v.errors[name] = msg
		return false
	}
	delete(v.errors, name)
	return true
}

func (v *Validator) field(name string) (Field, bool) {
	for _, f := range v.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ClearErrors drops all stored errors.
func (v *Validator) ClearErrors() {
	v.errors = map[string]string{}
}

// ClearFieldError drops the stored error of one field.
func (v *Validator) ClearFieldError(name string) {
	delete(v.errors, name)
}

// HasErrors reports whether any field currently has an error.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Error returns the stored message for a field, or "".
func (v *Validator) Error(name string) string {
	return v.errors[name]
}

// Errors returns a copy of the stored errors keyed by field name.
func (v *Validator) Errors() map[string]string {
	out := make(map[string]string, len(v.errors))
	for k, msg := range v.errors {
		out[k] = msg
	}
	return out
}

// Err returns the stored errors as one error, in field order, or nil.
func (v *Validator) Err() error {
	var err error
	for _, f := range v.fields {
		if msg, ok := v.errors[f.Name]; ok {
			err = multierror.Append(err, &FieldError{Field: f.Name, Message: msg})
		}
	}
	if err != nil {
		return errors.Join(ErrInvalidForm, err)
	}
	return nil
}

// Check runs rules against value and returns the first failure message, or
// "" when value passes.
func Check(label string, value any, rules []Rule) string {
	if vl, ok := value.(Valuer); ok {
		value = vl.FormValue()
	}

	for _, r := range rules {
		if r.Required && isEmpty(value) {
			return r.msg("%s is required", label)
		}

		s, isString := value.(string)
		if isString && s != "" {
			n := utf8.RuneCountInString(s)
			if r.MinLength > 0 && n < r.MinLength {
				return r.msg("%s must be at least %d characters", label, r.MinLength)
			}
			if r.MaxLength > 0 && n > r.MaxLength {
				return r.msg("%s must be at most %d characters", label, r.MaxLength)
			}
			if r.Pattern != nil && !r.Pattern.MatchString(s) {
				return r.msg("%s has an invalid format", label)
			}
		}

		if num, ok := number(value); ok {
			if r.Min != 0 && num < r.Min {
				return r.msg("%s must not be less than %v", label, r.Min)
			}
			if r.Max != 0 && num > r.Max {
				return r.msg("%s must not be greater than %v", label, r.Max)
			}
		}
	}
	return ""
}

func (r Rule) msg(format string, args ...any) string {
	if r.Message != "" {
		return r.Message
	}
	return fmt.Sprintf(format, args...)
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case bool:
		return !v
	}
	if n, ok := number(value); ok {
		return n == 0
	}
	return false
}

func number(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
