package form

import (
	"regexp"
	"testing"

	"github.com/Leo890728/course-web/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func studentForm() *Validator {
	return New(
		Field{Name: "name", Label: "Name", Rules: []Rule{{Required: true}, {MinLength: 2, MaxLength: 50}}},
		Field{Name: "email", Label: "Email", Rules: []Rule{{Required: true}, {Pattern: emailPattern, Message: "Email is not a valid address"}}},
		Field{Name: "phone", Rules: []Rule{{MaxLength: 20}}},
	)
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name  string
		value any
		rules []Rule
		want  string
	}{
		{name: "required nil", value: nil, rules: []Rule{{Required: true}}, want: "X is required"},
		{name: "required blank", value: "   ", rules: []Rule{{Required: true}}, want: "X is required"},
		{name: "required zero", value: 0, rules: []Rule{{Required: true}}, want: "X is required"},
		{name: "required ok", value: "a", rules: []Rule{{Required: true}}},
		{name: "min length", value: "a", rules: []Rule{{MinLength: 2}}, want: "X must be at least 2 characters"},
		{name: "min length counts runes", value: "王小", rules: []Rule{{MinLength: 2}}},
		{name: "max length", value: "abcd", rules: []Rule{{MaxLength: 3}}, want: "X must be at most 3 characters"},
		{name: "empty skips length", value: "", rules: []Rule{{MinLength: 2}}},
		{name: "min", value: 0.5, rules: []Rule{{Min: 1}}, want: "X must not be less than 1"},
		{name: "max", value: 11, rules: []Rule{{Max: 10}}, want: "X must not be greater than 10"},
		{name: "zero limits disabled", value: -5, rules: []Rule{{Min: 0, Max: 0}}},
		{name: "min ignores strings", value: "0", rules: []Rule{{Min: 1}}},
		{name: "pattern", value: "nope", rules: []Rule{{Pattern: emailPattern}}, want: "X has an invalid format"},
		{name: "pattern skips empty", value: "", rules: []Rule{{Pattern: emailPattern}}},
		{name: "custom message", value: "", rules: []Rule{{Required: true, Message: "fill me"}}, want: "fill me"},
		{
			name:  "required stops evaluation",
			value: "",
			rules: []Rule{{Required: true, Message: "first"}, {Required: true, Message: "second"}},
			want:  "first",
		},
		{
			name:  "first failure wins",
			value: "a",
			rules: []Rule{{MinLength: 2, Message: "too short"}, {Pattern: emailPattern, Message: "bad"}},
			want:  "too short",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check("X", tt.value, tt.rules))
		})
	}
}

func TestCheckUnwrapsValuer(t *testing.T) {
	rules := []Rule{{Required: true, Message: "pick a teacher"}}

	var none *client.TeacherRef
	assert.Equal(t, "pick a teacher", Check("teacher", none, rules))
	assert.Equal(t, "pick a teacher", Check("teacher", &client.TeacherRef{}, rules))
	assert.Empty(t, Check("teacher", &client.TeacherRef{TeacherID: 3}, rules))
}

func TestValidateForm(t *testing.T) {
	v := studentForm()

	ok := v.ValidateForm(Values{"name": "A", "email": "bad", "phone": ""})
	assert.False(t, ok)
	assert.True(t, v.HasErrors())
	assert.Equal(t, map[string]string{
		"name":  "Name must be at least 2 characters",
		"email": "Email is not a valid address",
	}, v.Errors())

	ok = v.ValidateForm(Values{"name": "Ada", "email": "ada@example.com"})
	assert.True(t, ok)
	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Err())
}

func TestValidateField(t *testing.T) {
	v := studentForm()
	values := Values{"name": "", "email": ""}
	require.False(t, v.ValidateForm(values))

	values["name"] = "Ada"
	assert.True(t, v.ValidateField("name", values))
	assert.Empty(t, v.Error("name"))
	assert.Equal(t, "Email is required", v.Error("email"))

	assert.True(t, v.ValidateField("unknown", values))
}

func TestClearErrors(t *testing.T) {
	v := studentForm()
	v.ValidateForm(Values{})
	require.Len(t, v.Errors(), 2)

	v.ClearFieldError("name")
	assert.Len(t, v.Errors(), 1)

	v.ClearErrors()
	assert.False(t, v.HasErrors())
}

func TestErrorsReturnsCopy(t *testing.T) {
	v := studentForm()
	v.ValidateForm(Values{})
	errs := v.Errors()
	delete(errs, "name")
	assert.NotEmpty(t, v.Error("name"))
}

func TestErrAggregatesInFieldOrder(t *testing.T) {
	v := studentForm()
	v.ValidateForm(Values{"phone": "0123456789012345678901"})

	err := v.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidForm)

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "name", fe.Field)
	assert.Contains(t, err.Error(), "phone: phone must be at most 20 characters")
}
