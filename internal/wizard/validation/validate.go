package validation

import (
	"fmt"
	"strings"
	"time"

	"grant-intake/internal/models"
)

// Field is the validation view of a declared wizard field.
type Field struct {
	Key      models.FieldKey
	Label    string
	Type     models.ValueKind
	Required bool
	Rules    []Rule
}

func (f Field) label() string {
	if f.Label != "" {
		return f.Label
	}
	return string(f.Key)
}

// FieldError is the failure reported for one field.
type FieldError struct {
	Field   models.FieldKey `json:"field"`
	Code    Code            `json:"code"`
	Message string          `json:"message"`
}

// FieldErrors maps each failing field to its first failing rule.
type FieldErrors map[models.FieldKey]FieldError

// Messages flattens the errors to field -> message.
func (fe FieldErrors) Messages() map[string]string {
	out := make(map[string]string, len(fe))
	for k, e := range fe {
		out[string(k)] = e.Message
	}
	return out
}

// Validate evaluates every field in declaration order. Fields are checked
// independently so the result always holds the complete error set. A field
// with no rules and no required flag always passes.
func Validate(fields []Field, answers map[models.FieldKey]models.Value) FieldErrors {
	errs := FieldErrors{}
	for _, f := range fields {
		if fe := ValidateField(f, answers); fe != nil {
			errs[f.Key] = *fe
		}
	}
	return errs
}

// ValidateField returns the first failure for one field, or nil.
func ValidateField(f Field, answers map[models.FieldKey]models.Value) *FieldError {
	value, present := answers[f.Key]
	in := input{field: f, value: value, present: present, answers: answers}

	if f.Required && in.blank() {
		return in.fail(CodeMissingRequired, fmt.Sprintf("%s is required", f.label()))
	}
	if !in.blank() {
		if fe := checkType(in); fe != nil {
			return fe
		}
		if f.Required {
			if fe := checkAttachment(in); fe != nil {
				return fe
			}
		}
	}
	for _, r := range f.Rules {
		if fe := r.check(in); fe != nil {
			return fe
		}
	}
	return nil
}

func checkType(in input) *FieldError {
	v := in.value
	switch in.field.Type {
	case "", models.KindText:
		if v.Kind != models.KindText {
			return in.fail(CodeInvalidType, fmt.Sprintf("%s must be text", in.field.label()))
		}
	case models.KindNumber:
		if _, ok := ParseNumber(v); !ok {
			return in.fail(CodeNotNumeric, fmt.Sprintf("%s must be a number", in.field.label()))
		}
	case models.KindBoolean:
		if _, ok := ParseBool(v); !ok {
			return in.fail(CodeInvalidType, fmt.Sprintf("%s must be yes or no", in.field.label()))
		}
	case models.KindDate:
		if v.Kind != models.KindDate && v.Kind != models.KindText {
			return in.fail(CodeInvalidType, fmt.Sprintf("%s must be a date", in.field.label()))
		}
		if _, err := time.Parse(models.DateLayout, strings.TrimSpace(v.Text)); err != nil {
			return in.fail(CodeInvalidFormat, fmt.Sprintf("%s must be a date (YYYY-MM-DD)", in.field.label()))
		}
	case models.KindFile:
		if v.Kind != models.KindFile {
			return in.fail(CodeInvalidType, fmt.Sprintf("%s must be an attachment", in.field.label()))
		}
	}
	return nil
}

// checkAttachment requires a non-blank file answer to have finished
// uploading.
func checkAttachment(in input) *FieldError {
	if in.value.Kind != models.KindFile || in.value.File == nil {
		return nil
	}
	if in.value.File.Status != models.FileUploaded {
		return in.fail(CodeAttachmentIncomplete,
			fmt.Sprintf("%s has not finished uploading (status: %s)", in.field.label(), in.value.File.Status))
	}
	return nil
}
