// Package validation holds the per-field rule set applied when a wizard
// step is validated.
package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"grant-intake/internal/models"
)

// Code classifies a field failure.
type Code string

const (
	CodeMissingRequired      Code = "MISSING_REQUIRED"
	CodeInvalidFormat        Code = "INVALID_FORMAT"
	CodeNotNumeric           Code = "NOT_NUMERIC"
	CodeOutOfRange           Code = "OUT_OF_RANGE"
	CodeInvalidOption        Code = "INVALID_OPTION"
	CodeInvalidType          Code = "INVALID_TYPE"
	CodeAttachmentIncomplete Code = "ATTACHMENT_INCOMPLETE"
)

// Shared patterns.
var (
	Email = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	Phone = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,17}[0-9]$`)
	URL   = regexp.MustCompile(`^https?://[^\s/$.?#][^\s]*$`)
)

// RuleSpec describes a rule for clients and schema generation.
type RuleSpec struct {
	Type    string                 `json:"type"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// Rule is one predicate over a field value. The set of rules is closed;
// use the constructors in this package.
type Rule interface {
	Spec() RuleSpec
	check(in input) *FieldError
}

type input struct {
	field   Field
	value   models.Value
	present bool
	answers map[models.FieldKey]models.Value
}

func (in input) blank() bool {
	return !in.present || in.value.IsBlank()
}

func (in input) fail(code Code, msg string) *FieldError {
	return &FieldError{Field: in.field.Key, Code: code, Message: msg}
}

// --- pattern ---

type patternRule struct {
	name string
	re   *regexp.Regexp
}

// Pattern requires the text form of the value to match re. name appears in
// the error message, e.g. "must be a valid email address".
func Pattern(name string, re *regexp.Regexp) Rule {
	return patternRule{name: name, re: re}
}

func (r patternRule) Spec() RuleSpec {
	return RuleSpec{
		Type:    "pattern",
		Params:  map[string]interface{}{"pattern": r.re.String()},
		Message: fmt.Sprintf("must be a valid %s", r.name),
	}
}

func (r patternRule) check(in input) *FieldError {
	if in.blank() {
		return nil
	}
	if !r.re.MatchString(strings.TrimSpace(in.value.String())) {
		return in.fail(CodeInvalidFormat, fmt.Sprintf("%s must be a valid %s", in.field.label(), r.name))
	}
	return nil
}

// --- numeric range ---

type rangeRule struct {
	min, max float64
}

// NumericRange bounds a numeric value inclusively. Use math.Inf for an
// open end.
func NumericRange(min, max float64) Rule {
	return rangeRule{min: min, max: max}
}

// AtLeast is NumericRange(min, +Inf).
func AtLeast(min float64) Rule {
	return rangeRule{min: min, max: math.Inf(1)}
}

func (r rangeRule) Spec() RuleSpec {
	params := map[string]interface{}{}
	if !math.IsInf(r.min, -1) {
		params["min"] = r.min
	}
	if !math.IsInf(r.max, 1) {
		params["max"] = r.max
	}
	return RuleSpec{Type: "numericRange", Params: params}
}

func (r rangeRule) check(in input) *FieldError {
	if in.blank() {
		return nil
	}
	n, ok := ParseNumber(in.value)
	if !ok {
		return in.fail(CodeNotNumeric, fmt.Sprintf("%s must be a number", in.field.label()))
	}
	if n < r.min || n > r.max {
		return in.fail(CodeOutOfRange, fmt.Sprintf("%s must be %s", in.field.label(), r.describe()))
	}
	return nil
}

func (r rangeRule) describe() string {
	lo, hi := formatNumber(r.min), formatNumber(r.max)
	switch {
	case math.IsInf(r.max, 1):
		return "at least " + lo
	case math.IsInf(r.min, -1):
		return "at most " + hi
	default:
		return fmt.Sprintf("between %s and %s", lo, hi)
	}
}

// --- one of ---

type oneOfRule struct {
	options []string
}

// OneOf restricts the value to an enumerated option set.
func OneOf(options ...string) Rule {
	return oneOfRule{options: options}
}

func (r oneOfRule) Spec() RuleSpec {
	return RuleSpec{Type: "oneOf", Params: map[string]interface{}{"options": r.options}}
}

func (r oneOfRule) check(in input) *FieldError {
	if in.blank() {
		return nil
	}
	s := in.value.String()
	for _, opt := range r.options {
		if s == opt {
			return nil
		}
	}
	return in.fail(CodeInvalidOption, fmt.Sprintf("%s must be one of: %s", in.field.label(), strings.Join(r.options, ", ")))
}

// --- conditionally required ---

type conditionalRule struct {
	sibling models.FieldKey
	values  []string
}

// ConditionallyRequired makes the field required while sibling holds one
// of values.
func ConditionallyRequired(sibling models.FieldKey, values ...string) Rule {
	return conditionalRule{sibling: sibling, values: values}
}

func (r conditionalRule) Spec() RuleSpec {
	return RuleSpec{
		Type:   "conditionallyRequired",
		Params: map[string]interface{}{"field": string(r.sibling), "values": r.values},
	}
}

func (r conditionalRule) check(in input) *FieldError {
	sibling, ok := in.answers[r.sibling]
	if !ok || sibling.IsBlank() {
		return nil
	}
	current := sibling.String()
	if b, ok := ParseBool(sibling); ok {
		current = strconv.FormatBool(b)
	}
	matched := false
	for _, v := range r.values {
		if current == v {
			matched = true
			break
		}
	}
	if !matched {
		return nil
	}
	if in.blank() {
		return in.fail(CodeMissingRequired,
			fmt.Sprintf("%s is required when %s is %s", in.field.label(), r.sibling, current))
	}
	return checkAttachment(in)
}

// ParseNumber accepts number values and numeric text, ignoring thousands
// separators and surrounding spaces.
func ParseNumber(v models.Value) (float64, bool) {
	switch v.Kind {
	case models.KindNumber:
		return v.Number, !math.IsNaN(v.Number) && !math.IsInf(v.Number, 0)
	case models.KindText:
		s := strings.ReplaceAll(strings.TrimSpace(v.Text), ",", "")
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// ParseBool accepts boolean values and "true"/"false" text in any case.
func ParseBool(v models.Value) (bool, bool) {
	switch v.Kind {
	case models.KindBoolean:
		return v.Bool, true
	case models.KindText:
		switch strings.ToLower(strings.TrimSpace(v.Text)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
