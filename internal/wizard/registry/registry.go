// Package registry declares the wizard's steps and fields.
package registry

import (
	"fmt"

	"grant-intake/internal/models"
	"grant-intake/internal/wizard/validation"
)

// FieldDescriptor declares one answer the wizard collects.
type FieldDescriptor struct {
	Key      models.FieldKey   `json:"key"`
	Label    string            `json:"label"`
	Type     models.ValueKind  `json:"type"`
	Required bool              `json:"required"`
	Options  []string          `json:"options,omitempty"`
	Rules    []validation.Rule `json:"-"`
}

// ValidationField is the validation view of the descriptor.
func (f FieldDescriptor) ValidationField() validation.Field {
	return validation.Field{
		Key:      f.Key,
		Label:    f.Label,
		Type:     f.Type,
		Required: f.Required,
		Rules:    f.Rules,
	}
}

// RuleSpecs describes the field's rules.
func (f FieldDescriptor) RuleSpecs() []validation.RuleSpec {
	specs := make([]validation.RuleSpec, 0, len(f.Rules))
	for _, r := range f.Rules {
		specs = append(specs, r.Spec())
	}
	return specs
}

// StepDescriptor is one screen of the wizard.
type StepDescriptor struct {
	Number int               `json:"number"`
	Key    string            `json:"key"`
	Title  string            `json:"title"`
	Fields []FieldDescriptor `json:"fields"`
}

// HasRequired reports whether the step declares any field that can be
// required, unconditionally or through a sibling answer.
func (s StepDescriptor) HasRequired() bool {
	for _, f := range s.Fields {
		if f.Required {
			return true
		}
		for _, r := range f.Rules {
			if r.Spec().Type == "conditionallyRequired" {
				return true
			}
		}
	}
	return false
}

// ValidationFields lists the step's fields in declaration order.
func (s StepDescriptor) ValidationFields() []validation.Field {
	out := make([]validation.Field, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.ValidationField()
	}
	return out
}

// Registry is an immutable, ordered set of steps.
type Registry struct {
	steps  []StepDescriptor
	fields map[models.FieldKey]FieldDescriptor
	stepOf map[models.FieldKey]int
}

// New checks the declarations: steps numbered 1..N in order, field keys
// unique across steps, and conditional rules referring to declared fields.
func New(steps ...StepDescriptor) (*Registry, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("registry needs at least one step")
	}

	r := &Registry{
		steps:  steps,
		fields: make(map[models.FieldKey]FieldDescriptor),
		stepOf: make(map[models.FieldKey]int),
	}
	for i, s := range steps {
		if s.Number != i+1 {
			return nil, fmt.Errorf("step %q has number %d, want %d", s.Key, s.Number, i+1)
		}
		for _, f := range s.Fields {
			if f.Key == "" {
				return nil, fmt.Errorf("step %d declares a field without a key", s.Number)
			}
			if prev, dup := r.stepOf[f.Key]; dup {
				return nil, fmt.Errorf("field %q declared in steps %d and %d", f.Key, prev, s.Number)
			}
			r.fields[f.Key] = f
			r.stepOf[f.Key] = s.Number
		}
	}

	for key, f := range r.fields {
		for _, rule := range f.Rules {
			spec := rule.Spec()
			if spec.Type != "conditionallyRequired" {
				continue
			}
			sibling, _ := spec.Params["field"].(string)
			if _, ok := r.fields[models.FieldKey(sibling)]; !ok {
				return nil, fmt.Errorf("field %q depends on undeclared field %q", key, sibling)
			}
		}
	}
	return r, nil
}

// MustNew is New for package-level declarations.
func MustNew(steps ...StepDescriptor) *Registry {
	r, err := New(steps...)
	if err != nil {
		panic(err)
	}
	return r
}

// Len is the number of steps, N.
func (r *Registry) Len() int {
	return len(r.steps)
}

// Step returns step n (1-based).
func (r *Registry) Step(n int) (StepDescriptor, bool) {
	if n < 1 || n > len(r.steps) {
		return StepDescriptor{}, false
	}
	return r.steps[n-1], true
}

// Steps returns all steps in order.
func (r *Registry) Steps() []StepDescriptor {
	out := make([]StepDescriptor, len(r.steps))
	copy(out, r.steps)
	return out
}

// Field looks up a declared field.
func (r *Registry) Field(key models.FieldKey) (FieldDescriptor, bool) {
	f, ok := r.fields[key]
	return f, ok
}

// StepOf returns the step declaring key, or 0.
func (r *Registry) StepOf(key models.FieldKey) int {
	return r.stepOf[key]
}
