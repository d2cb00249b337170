package registry

import (
	"grant-intake/internal/models"

	jsonschema "grant-intake/internal/common/validation"
)

const datePattern = `^\d{4}-\d{2}-\d{2}$`

// SubmissionSchema renders the JSON Schema every submission document must
// satisfy. Answers are keyed by field; optional answers may be null or
// absent.
func (r *Registry) SubmissionSchema() jsonschema.JSONSchema {
	answers := make(map[string]jsonschema.Property, len(r.fields))
	var required []string
	for _, s := range r.steps {
		for _, f := range s.Fields {
			answers[string(f.Key)] = answerProperty(f)
			if f.Required {
				required = append(required, string(f.Key))
			}
		}
	}

	closed := false
	zero := 0.0
	minLen := 1
	scoreProps := map[string]jsonschema.Property{}
	for _, k := range []string{"organizationAgeAutoScore", "organizationTypeAutoScore", "operationalStatusAutoScore", "totalScore"} {
		scoreProps[k] = jsonschema.Property{Type: "integer", Minimum: &zero}
	}

	return jsonschema.JSONSchema{
		Schema: "http://json-schema.org/draft-07/schema#",
		Title:  "Grant application submission",
		Type:   "object",
		Properties: map[string]jsonschema.Property{
			"applicationId": {Type: "string", MinLength: &minLen},
			"slug":          {Type: "string", MinLength: &minLen},
			"answers": {
				Type:                 "object",
				Properties:           answers,
				Required:             required,
				AdditionalProperties: &closed,
			},
			"derivedScores": {
				Type:       "object",
				Properties: scoreProps,
				Required:   []string{"organizationAgeAutoScore", "organizationTypeAutoScore", "operationalStatusAutoScore", "totalScore"},
			},
			"submittedAt": {Type: "string", Format: "date-time"},
		},
		Required:             []string{"applicationId", "slug", "answers", "derivedScores", "submittedAt"},
		AdditionalProperties: false,
	}
}

func answerProperty(f FieldDescriptor) jsonschema.Property {
	p := jsonschema.Property{Description: f.Label}

	var base string
	switch f.Type {
	case models.KindNumber:
		base = "number"
		for _, spec := range f.RuleSpecs() {
			if spec.Type != "numericRange" {
				continue
			}
			if v, ok := spec.Params["min"].(float64); ok {
				p.Minimum = &v
			}
			if v, ok := spec.Params["max"].(float64); ok {
				p.Maximum = &v
			}
		}
	case models.KindBoolean:
		base = "boolean"
	case models.KindDate:
		base = "string"
		p.Pattern = datePattern
	case models.KindFile:
		base = "object"
		p.Properties = map[string]jsonschema.Property{
			"id":     {Type: "string"},
			"name":   {Type: "string"},
			"status": {Type: "string", Enum: []interface{}{models.FilePending, models.FileUploaded, models.FileFailed}},
		}
		p.Required = []string{"id", "name", "status"}
		if f.Required {
			p.Properties["status"] = jsonschema.Property{Type: "string", Enum: []interface{}{models.FileUploaded}}
		}
	default:
		base = "string"
		if f.Required {
			minLen := 1
			p.MinLength = &minLen
		}
	}

	if len(f.Options) > 0 {
		for _, o := range f.Options {
			p.Enum = append(p.Enum, o)
		}
		if !f.Required {
			p.Enum = append(p.Enum, nil)
		}
	}

	if f.Required {
		p.Type = base
	} else {
		p.Type = []string{base, "null"}
	}
	return p
}
