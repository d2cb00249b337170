// schema-export writes the wizard's field registry and the submission JSON
// Schema to disk, and checks submission documents against that schema.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"grant-intake/internal/models"
	"grant-intake/internal/wizard"
	"grant-intake/internal/wizard/registry"
	"grant-intake/internal/wizard/scoring"

	jsonschema "grant-intake/internal/common/validation"
)

const (
	registryFile = "registry.json"
	schemaFile   = "submission.schema.json"
)

func main() {
	if err := rootCmd(registry.Default()).Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func rootCmd(reg *registry.Registry) *cobra.Command {
	root := &cobra.Command{
		Use:           "schema-export",
		Short:         "Export and check the grant application schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(exportCmd(reg))
	root.AddCommand(validateCmd(reg))
	root.AddCommand(exampleCmd(reg))
	root.AddCommand(fieldsCmd(reg))
	return root
}

func exportCmd(reg *registry.Registry) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the field registry and submission JSON Schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := export(reg, outDir); err != nil {
				return fmt.Errorf("exporting schema: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s and %s to %s\n", registryFile, schemaFile, outDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "configs/schema", "directory to write registry.json and submission.schema.json to")
	return cmd
}

func validateCmd(reg *registry.Registry) *cobra.Command {
	var docPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a submission document against the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			violations, err := validateFile(reg, docPath)
			if err != nil {
				return fmt.Errorf("validating document: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(violations) > 0 {
				fmt.Fprintln(out, "Submission document is invalid:")
				for _, v := range violations {
					fmt.Fprintf(out, "  - %s\n", v)
				}
				return fmt.Errorf("%d schema violations", len(violations))
			}
			fmt.Fprintln(out, "Submission document is valid.")
			return nil
		},
	}
	cmd.Flags().StringVar(&docPath, "doc", "", "path to a submission document (JSON)")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func exampleCmd(reg *registry.Registry) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "example",
		Short: "Print a valid submission document built from example answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := json.MarshalIndent(exampleDocument(reg, time.Now().UTC()), "", "  ")
			if err != nil {
				return fmt.Errorf("rendering example: %w", err)
			}
			if outPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return nil
			}
			if err := os.WriteFile(outPath, raw, 0o644); err != nil {
				return fmt.Errorf("writing example: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote example document to %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "file to write the example document to (stdout when empty)")
	return cmd
}

func fieldsCmd(reg *registry.Registry) *cobra.Command {
	var step int
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "List the wizard's steps and fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			if step != 0 {
				if _, ok := reg.Step(step); !ok {
					return fmt.Errorf("step %d is outside [1, %d]", step, reg.Len())
				}
			}
			renderFields(cmd.OutOrStdout(), reg, step)
			return nil
		},
	}
	cmd.Flags().IntVar(&step, "step", 0, "only list this step")
	return cmd
}

func renderFields(w io.Writer, reg *registry.Registry, only int) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Step", "Title", "Field", "Type", "Required", "Rules"})
	for _, s := range reg.Steps() {
		if only != 0 && s.Number != only {
			continue
		}
		for _, f := range s.Fields {
			rules := make([]string, 0, len(f.Rules))
			for _, spec := range f.RuleSpecs() {
				rules = append(rules, spec.Type)
			}
			tw.AppendRow(table.Row{s.Number, s.Title, f.Key, f.Type, f.Required, strings.Join(rules, ", ")})
		}
	}
	tw.Render()
}

func export(reg *registry.Registry, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, registryFile), map[string]interface{}{
		"totalSteps": reg.Len(),
		"steps":      reg.Steps(),
	}); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, schemaFile), reg.SubmissionSchema())
}

func validateFile(reg *registry.Registry, path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	result, err := jsonschema.ValidateJSON(reg.SubmissionSchema(), raw)
	if err != nil {
		return nil, err
	}
	if result.Valid {
		return nil, nil
	}
	return result.GetErrorMessages(), nil
}

// exampleDocument builds the submission document of the registry's
// example answers.
func exampleDocument(reg *registry.Registry, at time.Time) models.SubmissionDocument {
	answers := registry.ExampleAnswers()
	id := uuid.New().String()
	draft := &models.ApplicationDraft{
		ID:            id,
		Slug:          wizard.Slug(answers[registry.OrganizationName].String(), id),
		Answers:       answers,
		DerivedScores: scoring.Calculate(answers),
		CurrentStep:   reg.Len(),
		Status:        models.StatusSubmitted,
	}
	return models.NewSubmissionDocument(draft, at.Truncate(time.Second))
}

func writeJSON(path string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	return os.WriteFile(path, append(raw, '\n'), 0o644)
}
