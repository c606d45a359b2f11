package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"landrace-threat/internal/scoring"
)

// scoreInput is a YAML or JSON document holding subcriteria values
type scoreInput struct {
	Subcriteria scoring.Values `yaml:"subcriteria"`
}

type scoreOutput struct {
	scoring.Result
	CategoryLabel   string   `json:"category_label"`
	MissingRequired []string `json:"missing_required,omitempty"`
}

func scoreCommand() *cobra.Command {
	var (
		catalogueFile string
		strict        bool
	)

	cmd := &cobra.Command{
		Use:   "score <file>",
		Short: "Compute the threat category of a set of subcriteria",
		Long: `Reads a YAML or JSON document of the form

  subcriteria:
    a1: 4
    a2: NA

and prints the score, risk percentage and category.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogue := scoring.DefaultCatalogue()
			if catalogueFile != "" {
				data, err := os.ReadFile(catalogueFile)
				if err != nil {
					return fmt.Errorf("failed to read catalogue: %w", err)
				}
				if catalogue, err = scoring.LoadCatalogue(data); err != nil {
					return err
				}
			}

			out, err := scoreFile(args[0], catalogue)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd, out); err != nil {
				return err
			}
			if strict && len(out.MissingRequired) > 0 {
				return fmt.Errorf("%d required subcriteria are unscored", len(out.MissingRequired))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogueFile, "catalogue", "", "YAML criteria catalogue to validate against (default: built-in)")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when required subcriteria are unscored")

	return cmd
}

func scoreFile(path string, catalogue *scoring.Catalogue) (scoreOutput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scoreOutput{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var in scoreInput
	if err := yaml.Unmarshal(data, &in); err != nil {
		return scoreOutput{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := catalogue.Validate(in.Subcriteria); err != nil {
		return scoreOutput{}, err
	}

	result := scoring.Compute(in.Subcriteria)
	return scoreOutput{
		Result:          result,
		CategoryLabel:   result.Category.Label(),
		MissingRequired: catalogue.MissingRequired(in.Subcriteria),
	}, nil
}
