package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sql-sandbox/internal/content"
	"sql-sandbox/internal/domain"
)

func newValidateCmd(g *globals) *cobra.Command {
	var (
		exercisePath string
		file         string
		hint         int
	)

	cmd := &cobra.Command{
		Use:   "validate --exercise FILE [query]",
		Short: "Grade a query against an exercise",
		Long:  "Loads an exercise definition (YAML or JSON), runs the query on a seeded session and compares it with the exercise's reference. Exits with status 1 when the answer is incorrect.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := content.LoadExercise(exercisePath)
			if err != nil {
				return err
			}
			if hint != 0 {
				if hint != 1 && hint != 2 {
					return domain.ErrValidation("hint level must be 1 or 2")
				}
				if g.output == "json" {
					return PrintJSON(cmd.OutOrStdout(), map[string]interface{}{"level": hint, "hint": ex.Hint(hint)})
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), ex.Hint(hint))
				return err
			}

			query, err := readQuery(cmd, args, file)
			if err != nil {
				return err
			}
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			verdict, err := a.Service.Validate(cmd.Context(), g.sessionID(), ex, query)
			if err != nil {
				return err
			}
			if err := printVerdict(cmd.OutOrStdout(), g.output, verdict); err != nil {
				return err
			}
			if !verdict.Correct {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&exercisePath, "exercise", "e", "", "Exercise definition file (YAML or JSON)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the query from a file")
	cmd.Flags().IntVar(&hint, "hint", 0, "Print the level 1 or 2 hint instead of grading")
	_ = cmd.MarkFlagRequired("exercise")
	return cmd
}
