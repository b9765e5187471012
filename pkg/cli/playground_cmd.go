package cli

import (
	"github.com/spf13/cobra"

	"sql-sandbox/internal/content"
)

func newPlaygroundCmd(g *globals) *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "playground",
		Short: "List and grade playground challenges",
	}
	cmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Playground catalog file (YAML or JSON)")
	_ = cmd.MarkPersistentFlagRequired("catalog")

	cmd.AddCommand(newPlaygroundListCmd(g, &catalogPath))
	cmd.AddCommand(newPlaygroundValidateCmd(g, &catalogPath))
	return cmd
}

func newPlaygroundListCmd(g *globals, catalogPath *string) *cobra.Command {
	var dataset string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List datasets, or the challenges of one dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := content.LoadPlayground(*catalogPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if dataset == "" {
				datasets := c.Datasets()
				if g.output == "json" {
					return PrintJSON(out, datasets)
				}
				rows := make([][]string, len(datasets))
				for i, d := range datasets {
					rows[i] = []string{d.ID, d.Name, d.Description}
				}
				PrintTable(out, []string{"ID", "NAME", "DESCRIPTION"}, rows)
				return nil
			}

			challenges, err := c.Public(dataset)
			if err != nil {
				return err
			}
			if g.output == "json" {
				return PrintJSON(out, challenges)
			}
			rows := make([][]string, len(challenges))
			for i, ch := range challenges {
				rows[i] = []string{ch.ID, ch.Title, ch.Difficulty}
			}
			PrintTable(out, []string{"ID", "TITLE", "DIFFICULTY"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "Dataset id")
	return cmd
}

func newPlaygroundValidateCmd(g *globals, catalogPath *string) *cobra.Command {
	var (
		dataset   string
		challenge string
		file      string
	)

	cmd := &cobra.Command{
		Use:   "validate --dataset ID --challenge ID [query]",
		Short: "Grade a query against a playground challenge",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := content.LoadPlayground(*catalogPath)
			if err != nil {
				return err
			}
			ch, err := c.Challenge(dataset, challenge)
			if err != nil {
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

			verdict, err := a.Service.ValidatePlayground(cmd.Context(), g.sessionID(), ch, query)
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
	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "Dataset id")
	cmd.Flags().StringVarP(&challenge, "challenge", "c", "", "Challenge id")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the query from a file")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("challenge")
	return cmd
}
