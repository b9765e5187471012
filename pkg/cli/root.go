package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"sql-sandbox/internal/app"
	"sql-sandbox/internal/config"
	"sql-sandbox/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// errReported ends a command with exit status 1 after its outcome has already
// been printed, such as an incorrect submission or a rejected query.
var errReported = errors.New("reported")

// Execute runs the CLI.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errReported) {
			return 1
		}
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]interface{}{
				"error": err.Error(),
			}
			if kind := errorKind(err); kind != "" {
				errObj["kind"] = kind
			}
			var rle *domain.RateLimitError
			if errors.As(err, &rle) {
				errObj["retry_after_seconds"] = rle.RetryAfter.Seconds()
			}
			_ = PrintJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// errorKind classifies err for machine-readable output.
func errorKind(err error) string {
	var (
		rej *domain.RejectionError
		exe *domain.ExecutionError
		rle *domain.RateLimitError
		se  *domain.SeedError
		ve  *domain.ValidationError
		nf  *domain.NotFoundError
	)
	switch {
	case errors.As(err, &rej):
		return "rejected"
	case errors.As(err, &exe):
		return "execution"
	case errors.As(err, &rle):
		return "rate_limited"
	case errors.As(err, &se):
		return "seed"
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &nf):
		return "not_found"
	}
	return ""
}

// globals holds the persistent flags shared by every command.
type globals struct {
	output  string
	session string
	seed    string
	envFile string
}

// loadConfig applies --env-file and --seed, then reads the environment.
// Flags take precedence over the environment.
func (g *globals) loadConfig() (*config.Config, error) {
	if g.envFile != "" {
		if err := config.LoadDotEnv(g.envFile); err != nil {
			return nil, err
		}
	}
	if g.seed != "" {
		if err := os.Setenv("SEED_SCRIPT", g.seed); err != nil {
			return nil, fmt.Errorf("setenv SEED_SCRIPT: %w", err)
		}
	}
	return config.LoadFromEnv()
}

// open loads the configuration and wires a sandbox application. Logs go to
// the command's stderr.
func (g *globals) open(cmd *cobra.Command) (*app.App, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, app.NewLogger(cmd.ErrOrStderr(), cfg))
}

// sessionID returns --session, generating an id on first use when unset.
func (g *globals) sessionID() string {
	if g.session == "" {
		g.session = domain.NewSessionID()
	}
	return g.session
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:           "sandbox",
		Short:         "SQL sandbox and answer validator",
		Long:          "Runs read-only SQL against per-session seeded DuckDB databases and grades submissions against exercises.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("output") {
				if v := os.Getenv("SANDBOX_OUTPUT"); v != "" {
					g.output = v
				}
			}
			return validateOutputFormat(g.output)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVarP(&g.session, "session", "s", "", "Session id (default: a new id per invocation)")
	rootCmd.PersistentFlags().StringVar(&g.seed, "seed", "", "Seed script location (overrides SEED_SCRIPT)")
	rootCmd.PersistentFlags().StringVar(&g.envFile, "env-file", "", "Load environment variables from a .env file")

	rootCmd.AddCommand(newRunCmd(g))
	rootCmd.AddCommand(newCheckCmd(g))
	rootCmd.AddCommand(newValidateCmd(g))
	rootCmd.AddCommand(newPlaygroundCmd(g))
	rootCmd.AddCommand(newSchemaCmd(g))
	rootCmd.AddCommand(newShellCmd(g))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// readQuery returns the query from --file, the positional arguments, or
// stdin when there are none or the only argument is "-".
func readQuery(cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file) //nolint:gosec // intentional: reading user-specified query files
		if err != nil {
			return "", fmt.Errorf("read query file: %w", err)
		}
		return string(data), nil
	case len(args) > 0 && !(len(args) == 1 && args[0] == "-"):
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read query from stdin: %w", err)
	}
	return string(data), nil
}
