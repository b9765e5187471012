package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sql-sandbox/internal/sandbox"
)

const shellHelp = `Statements end with ";". Commands:
  .schema [name]  list tables and columns
  .help           show this help
  .quit           leave the shell
`

func newShellCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive SQL shell on one session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			in := cmd.InOrStdin()
			sh := &shell{
				svc:         a.Service,
				sessionID:   g.sessionID(),
				format:      g.output,
				out:         cmd.OutOrStdout(),
				errOut:      cmd.ErrOrStderr(),
				interactive: isTerminal(in),
			}
			if err := sh.svc.OpenSession(cmd.Context(), sh.sessionID); err != nil {
				return err
			}
			if sh.interactive {
				_, _ = fmt.Fprintf(sh.out, "session %s\n%s", sh.sessionID, shellHelp)
			}
			return sh.run(cmd.Context(), in)
		},
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// shell reads statements line by line and runs each one when a line ends
// with a semicolon.
type shell struct {
	svc         *sandbox.Service
	sessionID   string
	format      string
	out         io.Writer
	errOut      io.Writer
	interactive bool
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	var pending strings.Builder
	s.prompt(pending.Len() > 0)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if pending.Len() == 0 && strings.HasPrefix(trimmed, ".") {
			quit, err := s.command(ctx, trimmed)
			if err != nil || quit {
				return err
			}
			s.prompt(false)
			continue
		}

		if trimmed != "" {
			pending.WriteString(line)
			pending.WriteByte('\n')
		}
		if strings.HasSuffix(trimmed, ";") {
			query := pending.String()
			pending.Reset()
			if err := s.execute(ctx, query); err != nil {
				return err
			}
		}
		s.prompt(pending.Len() > 0)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if strings.TrimSpace(pending.String()) != "" {
		return s.execute(ctx, pending.String())
	}
	return nil
}

func (s *shell) prompt(continuation bool) {
	if !s.interactive {
		return
	}
	if continuation {
		_, _ = fmt.Fprint(s.out, "   ...> ")
		return
	}
	_, _ = fmt.Fprint(s.out, "sandbox> ")
}

// execute runs one statement. Learner-facing failures are printed and the
// shell carries on; cancellation ends it.
func (s *shell) execute(ctx context.Context, query string) error {
	rs, err := s.svc.ExecuteQuery(ctx, s.sessionID, query)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
		return nil
	}
	return printResult(s.out, s.format, rs)
}

func (s *shell) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".quit", ".exit":
		return true, nil
	case ".help":
		_, _ = fmt.Fprint(s.out, shellHelp)
	case ".schema":
		var schema string
		if len(fields) > 1 {
			schema = fields[1]
		}
		tables, err := s.svc.DescribeSchema(ctx, s.sessionID, schema)
		if err != nil {
			_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
			return false, nil
		}
		if err := printSchema(s.out, s.format, tables); err != nil {
			return false, err
		}
	default:
		_, _ = fmt.Fprintf(s.errOut, "Error: unknown command %s (try .help)\n", fields[0])
	}
	return false, nil
}
