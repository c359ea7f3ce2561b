package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/aristath/stockfolio/internal/config"
	"github.com/aristath/stockfolio/internal/di"
	"github.com/aristath/stockfolio/pkg/logger"
)

// opener builds the dependency container a command runs against
type opener func(ctx context.Context) (*di.Container, error)

// env is shared by every command
type env struct {
	open   opener
	out    io.Writer
	errOut io.Writer
	raw    bool
}

func newEnv(open opener, out, errOut io.Writer) *env {
	return &env{open: open, out: out, errOut: errOut}
}

// commands returns every folioctl command keyed by help group
func (e *env) commands() map[string][]subcommands.Command {
	return map[string][]subcommands.Command{
		"accounts": {
			&registerCmd{env: e},
		},
		"trading": {
			&quoteCmd{env: e},
			&tradeCmd{env: e, side: sideBuy},
			&tradeCmd{env: e, side: sideSell},
		},
		"reports": {
			&reportCmd{env: e},
			&historyCmd{env: e},
			&performanceCmd{env: e},
		},
		"operations": {
			&snapshotCmd{env: e},
			&backupCmd{env: e},
		},
	}
}

// openContainer wires the application from the environment. Logs go to
// stderr so they never mix with command output.
func openContainer(ctx context.Context) (*di.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true, Output: os.Stderr})
	container, _, err := di.Wire(ctx, cfg, log)
	return container, err
}

// run opens the container, calls fn and maps its error to an exit status
func (e *env) run(ctx context.Context, fn func(ctx context.Context, c *di.Container) error) subcommands.ExitStatus {
	c, err := e.open(ctx)
	if err != nil {
		fmt.Fprintf(e.errOut, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer c.Close()

	if err := fn(ctx, c); err != nil {
		fmt.Fprintf(e.errOut, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// usageError reports a command line mistake
func (e *env) usageError(format string, args ...interface{}) subcommands.ExitStatus {
	fmt.Fprintf(e.errOut, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

// printMarkdown renders md for the terminal, or prints it as is with -raw
func (e *env) printMarkdown(md string) error {
	if e.raw {
		_, err := io.WriteString(e.out, md)
		return err
	}

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = io.WriteString(e.out, out)
	return err
}
