// Package cli implements the hierselect command-line interface.
//
// Every command loads a YAML document describing a tree (or a cyclical
// dataset), its rules and an optional script of steps:
//   - show: build the tree, dispatch Load and print it
//   - replay: run the document's steps and print the result
//   - watch: replay again whenever the document changes on disk
//   - rules: list the built-in rules a document may name
//
// --verbose (-v) switches to debug logging. --metrics-addr serves
// Prometheus metrics and a JSON snapshot of the latest tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/hierselect/internal/api"
)

const appName = "hierselect"

// CLI holds state shared by every command.
type CLI struct {
	out    io.Writer
	errOut io.Writer

	configPath  string
	verbose     bool
	metricsAddr string

	state *api.State
	srv   *http.Server
}

// New creates a CLI printing results to out and logs to errOut.
func New(out, errOut io.Writer) *CLI {
	return &CLI{out: out, errOut: errOut, state: &api.State{}}
}

// Execute runs the CLI with os.Args.
func Execute(ctx context.Context) error {
	return New(os.Stdout, os.Stderr).RootCommand().ExecuteContext(ctx)
}

// RootCommand builds the root cobra command with every subcommand registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Drive a hierarchy select tree from a YAML document",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := charmlog.InfoLevel
			if c.verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(c.errOut, level)))
			return c.serve(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.shutdown()
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "hierselect.yaml", "path to the YAML document")
	root.PersistentFlags().StringVar(&c.metricsAddr, "metrics-addr", "", "serve /metrics and /v1/tree on this address")

	root.AddCommand(c.showCommand())
	root.AddCommand(c.replayCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.rulesCommand())
	return root
}

// serve starts the diagnostics listener when --metrics-addr is set.
func (c *CLI) serve(ctx context.Context) error {
	if c.metricsAddr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", c.metricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	logger := loggerFromContext(ctx)
	c.srv = &http.Server{
		Handler:      api.New(c.state, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("diagnostics listening", "addr", ln.Addr().String())
		if err := c.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("diagnostics server error", "err", err)
		}
	}()
	return nil
}

func (c *CLI) shutdown() error {
	if c.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.srv.Shutdown(ctx)
	c.srv = nil
	return err
}

// publish records the session's tree for the diagnostics listener.
func (c *CLI) publish(s *session) {
	c.state.Publish(s.snapshot())
}

func cmdLogger(cmd *cobra.Command) *slog.Logger {
	return loggerFromContext(cmd.Context())
}
