package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/hierselect/internal/config"
	"github.com/gyaneshwarpardhi/hierselect/internal/rule/builtin"
)

type outputOpts struct {
	all  bool
	json bool
}

func (o *outputOpts) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.all, "all", false, "include hidden nodes")
	cmd.Flags().BoolVar(&o.json, "json", false, "print a JSON snapshot instead of an outline")
}

func (c *CLI) showCommand() *cobra.Command {
	var out outputOpts
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Build the tree, dispatch Load and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := cmdLogger(cmd)
			loader, err := config.NewLoader(c.configPath, log)
			if err != nil {
				return err
			}
			s, err := newSession(cmd.Context(), c.configPath, loader.Document(), log)
			if err != nil {
				return err
			}
			defer s.close()
			c.publish(s)
			return c.render(cmd.OutOrStdout(), s, out)
		},
	}
	out.register(cmd)
	return cmd
}

func (c *CLI) replayCommand() *cobra.Command {
	var (
		out  outputOpts
		each bool
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Run the document's steps and print the resulting tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := cmdLogger(cmd)
			loader, err := config.NewLoader(c.configPath, log)
			if err != nil {
				return err
			}
			return c.replay(cmd.Context(), cmd.OutOrStdout(), loader.Document(), log, out, each)
		},
	}
	out.register(cmd)
	cmd.Flags().BoolVar(&each, "each", false, "print the tree after every step")
	return cmd
}

func (c *CLI) watchCommand() *cobra.Command {
	var out outputOpts
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Replay the document and replay again whenever it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := cmdLogger(cmd)
			loader, err := config.NewLoader(c.configPath, log)
			if err != nil {
				return err
			}

			changes := make(chan *config.Document, 1)
			loader.OnChange(func(doc *config.Document) {
				select {
				case <-changes:
				default:
				}
				changes <- doc
			})
			stop, err := loader.Watch()
			if err != nil {
				return err
			}
			defer stop()

			doc := loader.Document()
			for {
				if err := c.replay(ctx, cmd.OutOrStdout(), doc, log, out, false); err != nil {
					log.Warn("replay failed, waiting for the next change", "path", c.configPath, "err", err)
				}
				select {
				case <-ctx.Done():
					return nil
				case doc = <-changes:
					log.Info("document changed, replaying", "path", c.configPath, "version", doc.Version)
				}
			}
		},
	}
	out.register(cmd)
	return cmd
}

func (c *CLI) rulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the built-in rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range builtin.Names() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (c *CLI) replay(ctx context.Context, w io.Writer, doc *config.Document, log *slog.Logger, out outputOpts, each bool) error {
	s, err := newSession(ctx, c.configPath, doc, log)
	if err != nil {
		return err
	}
	defer s.close()

	var after func(int, config.Step)
	if each {
		after = func(i int, st config.Step) {
			fmt.Fprintf(w, "# %d: %s\n", i+1, describe(st))
			if err := c.render(w, s, out); err != nil {
				log.Warn("print failed", "err", err)
			}
		}
	}
	err = s.run(ctx, doc.Steps, after)
	c.publish(s)
	if err != nil {
		return err
	}
	if each {
		return nil
	}
	return c.render(w, s, out)
}

func (c *CLI) render(w io.Writer, s *session, out outputOpts) error {
	if out.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s.snapshot())
	}
	if err := printTree(w, s.eng, out.all); err != nil {
		return err
	}
	var names []string
	for _, id := range s.eng.Selected() {
		names = append(names, s.eng.Tree().Node(id).Name)
	}
	_, err := fmt.Fprintf(w, "selected: %s\n", strings.Join(names, ", "))
	return err
}
