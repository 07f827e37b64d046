// Package main implements portfolioctl, the command-line client for
// portfoliod.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/portfoliod/internal/console"
	"github.com/fyrsmithlabs/portfoliod/internal/ledger"
	"github.com/fyrsmithlabs/portfoliod/internal/resolver"
	"github.com/fyrsmithlabs/portfoliod/internal/supervisor"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	server  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "portfolioctl",
		Short: "Ask portfoliod about your property portfolio",
		Long: `portfolioctl talks to a running portfoliod over HTTP, or runs the
assistant in-process against a ledger file with --local.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", "http://127.0.0.1:9191", "portfoliod server URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", console.DefaultTimeout, "per-request timeout")

	root.AddCommand(newAskCmd(opts), newChatCmd(opts), newPropertiesCmd(opts), newHealthCmd(opts))
	return root
}

type localOptions struct {
	enabled bool
	dataset string
	aliases string
}

func (l *localOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&l.enabled, "local", false, "run in-process instead of calling the server")
	cmd.Flags().StringVar(&l.dataset, "dataset", "data/portfolio.csv", "ledger CSV for --local")
	cmd.Flags().StringVar(&l.aliases, "aliases", "", "alias file (yaml, json or toml) for --local")
}

// asker returns the in-process supervisor when --local is set, else an
// HTTP client.
func (l *localOptions) asker(ctx context.Context, opts *rootOptions) (console.Asker, error) {
	if !l.enabled {
		return newClient(opts.server, opts.timeout), nil
	}
	sup, err := localSupervisor(ctx, l.dataset, l.aliases)
	if err != nil {
		return nil, err
	}
	return console.Local{Supervisor: sup}, nil
}

func localSupervisor(ctx context.Context, dataset, aliasFile string) (*supervisor.Supervisor, error) {
	tbl, err := ledger.Load(dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	aliases, err := resolver.LoadAliases(aliasFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load aliases: %w", err)
	}
	res, err := resolver.New(ctx, tbl.Properties(), aliases, resolver.Config{})
	if err != nil {
		return nil, err
	}
	return supervisor.New(supervisor.Deps{Table: tbl, Resolver: res})
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	local := &localOptions{}
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question",
		Long: `Ask a single question and print the answer.

Examples:
  portfolioctl ask "What is the total P&L for 2025?"
  portfolioctl ask --json "Compare Building 120 and Building 160"
  portfolioctl ask --local --dataset data/portfolio.csv "NOI for Building 180 in 2025"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			message := strings.Join(args, " ")
			if asJSON && !local.enabled {
				raw, err := newClient(opts.server, opts.timeout).askRaw(ctx, message, nil)
				if err != nil {
					return err
				}
				return printIndented(cmd.OutOrStdout(), raw)
			}

			asker, err := local.asker(ctx, opts)
			if err != nil {
				return err
			}
			resp, err := asker.Ask(ctx, message, nil)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), console.Render(resp))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response")
	local.register(cmd)
	return cmd
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	local := &localOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Start an interactive conversation. Follow-up answers to a clarifying
question keep the earlier context; Ctrl+R starts over.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asker, err := local.asker(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return console.Run(cmd.Context(), asker, opts.timeout)
		},
	}
	local.register(cmd)
	return cmd
}

func newPropertiesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "properties",
		Short: "List the properties portfoliod knows about",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			props, err := newClient(opts.server, opts.timeout).Properties(ctx)
			if err != nil {
				return err
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ID", "NAME", "ADDRESS", "ENTITY", "ALIASES")
			for _, p := range props {
				t.Row(p.ID, p.DisplayName, p.Address, p.EntityID, strings.Join(p.Aliases, ", "))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check portfoliod server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			h, err := newClient(opts.server, opts.timeout).Health(ctx)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: failed to reach %s: %v\n", opts.server, err)
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server Status: %s (%s %s)\n", h.Status, h.Service, h.Version)
			fmt.Fprintf(out, "Dataset:       %d rows, %d properties, %d tenants, %s to %s\n",
				h.Dataset.Rows, h.Dataset.Properties, h.Dataset.Tenants, h.Dataset.FirstMonth, h.Dataset.LastMonth)
			fmt.Fprintf(out, "Semantic:      %t\n", h.Semantic)
			return nil
		},
	}
}

func printIndented(w io.Writer, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
