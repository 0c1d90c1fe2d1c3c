package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dusk-indust/jitcap/internal/capability"
	"github.com/spf13/cobra"
)

// searchFlags are shared by discover and hydrate.
type searchFlags struct {
	limit int
	mode  string
	demo  bool
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of candidates (default from config)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "search mode: semantic|bm25|category")
	cmd.Flags().BoolVar(&f.demo, "demo", false, "use the built-in demo catalog and in-process tools")
}

func (f *searchFlags) effectiveLimit(a *app) int {
	if f.limit > 0 {
		return f.limit
	}
	return a.cfg.Search.Limit
}

func newDiscoverCmd(a *app) *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "discover <query>",
		Short: "Preview capabilities matching a query without loading them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.open(ctx, flags.demo)
			if err != nil {
				return err
			}
			defer e.Close()
			if flags.mode != "" {
				if err := e.dispatcher.SetMode(flags.mode); err != nil {
					return err
				}
			}

			query := strings.Join(args, " ")
			previews, err := e.cache.Discover(ctx, query, flags.effectiveLimit(a))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(previews) == 0 {
				fmt.Fprintf(out, "No tools found for: %s\n", query)
				return nil
			}
			rows := make([][]string, len(previews))
			for i, p := range previews {
				rows[i] = []string{p.Name, orDash(p.Category), orDash(p.Origin), p.Description}
			}
			printTable(out, []string{"NAME", "CATEGORY", "ORIGIN", "DESCRIPTION"}, rows)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newHydrateCmd(a *app) *cobra.Command {
	var (
		flags searchFlags
		name  string
	)

	cmd := &cobra.Command{
		Use:   "hydrate [query]",
		Short: "Discover capabilities and load their full schemas from their origins",
		Long: `Hydrate searches for the query and loads every matching origin. With
--name it loads the origin of one registered capability instead; whether the
origin's other tools are activated too follows hydration.eagerSiblings.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if name != "" && len(args) > 0 {
				return fmt.Errorf("--name and a query are mutually exclusive")
			}
			if name == "" && len(args) == 0 {
				return fmt.Errorf("requires a query or --name")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.open(ctx, flags.demo)
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			if name != "" {
				schema, err := e.cache.HydrateByName(ctx, name)
				if err != nil {
					return err
				}
				if schema == nil {
					fmt.Fprintf(out, "No capability named %s\n", name)
					return nil
				}
				printSchema(out, *schema)
				fmt.Fprintf(out, "active: %s\n", strings.Join(e.cache.ActiveNames(), ", "))
				return nil
			}

			if flags.mode != "" {
				if err := e.dispatcher.SetMode(flags.mode); err != nil {
					return err
				}
			}
			query := strings.Join(args, " ")
			schemas, report, err := e.cache.DiscoverAndHydrateReport(ctx, query, flags.effectiveLimit(a))
			if err != nil {
				return err
			}

			for _, s := range schemas {
				printSchema(out, s)
			}
			for _, f := range report.Failures {
				failColor.Fprintf(out, "✗ %s\n", f.Error())
			}
			if len(schemas) == 0 {
				fmt.Fprintf(out, "No tools found for: %s\n", query)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "hydrate the origin of this registered capability")
	return cmd
}

func printSchema(out io.Writer, s capability.Schema) {
	okColor.Fprintf(out, "✓ %s", s.Name)
	fmt.Fprintf(out, "  %s\n", s.Description)
	if len(s.InputSchema) > 0 {
		fmt.Fprintf(out, "    input: %s\n", s.InputSchema)
	}
}
