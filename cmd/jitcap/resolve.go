package main

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/jitcap/internal/resolver"
	"github.com/spf13/cobra"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <uri>",
		Short: "Resolve an origin URI into the command it would launch",
		Long: `Resolve applies the same allowlist check used during hydration.
Accepted forms: mcp+stdio://cmd/arg..., mcp://cmd/arg... and a bare cmd/arg path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			d, err := resolver.Resolve(args[0])
			if err != nil {
				failColor.Fprintf(out, "✗ %s\n", args[0])
				return err
			}
			okColor.Fprintf(out, "✓ %s\n", args[0])
			fmt.Fprintf(out, "  command: %s\n", d.Command)
			fmt.Fprintf(out, "  args:    [%s]\n", strings.Join(d.Args, ", "))
			return nil
		},
	}
}
