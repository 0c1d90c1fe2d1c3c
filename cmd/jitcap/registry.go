package main

import (
	"fmt"

	"github.com/dusk-indust/jitcap/internal/capability"
	"github.com/dusk-indust/jitcap/internal/resolver"
	"github.com/spf13/cobra"
)

func newRegisterCmd(a *app) *cobra.Command {
	var meta capability.Metadata

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Add or replace a capability in the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			// The allowlist is enforced again at hydration; this only warns early.
			if meta.Origin != "" {
				if _, err := resolver.Resolve(meta.Origin); err != nil {
					warnColor.Fprintf(out, "! origin will not hydrate: %v\n", err)
				}
			}

			store, err := a.openStore(ctx, false)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Register(ctx, meta); err != nil {
				return err
			}
			okColor.Fprintf(out, "✓ registered %s\n", meta.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&meta.Name, "name", "", "unique capability name")
	cmd.Flags().StringVar(&meta.Description, "description", "", "what the capability does; searched by discovery")
	cmd.Flags().StringVar(&meta.Origin, "origin", "", "origin URI, e.g. mcp+stdio://npx/-y/server-name")
	cmd.Flags().StringVar(&meta.Category, "category", "", "category, e.g. Financial")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx, false)
			if err != nil {
				return err
			}
			defer store.Close()

			var items []capability.Metadata
			if category != "" {
				items, err = store.ByCategory(ctx, category)
			} else {
				items, err = store.List(ctx)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No capabilities registered.")
				return nil
			}
			rows := make([][]string, len(items))
			for i, m := range items {
				rows[i] = []string{m.Name, orDash(m.Category), orDash(m.Origin), m.Description}
			}
			printTable(out, []string{"NAME", "CATEGORY", "ORIGIN", "DESCRIPTION"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only list this category")
	return cmd
}
