package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dusk-indust/jitcap/internal/orchestrator"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		scriptPath string
		endpoint   string
		demo       bool
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Drive the agent turn loop",
		Long: `Run feeds the input to a model that starts with only the
discover_tools capability. The model is a JSON-RPC endpoint when
--model-endpoint is given, otherwise a scripted model; without --script the
built-in demo script is used.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var model orchestrator.Model
			switch {
			case endpoint != "" && scriptPath != "":
				return fmt.Errorf("--script and --model-endpoint are mutually exclusive")
			case endpoint != "":
				model = orchestrator.NewRemoteModel(endpoint)
			case scriptPath != "":
				s, err := orchestrator.LoadScript(scriptPath)
				if err != nil {
					return err
				}
				model = orchestrator.NewScriptedModel(s)
			default:
				model = orchestrator.NewScriptedModel(orchestrator.DemoScript())
			}

			e, err := a.open(ctx, demo)
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			reporter := orchestrator.NewEventReporter()
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for ev := range reporter.Subscribe() {
					if !quiet {
						fmt.Fprintln(out, orchestrator.FormatEvent(ev))
					}
				}
			}()

			o := orchestrator.New(model, e.cache, orchestrator.Config{
				MaxTurns:       a.cfg.Orchestrator.MaxTurns,
				HistoryWindow:  a.cfg.Orchestrator.HistoryWindow,
				DiscoveryLimit: a.cfg.Search.Limit,
			},
				orchestrator.WithLogger(a.logger.Named("orchestrator")),
				orchestrator.WithReporter(reporter),
			)
			if !quiet {
				headColor.Fprintf(out, "Session %s\n", o.Session())
			}

			answer, err := o.Run(ctx, strings.Join(args, " "))
			reporter.Close()
			wg.Wait()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, answer)
			return nil
		},
	}

	cmd.Flags().StringVar(&scriptPath, "script", "", "YAML file with the scripted model steps")
	cmd.Flags().StringVar(&endpoint, "model-endpoint", "", "URL of a JSON-RPC model/generate endpoint")
	cmd.Flags().BoolVar(&demo, "demo", false, "use the built-in demo catalog and in-process tools")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the final answer")
	return cmd
}
