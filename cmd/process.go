package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/complyops/decision-engine/internal/loader"
)

var processJSON bool

var processCmd = &cobra.Command{
	Use:   "process <batch-file>",
	Short: "Run the decision pipeline over a batch of extracted files",
	Long:  "Reads extraction batches from a JSON, CSV, or XLSX file and runs merge, identity resolution, directive classification, deadline evaluation, and review routing for each file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		inputs, err := loader.LoadBatches(args[0])
		if err != nil {
			return err
		}
		zap.L().Info("processing batch", zap.String("path", args[0]), zap.Int("files", len(inputs)))

		failures := 0
		for _, input := range inputs {
			out := env.Engine.ProcessDecisionLogic(ctx, input)

			if processJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					return err
				}
			} else {
				switch {
				case out.Success():
					fmt.Printf("%s: %s (%d review cases)\n",
						input.FileID, out.Value.State, len(out.Value.ReviewCases))
				case out.IsCancelled():
					fmt.Printf("%s: cancelled — %s\n", input.FileID, out.Reason)
				default:
					fmt.Printf("%s: %s failure — %s\n", input.FileID, out.Kind, out.Reason)
				}
			}

			if !out.Success() {
				failures++
			}
			if out.IsCancelled() {
				break
			}
		}

		if failures > 0 {
			return fmt.Errorf("%d of %d files did not complete", failures, len(inputs))
		}
		return nil
	},
}

func init() {
	processCmd.Flags().BoolVar(&processJSON, "json", false, "print full results as JSON")
	rootCmd.AddCommand(processCmd)
}
