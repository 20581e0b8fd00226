package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/complyops/decision-engine/internal/model"
)

var slaCmd = &cobra.Command{
	Use:   "sla",
	Short: "Inspect response deadlines and escalation levels",
}

var slaStatusCmd = &cobra.Command{
	Use:   "status <file-id>",
	Short: "Show the deadline snapshot for one file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		out := env.Engine.GetSlaStatus(cmd.Context(), args[0])
		if !out.Success() {
			return fmt.Errorf("sla status: %s", out.Reason)
		}
		printStatus(out.Value, time.Now().UTC())
		return nil
	},
}

var slaAtRiskThreshold time.Duration

var slaAtRiskCmd = &cobra.Command{
	Use:   "at-risk",
	Short: "List files approaching their deadline",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		out := env.Engine.GetAtRiskCases(cmd.Context(), slaAtRiskThreshold)
		if !out.Success() {
			return fmt.Errorf("at-risk cases: %s", out.Reason)
		}
		if len(out.Value) == 0 {
			fmt.Println("no at-risk cases")
			return nil
		}
		now := time.Now().UTC()
		for _, st := range out.Value {
			printStatus(st, now)
		}
		return nil
	},
}

var slaBreachedCmd = &cobra.Command{
	Use:   "breached",
	Short: "List files past their deadline",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		now := time.Now().UTC()
		statuses, err := env.SLA.Breached(cmd.Context(), now)
		if err != nil {
			return err
		}
		if len(statuses) == 0 {
			fmt.Println("no breached cases")
			return nil
		}
		for _, st := range statuses {
			printStatus(st, now)
		}
		return nil
	},
}

func printStatus(st model.SLAStatus, now time.Time) {
	fmt.Printf("%s  level=%-8s  deadline=%s  remaining=%s\n",
		st.FileID, st.Level, st.Deadline.Format(time.RFC3339),
		st.Remaining(now).Round(time.Minute))
}

func init() {
	slaAtRiskCmd.Flags().DurationVar(&slaAtRiskThreshold, "threshold", 0,
		"at-risk window (e.g. 6h); defaults to the configured window")
	slaCmd.AddCommand(slaStatusCmd, slaAtRiskCmd, slaBreachedCmd)
	rootCmd.AddCommand(slaCmd)
}
