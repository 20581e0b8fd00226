package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/complyops/decision-engine/internal/model"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the background escalation checker until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Warn about anything already breached before settling into the loop.
		breached, err := env.SLA.Breached(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		for _, st := range breached {
			if st.Level == model.EscalationBreached {
				zap.L().Warn("deadline already breached",
					zap.String("file_id", st.FileID),
					zap.Time("deadline", st.Deadline),
				)
			}
		}

		env.Checker.Run(ctx)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
