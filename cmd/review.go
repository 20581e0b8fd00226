package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/complyops/decision-engine/internal/model"
	"github.com/complyops/decision-engine/internal/review"
)

var (
	reviewLimit     int
	reviewDecision  string
	reviewReviewer  string
	reviewNotes     string
	reviewOverrides map[string]string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List and decide manual review cases",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending review cases, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		out := env.Engine.PendingReviews(cmd.Context(), reviewLimit)
		if !out.Success() {
			return fmt.Errorf("list reviews: %s", out.Reason)
		}

		if len(out.Value) == 0 {
			fmt.Println("no pending review cases")
			return nil
		}
		for _, rc := range out.Value {
			fmt.Printf("%s  %-22s  file=%s  opened=%s\n",
				rc.ID, rc.Reason, rc.FileID, rc.CreatedAt.Format("2006-01-02 15:04"))
			for _, ann := range rc.Annotations {
				fmt.Printf("    %s: %q (confidence %.2f, needed %.2f) vs %v\n",
					ann.Field, ann.Winner, ann.Confidence, ann.Threshold, ann.Competing)
			}
		}
		return nil
	},
}

var reviewDecideCmd = &cobra.Command{
	Use:   "decide <case-id>",
	Short: "Apply a reviewer verdict to a pending case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		overrides := make(map[model.FieldKey]string, len(reviewOverrides))
		for k, v := range reviewOverrides {
			overrides[model.FieldKey(k)] = v
		}

		out := env.Engine.SubmitReviewDecision(cmd.Context(), review.DecisionRequest{
			CaseID:     args[0],
			Decision:   model.ReviewDecision(reviewDecision),
			ReviewerID: reviewReviewer,
			Notes:      reviewNotes,
			Overrides:  overrides,
		})
		if !out.Success() {
			return fmt.Errorf("decide case: %s", out.Reason)
		}

		fmt.Printf("case %s %s by %s\n", out.Value.ID, out.Value.Status, out.Value.ReviewerID)
		return nil
	},
}

func init() {
	reviewListCmd.Flags().IntVar(&reviewLimit, "limit", 50, "maximum cases to list")
	reviewDecideCmd.Flags().StringVar(&reviewDecision, "decision", "", "approve or reject (required)")
	reviewDecideCmd.Flags().StringVar(&reviewReviewer, "reviewer", "", "reviewer identity (required)")
	reviewDecideCmd.Flags().StringVar(&reviewNotes, "notes", "", "rationale (required for reject)")
	reviewDecideCmd.Flags().StringToStringVar(&reviewOverrides, "set", nil, "field overrides applied on approval, e.g. --set case_number=EXP-2026-114")
	_ = reviewDecideCmd.MarkFlagRequired("decision")
	_ = reviewDecideCmd.MarkFlagRequired("reviewer")

	reviewCmd.AddCommand(reviewListCmd, reviewDecideCmd)
	rootCmd.AddCommand(reviewCmd)
}
