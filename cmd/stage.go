package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"smartreply/internal/bootstrap"
	"smartreply/internal/bootstrap/logging"
	"smartreply/internal/domain/reply"
	"smartreply/internal/errs"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Stage a review and print its capability token",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		review, _ := cmd.Flags().GetString("review")
		reviewer, _ := cmd.Flags().GetString("reviewer")
		reviewedAt, _ := cmd.Flags().GetString("reviewed-at")
		rating, _ := cmd.Flags().GetString("rating")
		accountID, _ := cmd.Flags().GetString("account-id")
		locationID, _ := cmd.Flags().GetString("location-id")
		reviewID, _ := cmd.Flags().GetString("review-id")

		input := reply.PayloadInput{
			Review:     review,
			Reviewer:   reviewer,
			ReviewedAt: reviewedAt,
			AccountID:  accountID,
			LocationID: locationID,
			ReviewID:   reviewID,
		}
		if rating != "" {
			input.Rating = rating
		}

		token, err := svcs.staging.Stage(ctx, input)
		if err != nil {
			logging.Error(ctx, "stage review failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "stage review")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "staged: %s\n", token); err != nil {
			return errs.Wrap(err, "write stage output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(stageCmd)

	stageCmd.Flags().String("review", "", "Review text (required)")
	stageCmd.Flags().String("reviewer", "", "Reviewer display name")
	stageCmd.Flags().String("reviewed-at", "", "Review date, e.g. 2026-08-01")
	stageCmd.Flags().String("rating", "", "Star rating 1-5")
	stageCmd.Flags().String("account-id", "", "Platform account id")
	stageCmd.Flags().String("location-id", "", "Platform location id")
	stageCmd.Flags().String("review-id", "", "Platform review id")
	_ = stageCmd.MarkFlagRequired("review")
}
