package cmd

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"smartreply/internal/bootstrap"
	"smartreply/internal/bootstrap/logging"
	"smartreply/internal/errs"
	"smartreply/internal/usecase/generate"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a reply for a staged review",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		token, _ := cmd.Flags().GetString("token")
		review, _ := cmd.Flags().GetString("review")
		rating, _ := cmd.Flags().GetString("rating")
		tone, _ := cmd.Flags().GetString("tone")
		signature, _ := cmd.Flags().GetString("signature")
		contactEmail, _ := cmd.Flags().GetString("contact-email")
		language, _ := cmd.Flags().GetString("language")

		if review == "" && token != "" {
			// Convenience: with only a token, answer the staged review text.
			record, err := svcs.staging.Get(ctx, token)
			if err != nil {
				logging.Error(ctx, "load staged review failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "load staged review")
			}
			review = record.Payload.Review
			if rating == "" {
				rating = record.Payload.RatingString()
			}
		}

		replies, err := svcs.generate.Generate(ctx, generate.Input{
			Token: token,
			Values: generate.Values{
				SelectedTone:       tone,
				CorporateSignature: signature,
				ContactEmail:       contactEmail,
				LanguageMode:       language,
			},
			Reviews: []generate.ReviewInput{{Review: review, Rating: rating}},
		})
		if err != nil {
			logging.Error(ctx, "generate replies failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "generate replies")
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(replies); err != nil {
			return errs.Wrap(err, "write generate output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("token", "", "Staging token (enables write-back and single-review mode)")
	generateCmd.Flags().String("review", "", "Review text (defaults to the staged review when a token is given)")
	generateCmd.Flags().String("rating", "", "Star rating 1-5")
	generateCmd.Flags().String("tone", "friendly", "Reply tone")
	generateCmd.Flags().String("signature", "", "Corporate signature appended to replies")
	generateCmd.Flags().String("contact-email", "", "Contact email offered in replies")
	generateCmd.Flags().String("language", "de", "Reply language mode")
}
