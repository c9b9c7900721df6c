package cmd

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"smartreply/internal/bootstrap"
	"smartreply/internal/bootstrap/logging"
	"smartreply/internal/errs"
	"smartreply/internal/usecase/publish"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the generated reply for a staged review",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		token, _ := cmd.Flags().GetString("token")
		replyText, _ := cmd.Flags().GetString("reply")
		force, _ := cmd.Flags().GetBool("force")

		result, err := svcs.publish.Publish(ctx, publish.Input{
			Token: token,
			Reply: replyText,
			Force: force,
		})
		if err != nil {
			logging.Error(ctx, "publish failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "publish reply")
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return errs.Wrap(err, "write publish output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().String("token", "", "Staging token (required)")
	publishCmd.Flags().String("reply", "", "Override reply text (honored only when allow_client_reply is set)")
	publishCmd.Flags().Bool("force", false, "Skip the conflict check and overwrite the existing reply")
	_ = publishCmd.MarkFlagRequired("token")
}
