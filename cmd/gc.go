package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"smartreply/internal/bootstrap"
	"smartreply/internal/bootstrap/logging"
	"smartreply/internal/errs"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete expired staging records",
	Long:  "Physically removes staging records past their TTL. Maintenance only: expired records are already invisible to every read path.",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		deleted, err := svcs.staging.PurgeExpired(ctx)
		if err != nil {
			logging.Error(ctx, "purge expired records failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "purge expired records")
		}

		logging.Info(ctx, "gc finished", slog.Int64("deleted", deleted))
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired staging records\n", deleted); err != nil {
			return errs.Wrap(err, "write gc output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(gcCmd)
}
