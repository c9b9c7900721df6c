package cmd

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"smartreply/internal/bootstrap"
	"smartreply/internal/bootstrap/logging"
	"smartreply/internal/errs"
	"smartreply/internal/transport/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the staging/generate/publish HTTP API",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svcs *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = ":8080"
		}

		if err := app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "initialize schema")
		}

		if err := svcs.templates.Watch(ctx); err != nil {
			return errs.Wrap(err, "watch prompt template")
		}

		server := &http.Server{
			Addr: addr,
			Handler: httpapi.NewRouter(httpapi.Services{
				Staging:  svcs.staging,
				Generate: svcs.generate,
				Publish:  svcs.publish,
			}),
		}

		logging.Info(
			ctx,
			"api server started",
			slog.String("addr", addr),
			slog.Bool("publish_enabled", app.Config.Publish.Enabled),
			slog.Bool("publish_dry_run", app.Config.Publish.DryRun),
		)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "api server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve api")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "API listen address")
}
