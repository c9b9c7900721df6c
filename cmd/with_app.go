package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"smartreply/internal/bootstrap"
	"smartreply/internal/bootstrap/logging"
	"smartreply/internal/errs"
	"smartreply/internal/infrastructure/completion"
	"smartreply/internal/infrastructure/gbp"
	"smartreply/internal/infrastructure/persistence/sqlite/repository"
	"smartreply/internal/infrastructure/persistence/sqlite/uow"
	"smartreply/internal/infrastructure/prompt"
	"smartreply/internal/usecase/generate"
	"smartreply/internal/usecase/publish"
	"smartreply/internal/usecase/staging"
)

type services struct {
	staging   *staging.Service
	generate  *generate.Service
	publish   *publish.Service
	templates *prompt.Store
}

func buildServices(ctx context.Context, app *bootstrap.App) (*services, error) {
	cfg := app.Config

	ledger := repository.NewStagingRepository(app.DB)
	unitOfWork := uow.NewUnitOfWork(app.DB)
	stagingSvc := staging.NewService(ledger, unitOfWork, cfg.Staging.TTL())

	templates, err := prompt.NewStore(cfg.Prompt.TemplateFile)
	if err != nil {
		return nil, errs.Wrap(err, "load prompt template")
	}

	completer := completion.NewOpenAICompleter(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Timeout())

	platform := gbp.NewClient(ctx, gbp.Config{
		BaseURL:      cfg.Platform.BaseURL,
		TokenURL:     cfg.Platform.TokenURL,
		ClientID:     cfg.Platform.ClientID,
		ClientSecret: cfg.Platform.ClientSecret,
		RefreshToken: cfg.Platform.RefreshToken,
		Timeout:      cfg.Platform.Timeout(),
	})

	return &services{
		staging:   stagingSvc,
		generate:  generate.NewService(stagingSvc, completer, templates),
		publish: publish.NewService(stagingSvc, platform, publish.Config{
			Enabled:          cfg.Publish.Enabled,
			DryRun:           cfg.Publish.DryRun,
			AllowClientReply: cfg.Publish.AllowClientReply,
			MaxReplyBytes:    cfg.Platform.MaxReplyBytes,
		}),
		templates: templates,
	}, nil
}

func withApp(run func(cmd *cobra.Command, app *bootstrap.App, svcs *services) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		app, err := bootstrap.New(ctx, cfgFile)
		if err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "bootstrap application")
		}

		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := app.Close(closeCtx); err != nil {
				logging.Error(ctx, "application close failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		svcs, err := buildServices(ctx, app)
		if err != nil {
			logging.Error(ctx, "build services failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "build services")
		}

		if err := run(cmd, app, svcs); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
