package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"
	archivebiz "github.com/lk2023060901/coldvault-backend/internal/archive/biz"
	archivedata "github.com/lk2023060901/coldvault-backend/internal/archive/data"
	"github.com/lk2023060901/coldvault-backend/internal/conf"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/database"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	webhookbiz "github.com/lk2023060901/coldvault-backend/internal/webhook/biz"
	webhookdata "github.com/lk2023060901/coldvault-backend/internal/webhook/data"
	"github.com/spf13/cobra"
)

// app is filled in by the root command before any subcommand runs
type app struct {
	configPath string
	verbose    bool
	config     *conf.Config
	logger     *logger.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "archivectl",
		Short:         "ColdVault operator tool",
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "config file path")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newMigrateCommand(a),
		newEventsCommand(a),
		newTokenCommand(a),
	)
	return cmd
}

func (a *app) init() error {
	// .env files are optional; missing ones are skipped
	envFiles := []string{".env", ".env.local"}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
		_ = godotenv.Load(filepath.Join(filepath.Dir(a.configPath), f))
	}

	config, err := conf.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.config = config

	log, err := newCLILogger(config.Log, a.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = log
	return nil
}

// newCLILogger writes to the terminal only; verbose switches to debug output
func newCLILogger(cfg logger.Config, verbose bool) (*logger.Logger, error) {
	if verbose {
		return logger.Development()
	}
	return logger.NewWithOptions(
		logger.WithLevel(cfg.Level),
		logger.WithFormat(cfg.Format),
		logger.WithOutput("console"),
		logger.WithService("archivectl"),
	)
}

func (a *app) openDB() (*database.DB, error) {
	return database.New(&a.config.Database, a.logger)
}

// webhookUseCase wires the router without redis or the object store
func (a *app) webhookUseCase(db *database.DB) *webhookbiz.WebhookUseCase {
	reconciler := archivebiz.NewRestoreReconciler(
		archivedata.NewFileRepo(db),
		archivedata.NewRetrievalRepo(db),
		a.logger,
	)
	return webhookbiz.NewWebhookUseCase(
		webhookdata.NewEventRepo(db),
		nil,
		reconciler,
		webhookbiz.NoopVerifier{},
		nil,
		a.config.Webhook.Source,
		a.logger,
	)
}

func (a *app) cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
