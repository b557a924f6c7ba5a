package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ykvlv/reminder-bot/internal/app"
	"github.com/ykvlv/reminder-bot/internal/config"
	"github.com/ykvlv/reminder-bot/internal/domain"
	"github.com/ykvlv/reminder-bot/internal/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reminder-bot",
		Short:         "Telegram reminder bot with an HTTP ingestion API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the bot, dispatcher and HTTP API",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		newExtractCmd(),
		&cobra.Command{
			Use:   "purge",
			Short: "Delete reminders that fell out of the catch-up window",
			Args:  cobra.NoArgs,
			RunE:  runPurge,
		},
	)
	return root
}

// mustSetup loads config and logger; without them there is nothing to log to.
func mustSetup(load func() (config.Config, error)) (config.Config, *zap.Logger) {
	cfg, err := load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	return cfg, log
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log := mustSetup(config.Load)
	defer func() { _ = log.Sync() }()

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("app init failed", zap.Error(err))
		return err
	}
	if err := application.Run(cmd.Context()); err != nil {
		log.Error("app run failed", zap.Error(err))
		return err
	}
	return nil
}

// runPurge needs only the store, so it runs without BOT_TOKEN.
func runPurge(cmd *cobra.Command, _ []string) error {
	cfg, log := mustSetup(config.LoadStorage)
	defer func() { _ = log.Sync() }()

	n, err := app.Purge(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "purged %d reminder(s)\n", n)
	return nil
}

func newExtractCmd() *cobra.Command {
	locale := os.Getenv("LOCALE")
	if locale == "" {
		locale = domain.LocaleRU
	}

	cmd := &cobra.Command{
		Use:   "extract <text>",
		Short: "Print the UTC minute a reminder text resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := domain.NewExtractor(locale)
			if err != nil {
				return err
			}
			at, err := ex.Extract(args[0], time.Now())
			if err != nil {
				return fmt.Errorf("%w, try: %q", err, ex.Hint())
			}
			fmt.Fprintln(cmd.OutOrStdout(), domain.FormatMinute(at))
			return nil
		},
	}
	cmd.Flags().StringVar(&locale, "locale", locale, "extraction locale (ru|en)")
	return cmd
}
