package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/remarkbridge/internal/api"
	"github.com/remarkbridge/internal/config"
	"github.com/remarkbridge/internal/correlate"
	"github.com/remarkbridge/internal/gitsync"
	"github.com/remarkbridge/internal/hook"
	"github.com/remarkbridge/internal/provider/github"
	"github.com/remarkbridge/internal/provider/gitlab"
	"github.com/remarkbridge/internal/remark"
	"github.com/remarkbridge/internal/settings"
	"github.com/remarkbridge/internal/tracker"
	"github.com/remarkbridge/internal/tracker/trackerdb"
)

// ServeCommand returns the CLI command for starting the webhook server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the remarkbridge webhook server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the webhook server (overrides config)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if port := c.Int("port"); port != 0 {
		cfg.Server.Port = port
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	ctx := context.Background()
	db, err := trackerdb.Connect(ctx, cfg.Tracker.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to tracker database: %w", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	processor, err := buildProcessor(cfg, db.Stores(), logger)
	if err != nil {
		return err
	}

	server, err := api.NewServer(cfg.Server.Port, cfg.Server.RateLimit, processor, logger)
	if err != nil {
		return err
	}

	logger.Info().Int("port", cfg.Server.Port).Msg("starting webhook server")
	return server.Start()
}

func buildProcessor(cfg *config.Config, stores tracker.Stores, logger zerolog.Logger) (*hook.Processor, error) {
	rules := make([]settings.Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, settings.Rule{
			ID:                 r.ID,
			ProjectPattern:     r.ProjectPattern,
			Enabled:            r.Enabled,
			RemarkTracker:      r.RemarkTracker,
			RemarkClosedStatus: r.RemarkClosedStatus,
			ResolveKeyword:     r.ResolveKeyword,
		})
	}
	resolver, err := settings.NewResolver(rules)
	if err != nil {
		return nil, fmt.Errorf("invalid hook rules: %w", err)
	}

	correlator := correlate.New(stores.Issues, logger)
	markup := tracker.MarkupFor(cfg.Tracker.Markup)

	return hook.NewProcessor(
		[]hook.Normalizer{github.Normalizer{}, gitlab.Normalizer{}},
		stores,
		resolver,
		gitsync.New(cfg.Git.Bin, logger),
		correlator,
		remark.New(stores.Issues, correlator, markup, logger),
		logger,
	), nil
}
