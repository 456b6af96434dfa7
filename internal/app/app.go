package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/groupsync/internal/api"
	"github.com/five82/groupsync/internal/config"
	"github.com/five82/groupsync/internal/engine"
	"github.com/five82/groupsync/internal/prefs"
	"github.com/five82/groupsync/internal/ui"
)

const preflightTimeout = 3 * time.Second

// Options configure the application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/groupsync/prefs.toml
	PollEvery  int    // seconds; zero uses the config value
	Verbose    bool
}

// Run boots the TUI and the reconciliation engine until the context is
// cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.PollEvery > 0 {
		cfg.PollInterval = time.Duration(opts.PollEvery) * time.Second
	}
	if opts.Verbose {
		cfg.LogLevel = slog.LevelDebug
	}

	logger, closer, err := openLog(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closer.Close()

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	client, err := api.NewClient(api.Options{
		BaseURL:      cfg.APIURL,
		Token:        cfg.Token,
		Timezone:     cfg.Timezone,
		RequestRate:  cfg.RequestRate,
		RequestBurst: cfg.RequestBurst,
	})
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	entities, err := preflight(ctx, client, logger)
	if err != nil {
		return err
	}

	eng := engine.New(client, engine.Options{
		PollInterval: cfg.PollInterval,
		TickInterval: cfg.TickInterval,
		HealTicks:    cfg.HealTicks,
		Logger:       logger,
	})
	defer eng.Close()

	logger.Info("groupsync starting", "api_url", cfg.APIURL, "entities", len(entities))

	g, gctx := errgroup.WithContext(ctx)
	uiCtx, stopUI := context.WithCancel(gctx)
	defer stopUI()

	g.Go(func() error {
		return eng.Run(uiCtx)
	})
	g.Go(func() error {
		defer stopUI()
		return ui.Run(uiCtx, ui.Options{
			Engine:    eng,
			Entities:  client,
			Initial:   entities,
			ThemeName: userPrefs.Theme,
			Prefs:     userPrefs,
			PrefsPath: opts.PrefsPath,
			LogPath:   cfg.LogPath(),
			Logger:    logger,
		})
	})

	err = g.Wait()
	logger.Info("groupsync stopped")
	return err
}

// preflight loads the entity list. An unauthorized response is fatal; any
// other failure is logged and the UI starts empty and offline.
func preflight(ctx context.Context, client *api.Client, logger *slog.Logger) ([]api.Entity, error) {
	pctx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	entities, err := client.FetchEntities(pctx)
	if err == nil {
		return entities, nil
	}
	if api.IsUnauthorized(err) {
		return nil, fmt.Errorf("scheduling service rejected credentials: %w", err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}
	logger.Warn("scheduling service unreachable at startup", "error", err)
	return nil, nil
}
