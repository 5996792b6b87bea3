package cli

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rvasiliev/feedping/internal/config"
	"github.com/rvasiliev/feedping/internal/feed"
	"github.com/rvasiliev/feedping/internal/history"
	"github.com/rvasiliev/feedping/internal/notify"
	"github.com/rvasiliev/feedping/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle over all feed groups",
	RunE:  syncAction,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func syncAction(cmd *cobra.Command, _ []string) error {
	// A .env next to the working dir is optional.
	_ = godotenv.Load()

	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.Log.Level)

	groups, err := config.LoadGroups(cfg.Feeds.Dir)
	if err != nil {
		return fmt.Errorf("load feed groups: %w", err)
	}

	db, err := history.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer func() { _ = db.Close() }()

	s := buildSyncer(cfg, db, log)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rep, err := s.Run(ctx, groups)
	if err != nil {
		return fmt.Errorf("sync cycle: %w", err)
	}

	if cfg.Storage.RetainDays > 0 {
		pruned, err := db.Prune(ctx, cfg.Storage.RetainDays)
		if err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
		if pruned > 0 {
			log.Info().Int64("pruned", pruned).Msg("old history pruned")
		}
	}

	fmt.Printf("Dispatched %d of %d new entries from %d feeds", rep.Dispatched, rep.New, rep.Feeds)
	if rep.FailedFeeds > 0 {
		fmt.Printf(" (%d feeds failed)", rep.FailedFeeds)
	}
	if rep.Failed > 0 {
		fmt.Printf(" (%d dispatches failed)", rep.Failed)
	}
	fmt.Println()

	return nil
}

func buildSyncer(cfg *config.Config, db *history.Store, log zerolog.Logger) *syncer.Syncer {
	fetcher := feed.NewFetcher(cfg.Ntfy.UserAgent, cfg.Ntfy.RequestTimeout.Duration)
	client := notify.NewClient(
		cfg.Ntfy.BaseURL,
		cfg.Ntfy.Token,
		cfg.Ntfy.UserAgent,
		cfg.Ntfy.RequestTimeout.Duration,
		cfg.Ntfy.MaxRPS,
	)
	pacer := notify.NewPacer(cfg.Pacing.MinDelay.Duration, cfg.Pacing.MaxDelay.Duration)
	return syncer.New(fetcher, db, client, pacer, cfg.Feeds.MaxPerFeed, log)
}
