package cli

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/rvasiliev/feedping/internal/config"
	"github.com/rvasiliev/feedping/internal/history"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run sync cycles on the configured interval until terminated",
	RunE:  serveAction,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serveAction(_ *cobra.Command, _ []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		groupsMu sync.Mutex
		dirty    atomic.Bool
		running  sync.Mutex
	)

	// Reload group files when the feeds directory changes, before the
	// next cycle rather than mid-cycle.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("feed watcher unavailable, edits need a restart")
	} else {
		defer func() { _ = watcher.Close() }()
		if err := watcher.Add(cfg.Feeds.Dir); err != nil {
			log.Warn().Err(err).Str("dir", cfg.Feeds.Dir).Msg("cannot watch feeds dir")
		}
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-watcher.Events:
					if !ok {
						return
					}
					if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
						dirty.Store(true)
					}
				case werr, ok := <-watcher.Errors:
					if !ok {
						return
					}
					log.Warn().Err(werr).Msg("feed watcher error")
				}
			}
		}()
	}

	runCycle := func() {
		// Skip the tick if the previous cycle is still going.
		if !running.TryLock() {
			log.Warn().Msg("previous cycle still running, skipping tick")
			return
		}
		defer running.Unlock()

		if dirty.Swap(false) {
			reloaded, err := config.LoadGroups(cfg.Feeds.Dir)
			if err != nil {
				log.Error().Err(err).Msg("feed group reload failed, keeping previous set")
			} else {
				groupsMu.Lock()
				groups = reloaded
				groupsMu.Unlock()
				log.Info().Int("groups", len(reloaded)).Msg("feed groups reloaded")
			}
		}

		groupsMu.Lock()
		current := groups
		groupsMu.Unlock()

		if _, err := s.Run(ctx, current); err != nil {
			// A failed cycle never stops the service; the next tick retries.
			log.Error().Err(err).Msg("sync cycle failed")
			return
		}

		if cfg.Storage.RetainDays > 0 {
			if pruned, err := db.Prune(ctx, cfg.Storage.RetainDays); err != nil {
				log.Error().Err(err).Msg("history prune failed")
			} else if pruned > 0 {
				log.Info().Int64("pruned", pruned).Msg("old history pruned")
			}
		}
	}

	log.Info().
		Dur("interval", cfg.Sync.Interval.Duration).
		Int("groups", len(groups)).
		Msg("service started")

	c := cron.New()
	if _, err := c.AddFunc("@every "+cfg.Sync.Interval.Duration.String(), runCycle); err != nil {
		return fmt.Errorf("schedule sync: %w", err)
	}

	runCycle()
	c.Start()

	<-ctx.Done()
	log.Info().Msg("shutting down, waiting for in-flight cycle")

	// Stop scheduling and let a running cycle finish its dispatch.
	<-c.Stop().Done()
	running.Lock()

	log.Info().Msg("service stopped")
	return nil
}
