package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rvasiliev/feedping/internal/config"
	"github.com/rvasiliev/feedping/internal/history"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, history store, and ntfy reachability",
	RunE:  doctorAction,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(_ *cobra.Command, _ []string) error {
	_ = godotenv.Load()
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		return fmt.Errorf("some checks failed")
	}
	printCheck(true, "config.yaml (ntfy %s, interval %s)", cfg.Ntfy.BaseURL, cfg.Sync.Interval.Duration)

	// Feed groups
	groups, err := config.LoadGroups(cfg.Feeds.Dir)
	if err != nil {
		printCheck(false, "feed groups: %v", err)
		ok = false
	} else {
		sources := 0
		for _, g := range groups {
			sources += len(g.Sources)
		}
		printCheck(true, "feed groups (%d groups, %d sources)", len(groups), sources)
	}

	// Token
	if cfg.Ntfy.TokenEnv != "" {
		if cfg.Ntfy.Token == "" {
			printCheck(false, "ntfy token: %s is set in config but empty in environment", cfg.Ntfy.TokenEnv)
			ok = false
		} else {
			printCheck(true, "ntfy token from %s", cfg.Ntfy.TokenEnv)
		}
	}

	// History store
	db, err := history.Open(cfg.Storage.Path)
	if err != nil {
		printCheck(false, "history store: %v", err)
		ok = false
	} else {
		n, cerr := db.Count(context.Background())
		if cerr != nil {
			printCheck(false, "history store: %v", cerr)
			ok = false
		} else {
			printCheck(true, "history store %s (%d notified entries)", cfg.Storage.Path, n)
		}
		_ = db.Close()
	}

	// ntfy endpoint: any HTTP response counts as reachable.
	req, err := http.NewRequest(http.MethodHead, cfg.Ntfy.BaseURL, nil)
	if err == nil {
		client := &http.Client{Timeout: cfg.Ntfy.RequestTimeout.Duration}
		resp, herr := client.Do(req)
		if herr != nil {
			printCheck(false, "ntfy endpoint %s: %v", cfg.Ntfy.BaseURL, herr)
			ok = false
		} else {
			_ = resp.Body.Close()
			printCheck(true, "ntfy endpoint %s", cfg.Ntfy.BaseURL)
		}
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}
