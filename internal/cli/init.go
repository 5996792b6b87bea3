package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rvasiliev/feedping/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with example files",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(_ *cobra.Command, _ []string) error {
	feedsDir := filepath.Join(configDir, config.DefaultFeedsDir)
	if err := os.MkdirAll(feedsDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	created := 0

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	groupPath := filepath.Join(feedsDir, "news.yaml")
	wrote, err = writeIfNotExists(groupPath, []byte(exampleGroup))
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	if created == 0 {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s with %d config files.\n", configDir, created)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# feedping configuration

ntfy:
  base_url: https://ntfy.sh
  token_env: NTFY_TOKEN
  request_timeout: 20s
  max_rps: 5

feeds:
  dir: feeds
  max_per_feed: 3

storage:
  path: .feedping/history.db
  retain_days: 0     # 0 keeps history forever

sync:
  interval: 10m

pacing:
  min_delay: 250ms   # gap before a priority-5 notification
  max_delay: 10s     # gap before a priority-1 notification

log:
  level: info
`

const exampleGroup = `# Feed group "news": every source here publishes to the ntfy topic "news".
# Priority runs 1 (lowest, slowest pacing) to 5 (urgent, near-immediate).

- name: Example Daily
  url: https://example.com/rss.xml
  priority: 3
  tags: [newspaper]
# - name: Status Page
#   url: https://status.example.com/feed.atom
#   priority: 5
#   icon: https://example.com/icon.png
#   tags: [warning, ops]
`
