package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/forumrelay/internal/tui"
)

var watchURL string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live relay events from a running service",
	Long: `Opens a terminal view of a running forumrelay service. It subscribes to the
service's GET /events stream and shows relay counters and recent events.
The connection is retried every few seconds if it drops.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "",
		"base URL of the service (default http://127.0.0.1:<server.port>)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	base := watchURL
	if base == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		base = fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	}
	app := tui.NewApp(strings.TrimRight(base, "/") + "/events")
	return app.Run()
}
