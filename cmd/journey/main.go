// Command journey runs the pathfinding server and offers one-shot searches and
// port administration from the command line.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/whimxiqal/journey-sub005/internal/config"
	"github.com/whimxiqal/journey-sub005/internal/events"
)

const defaultConfigPath = "./configs/journey.yaml"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "journey",
		Short:         "Multi-domain pathfinding server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", defaultConfigPath, "config yaml (defaults are used when the default path is missing)")
	root.AddCommand(newServeCmd(), newSearchCmd(), newPortsCmd(), newReplayCmd(), newHistoryCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads --config. A missing file at the default path falls back to
// built-in defaults; any other missing path is an error.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	path = strings.TrimSpace(path)
	if path == defaultConfigPath {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	return config.Load(path)
}

// parseCell reads "domain:x,y,z".
func parseCell(s string) (events.CellJSON, error) {
	domain, coords, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || domain == "" {
		return events.CellJSON{}, fmt.Errorf("cell %q: want domain:x,y,z", s)
	}
	parts := strings.Split(coords, ",")
	if len(parts) != 3 {
		return events.CellJSON{}, fmt.Errorf("cell %q: want domain:x,y,z", s)
	}
	var xyz [3]int64
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return events.CellJSON{}, fmt.Errorf("cell %q: %w", s, err)
		}
		xyz[i] = v
	}
	return events.CellJSON{Domain: domain, X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}
