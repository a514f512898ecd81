package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"

	"github.com/spf13/cobra"

	"github.com/whimxiqal/journey-sub005/internal/events"
	persistlog "github.com/whimxiqal/journey-sub005/internal/persistence/log"
	"github.com/whimxiqal/journey-sub005/internal/persistence/snapshot"
)

func newReplayCmd() *cobra.Command {
	var snapPath, dataDir string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Summarize a snapshot and the recorded event journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if snapPath == "" {
				snapPath = cfg.Cache.SnapshotPath
			}
			if dataDir == "" {
				dataDir = cfg.Server.DataDir
			}
			return replay(cmd.OutOrStdout(), snapPath, dataDir)
		},
	}
	cmd.Flags().StringVar(&snapPath, "snapshot", "", "snapshot path (default cache.snapshot_path)")
	cmd.Flags().StringVar(&dataDir, "data", "", "data dir holding events/ (default server.data_dir)")
	return cmd
}

// callerTally counts one caller's searches by terminal state.
type callerTally struct {
	Started  int
	Stopped  map[string]int
	Journeys int
	Arrived  int
}

func replay(out io.Writer, snapPath, dataDir string) error {
	if snapPath != "" {
		snap, err := snapshot.ReadSnapshot(snapPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			fmt.Fprintf(out, "snapshot %s: none\n", snapPath)
		case err != nil:
			return fmt.Errorf("read snapshot: %w", err)
		default:
			fmt.Fprintf(out, "snapshot v%d created=%s chunks=%d cache_entries=%d\n",
				snap.Header.Version, snap.Header.CreatedAt, len(snap.Chunks), len(snap.Cache))
		}
	}

	byType := map[string]int{}
	callers := map[string]*callerTally{}
	tally := func(caller string) *callerTally {
		c := callers[caller]
		if c == nil {
			c = &callerTally{Stopped: map[string]int{}}
			callers[caller] = c
		}
		return c
	}

	err := persistlog.ReadJournal(dataDir, func(env events.Envelope) error {
		byType[env.Type]++
		var d struct {
			Caller  string `json:"caller"`
			State   string `json:"state"`
			Arrived bool   `json:"arrived"`
		}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &d); err != nil {
				return fmt.Errorf("%s event: %w", env.Type, err)
			}
		}
		switch env.Type {
		case "search_started":
			tally(d.Caller).Started++
		case "search_stopped":
			tally(d.Caller).Stopped[d.State]++
		case "journey":
			c := tally(d.Caller)
			c.Journeys++
			if d.Arrived {
				c.Arrived++
			}
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(out, "journal %s: none\n", dataDir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(out, "events %-16s %d\n", t, byType[t])
	}

	names := make([]string, 0, len(callers))
	for n := range callers {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		c := callers[n]
		fmt.Fprintf(out, "caller %q started=%d successful=%d failed=%d cancelled=%d journey_updates=%d arrived=%d\n",
			n, c.Started, c.Stopped["stopped_successful"], c.Stopped["stopped_failed"], c.Stopped["cancelled"], c.Journeys, c.Arrived)
	}
	return nil
}
