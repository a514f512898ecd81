package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		caller string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recorded path legs from the sqlite index, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cfg, runtimeOpts{}, nil)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.index == nil {
				return errors.New("index disabled")
			}
			legs, err := rt.index.Legs(cmd.Context(), caller, limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(legs)
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "only this caller's legs")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	return cmd
}
