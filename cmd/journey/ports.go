package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whimxiqal/journey-sub005/internal/events"
	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/ports"
	"github.com/whimxiqal/journey-sub005/internal/transport/httpapi"
)

func newPortsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List and edit the persistent port store",
	}
	cmd.AddCommand(newPortsListCmd(), newPortsAddCmd(), newPortsRemoveCmd())
	return cmd
}

// withPorts opens the configured port store. Without an index the store is
// in-memory and edits are lost on exit.
func withPorts(cmd *cobra.Command, fn func(store ports.Store) error) error {
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
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: index disabled, port changes will not persist")
	}
	return fn(rt.ports)
}

func newPortsListCmd() *cobra.Command {
	var modes string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print ports as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPorts(cmd, func(store ports.Store) error {
				set, err := model.ParseModeTypeSet(modes)
				if err != nil {
					return err
				}
				all, err := store.All(cmd.Context(), set)
				if err != nil {
					return err
				}
				out := make([]httpapi.PortJSON, 0, len(all))
				for _, p := range all {
					out = append(out, httpapi.PortJSON{
						Origin:      events.Cell(p.Origin),
						Destination: events.Cell(p.Destination),
						Mode:        p.Mode.String(),
						Cost:        p.Cost,
					})
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			})
		},
	}
	cmd.Flags().StringVar(&modes, "modes", "", "only ports with these mode types (comma-separated)")
	return cmd
}

type portArgs struct {
	from, to, mode string
	cost           float64
}

func (a portArgs) port() (model.Port, error) {
	from, err := parseCell(a.from)
	if err != nil {
		return model.Port{}, err
	}
	to, err := parseCell(a.to)
	if err != nil {
		return model.Port{}, err
	}
	return httpapi.PortJSON{Origin: from, Destination: to, Mode: a.mode, Cost: a.cost}.Port()
}

func portFlags(cmd *cobra.Command, a *portArgs) {
	cmd.Flags().StringVar(&a.from, "from", "", "origin cell, domain:x,y,z")
	cmd.Flags().StringVar(&a.to, "to", "", "destination cell, domain:x,y,z")
	cmd.Flags().StringVar(&a.mode, "mode", "nether_portal", "port mode type")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
}

func newPortsAddCmd() *cobra.Command {
	var a portArgs
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a port, or update the cost of an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.port()
			if err != nil {
				return err
			}
			if err := ports.Check(p); err != nil {
				return err
			}
			return withPorts(cmd, func(store ports.Store) error {
				if err := store.Add(cmd.Context(), p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", p)
				return nil
			})
		},
	}
	portFlags(cmd, &a)
	cmd.Flags().Float64Var(&a.cost, "cost", 1, "traversal cost")
	return cmd
}

func newPortsRemoveCmd() *cobra.Command {
	var a portArgs
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a port",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.port()
			if err != nil {
				return err
			}
			return withPorts(cmd, func(store ports.Store) error {
				ok, err := store.Remove(cmd.Context(), p.Key())
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no such port: %s", p)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", p)
				return nil
			})
		},
	}
	portFlags(cmd, &a)
	return cmd
}
