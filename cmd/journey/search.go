package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/whimxiqal/journey-sub005/internal/config"
	"github.com/whimxiqal/journey-sub005/internal/events"
	"github.com/whimxiqal/journey-sub005/internal/flags"
	"github.com/whimxiqal/journey-sub005/internal/session"
	"github.com/whimxiqal/journey-sub005/internal/transport/httpapi"
)

type searchArgs struct {
	from      string
	to        []string
	near      float64
	expr      string
	modes     string
	portModes string
	flags     []string
	heuristic string
	steps     bool
}

func newSearchCmd() *cobra.Command {
	var a searchArgs
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run one search against the configured world and print the itinerary",
		Example: `  journey search --from overworld:0,7,0 --to overworld:20,7,4 --modes walk,jump
  journey search --from overworld:0,7,0 --expr 'standable && x > 30' --modes walk,jump,climb`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runSearch(cmd, cfg, a, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&a.from, "from", "", "origin cell, domain:x,y,z")
	f.StringSliceVar(&a.to, "to", nil, "destination cell(s); several make an any-of goal")
	f.Float64Var(&a.near, "near", 0, "completion distance for a single --to")
	f.StringVar(&a.expr, "expr", "", "predicate goal, e.g. 'standable && y >= 64'")
	f.StringVar(&a.modes, "modes", "walk,jump", "comma-separated mode types")
	f.StringVar(&a.portModes, "port-modes", "", "port mode types the router may use (default all)")
	f.StringArrayVar(&a.flags, "flag", nil, "search flag, name or name=value (repeatable)")
	f.StringVar(&a.heuristic, "heuristic", "", "euclidean or planar (default from config)")
	f.BoolVar(&a.steps, "steps", false, "include per-cell steps in the output")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func (a searchArgs) request() (httpapi.SearchRequest, error) {
	origin, err := parseCell(a.from)
	if err != nil {
		return httpapi.SearchRequest{}, err
	}
	req := httpapi.SearchRequest{
		Caller:    "cli",
		Origin:    origin,
		Modes:     splitList(a.modes),
		PortModes: splitList(a.portModes),
		Heuristic: a.heuristic,
	}
	switch {
	case a.expr != "" && len(a.to) > 0:
		return req, fmt.Errorf("--expr and --to are exclusive")
	case a.expr != "":
		req.Goal = httpapi.GoalJSON{Kind: "expr", Expr: a.expr}
	case len(a.to) == 1:
		c, err := parseCell(a.to[0])
		if err != nil {
			return req, err
		}
		req.Goal = httpapi.GoalJSON{Kind: "at", Cell: &c}
		if a.near > 0 {
			req.Goal.Kind = "near"
			req.Goal.Distance = a.near
		}
	case len(a.to) > 1:
		req.Goal = httpapi.GoalJSON{Kind: "any_of"}
		for _, s := range a.to {
			c, err := parseCell(s)
			if err != nil {
				return req, err
			}
			req.Goal.Cells = append(req.Goal.Cells, c)
		}
	default:
		return req, fmt.Errorf("one of --to or --expr is required")
	}
	return req, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type searchResult struct {
	State     string                `json:"state"`
	Reason    string                `json:"reason,omitempty"`
	Error     string                `json:"error,omitempty"`
	Steps     int                   `json:"steps"`
	ElapsedMS int64                 `json:"elapsed_ms"`
	Itinerary *events.ItineraryJSON `json:"itinerary,omitempty"`
}

func runSearch(cmd *cobra.Command, cfg config.Config, a searchArgs, out io.Writer) error {
	body, err := a.request()
	if err != nil {
		return err
	}
	req, err := body.Request(cfg.Search.CompletionDistance)
	if err != nil {
		return err
	}
	set, err := flags.Parse(a.flags)
	if err != nil {
		return err
	}
	req.Flags = set

	rt, err := buildRuntime(cfg, runtimeOpts{LoadSnapshot: true}, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	s, err := session.New(rt.env(), req)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	s.Run(ctx, cfg.Search.StepsPerTick)

	_, _, steps := s.Progress()
	res := searchResult{
		State:     s.State().String(),
		Reason:    string(s.Reason()),
		Steps:     steps,
		ElapsedMS: s.Elapsed().Milliseconds(),
	}
	if err := s.Err(); err != nil {
		res.Error = err.Error()
	}
	if it := s.Itinerary(); it != nil {
		sum := events.Summarize(it, a.steps)
		res.Itinerary = &sum
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if s.State() != session.StoppedSuccessful {
		return fmt.Errorf("search %s", res.State)
	}
	return nil
}
