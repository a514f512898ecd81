package session

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/whimxiqal/journey-sub005/internal/cache"
	"github.com/whimxiqal/journey-sub005/internal/events"
	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/ports"
	"github.com/whimxiqal/journey-sub005/internal/terrain"
	"github.com/whimxiqal/journey-sub005/internal/trial"
)

// Record is one searched (not cached) successful leg.
type Record struct {
	SessionID string
	Caller    string
	Path      model.Path
	Modes     model.ModeTypeSet
	Steps     int
	Elapsed   time.Duration
}

// Reporter is a write-only analytics sink. It is never read back.
type Reporter interface {
	Report(ctx context.Context, r Record) error
}

// Reporters fans a record out to several reporters.
type Reporters []Reporter

func (rs Reporters) Report(ctx context.Context, r Record) error {
	var errs []error
	for _, rep := range rs {
		if rep == nil {
			continue
		}
		if err := rep.Report(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Settings struct {
	Heuristic trial.Heuristic
	// Budget applies to each leg's trial.
	Budget trial.Budget
}

// Env is everything a session needs from the process around it.
type Env struct {
	Oracle   terrain.Oracle
	Ports    ports.Store
	Cache    cache.Cache
	Events   events.Sink
	Reporter Reporter
	Logger   *log.Logger
	Settings Settings
	// CellWeight adds a routing penalty to a port endpoint. Optional; +Inf
	// makes the endpoint unusable.
	CellWeight func(model.Cell) float64
	Now        func() time.Time
}

func (e Env) withDefaults() Env {
	if e.Logger == nil {
		e.Logger = log.New(io.Discard, "", 0)
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	return e
}
