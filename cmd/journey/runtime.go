package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/whimxiqal/journey-sub005/internal/cache"
	"github.com/whimxiqal/journey-sub005/internal/config"
	"github.com/whimxiqal/journey-sub005/internal/events"
	"github.com/whimxiqal/journey-sub005/internal/metrics"
	"github.com/whimxiqal/journey-sub005/internal/persistence/archive"
	"github.com/whimxiqal/journey-sub005/internal/persistence/indexdb"
	persistlog "github.com/whimxiqal/journey-sub005/internal/persistence/log"
	"github.com/whimxiqal/journey-sub005/internal/persistence/snapshot"
	"github.com/whimxiqal/journey-sub005/internal/ports"
	"github.com/whimxiqal/journey-sub005/internal/session"
	"github.com/whimxiqal/journey-sub005/internal/terrain"
	"github.com/whimxiqal/journey-sub005/internal/transport/observer"
)

// runtime is everything built from one config: terrain, stores, sinks.
type runtime struct {
	cfg    config.Config
	logger *log.Logger

	world    *terrain.World
	cache    cache.Cache
	memCache *cache.Memory
	redis    *cache.Redis
	ports    ports.Store

	index   *indexdb.SQLiteIndex
	remote  *indexdb.RemoteIndex
	journal *persistlog.EventJournal
	metrics *metrics.Metrics
	hub     *observer.Hub
}

type runtimeOpts struct {
	// Server enables metrics, observers and the event journal.
	Server bool
	// LoadSnapshot restores terrain and cached legs.
	LoadSnapshot bool
}

func newLogger(component string) *log.Logger {
	return log.New(os.Stdout, "["+component+"] ", log.LstdFlags|log.Lmicroseconds)
}

func buildRuntime(cfg config.Config, opts runtimeOpts, logger *log.Logger) (*runtime, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	rt := &runtime{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = rt.Close()
		}
	}()

	w, err := cfg.World()
	if err != nil {
		return nil, err
	}
	rt.world = w

	switch cfg.Cache.Backend {
	case "memory":
		rt.memCache = cache.NewMemory()
		rt.cache = rt.memCache
	case "redis":
		rt.redis = cache.NewRedis(cfg.Cache.RedisAddr, "", 0, cache.WithPrefix(cfg.Cache.Prefix), cache.WithTTL(cfg.Cache.TTL))
		rt.cache = rt.redis
	}

	if opts.LoadSnapshot {
		if err := rt.loadSnapshot(); err != nil {
			return nil, err
		}
	}

	configured, err := cfg.PortList()
	if err != nil {
		return nil, err
	}
	if !cfg.Index.Disabled && strings.TrimSpace(cfg.Index.Path) != "" {
		idx, err := indexdb.OpenSQLite(cfg.Index.Path, newLogger("indexdb"))
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		rt.index = idx
		store := idx.Ports()
		for _, p := range configured {
			if err := store.Add(context.Background(), p); err != nil {
				return nil, fmt.Errorf("seed port %s: %w", p, err)
			}
		}
		rt.ports = store
	} else {
		mem, err := ports.NewMemory(configured...)
		if err != nil {
			return nil, err
		}
		rt.ports = mem
	}

	if ep := strings.TrimSpace(cfg.Index.RemoteEndpoint); ep != "" {
		remote, err := indexdb.OpenRemote(indexdb.RemoteConfig{
			Endpoint: ep,
			Token:    cfg.Index.RemoteToken,
			Source:   cfg.Index.RemoteSource,
			Logger:   newLogger("remote-index"),
		})
		if err != nil {
			return nil, fmt.Errorf("open remote index: %w", err)
		}
		rt.remote = remote
	}

	if opts.Server {
		rt.metrics = metrics.New(cfg.Server.StepEvents)
		rt.hub = observer.NewHub(cfg.Server.ObserverBuffer, newLogger("observer"))
		if cfg.Server.Journal {
			jl := newLogger("journal")
			rt.journal = persistlog.NewEventJournal(cfg.Server.DataDir, func(err error) { jl.Printf("write: %v", err) })
		}
	}
	ok = true
	return rt, nil
}

func (rt *runtime) sink() events.Sink {
	withSteps := rt.cfg.Server.StepEvents
	var sinks []events.Sink
	if rt.metrics != nil {
		sinks = append(sinks, rt.metrics.Sink())
	}
	if rt.hub != nil {
		sinks = append(sinks, rt.hub.Sink(withSteps))
	}
	if rt.journal != nil {
		sinks = append(sinks, rt.journal.Sink(withSteps))
	}
	return events.Fanout(sinks...)
}

func (rt *runtime) reporter() session.Reporter {
	var reps session.Reporters
	if rt.index != nil {
		reps = append(reps, rt.index)
	}
	if rt.remote != nil {
		reps = append(reps, rt.remote)
	}
	if len(reps) == 0 {
		return nil
	}
	return reps
}

func (rt *runtime) env() session.Env {
	return session.Env{
		Oracle:   rt.world,
		Ports:    rt.ports,
		Cache:    rt.cache,
		Events:   rt.sink(),
		Reporter: rt.reporter(),
		Logger:   newLogger("session"),
		Settings: session.Settings{
			Heuristic: rt.cfg.Search.HeuristicValue(),
			Budget:    rt.cfg.Search.Budget(),
		},
	}
}

func (rt *runtime) loadSnapshot() error {
	path := strings.TrimSpace(rt.cfg.Cache.SnapshotPath)
	if path == "" {
		return nil
	}
	snap, err := snapshot.ReadSnapshot(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if err := rt.world.ImportChunks(snap.Chunks); err != nil {
		return err
	}
	n := 0
	if rt.memCache != nil {
		if n, err = rt.memCache.Import(snap.Cache); err != nil {
			return err
		}
	}
	rt.logger.Printf("snapshot %s: %d chunks, %d cached legs", path, len(snap.Chunks), n)
	return nil
}

// saveSnapshot writes modified terrain and the in-memory cache, then archives
// the file when archiving is enabled.
func (rt *runtime) saveSnapshot() error {
	path := strings.TrimSpace(rt.cfg.Cache.SnapshotPath)
	if path == "" {
		return nil
	}
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, CreatedAt: time.Now().UTC().Format(time.RFC3339Nano)},
		Chunks: rt.world.ExportModifiedChunks(),
	}
	if rt.memCache != nil {
		snap.Cache = rt.memCache.Export()
	}
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	rt.logger.Printf("snapshot saved: %s (%d chunks, %d cached legs)", path, len(snap.Chunks), len(snap.Cache))
	if keep := rt.cfg.Cache.ArchiveKeep; keep > 0 {
		dst, err := archive.ArchiveSnapshot(rt.cfg.Server.DataDir, path, snap, keep)
		if err != nil {
			return fmt.Errorf("archive snapshot: %w", err)
		}
		rt.logger.Printf("snapshot archived: %s", filepath.Dir(dst))
	}
	return nil
}

func (rt *runtime) Close() error {
	var errs []error
	if rt.remote != nil {
		errs = append(errs, rt.remote.Close())
	}
	if rt.index != nil {
		errs = append(errs, rt.index.Close())
	}
	if rt.journal != nil {
		errs = append(errs, rt.journal.Close())
	}
	if rt.redis != nil {
		errs = append(errs, rt.redis.Close())
	}
	return errors.Join(errs...)
}
