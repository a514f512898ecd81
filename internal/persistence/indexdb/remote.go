package indexdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/whimxiqal/journey-sub005/internal/session"
)

type RemoteConfig struct {
	Endpoint      string
	Token         string
	Source        string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	// MaxRetained bounds how many undelivered records survive a failed flush.
	MaxRetained int
	Logger      *log.Logger
}

// RemoteIndex batches leg records and posts them as JSON to an ingest
// endpoint. A failed batch is kept and retried on the next flush.
type RemoteIndex struct {
	cfg        RemoteConfig
	httpClient *http.Client

	ch   chan remoteLeg
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropped   atomic.Uint64
	flushFail atomic.Uint64
	delivered atomic.Uint64
}

type RemoteStats struct {
	Delivered      uint64
	QueueDropped   uint64
	FlushFailTotal uint64
}

type remoteLeg struct {
	Source    string     `json:"source"`
	SessionID string     `json:"session_id"`
	Caller    string     `json:"caller"`
	Domain    string     `json:"domain"`
	Origin    [3]int64   `json:"origin"`
	Dest      [3]int64   `json:"dest"`
	Modes     string     `json:"modes"`
	Steps     int        `json:"steps"`
	Cost      float64    `json:"cost"`
	ElapsedMS float64    `json:"elapsed_ms"`
	Path      [][3]int64 `json:"path"`
}

func OpenRemote(cfg RemoteConfig) (*RemoteIndex, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty ingest endpoint")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = 4 * cfg.BatchSize
	}

	d := &RemoteIndex{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		ch:         make(chan remoteLeg, 8192),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func (d *RemoteIndex) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *RemoteIndex) Report(_ context.Context, r session.Record) error {
	if d == nil || d.closed.Load() || !r.Path.Valid() {
		return nil
	}
	o, t := r.Path.Origin(), r.Path.Destination()
	leg := remoteLeg{
		Source:    d.cfg.Source,
		SessionID: r.SessionID,
		Caller:    r.Caller,
		Domain:    string(r.Path.Domain()),
		Origin:    [3]int64{o.X, o.Y, o.Z},
		Dest:      [3]int64{t.X, t.Y, t.Z},
		Modes:     r.Modes.String(),
		Steps:     r.Steps,
		Cost:      r.Path.Cost(),
		ElapsedMS: float64(r.Elapsed) / float64(time.Millisecond),
	}
	for _, st := range r.Path.Steps() {
		leg.Path = append(leg.Path, [3]int64{st.Cell.X, st.Cell.Y, st.Cell.Z})
	}
	select {
	case d.ch <- leg:
	default:
		d.dropped.Add(1)
		d.printf("remote index queue full; drop session=%s", r.SessionID)
	}
	return nil
}

func (d *RemoteIndex) Stats() RemoteStats {
	return RemoteStats{
		Delivered:      d.delivered.Load(),
		QueueDropped:   d.dropped.Load(),
		FlushFailTotal: d.flushFail.Load(),
	}
}

func (d *RemoteIndex) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]remoteLeg, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.flushFail.Add(1)
			d.printf("remote index flush failed batch=%d err=%v", len(batch), err)
			if over := len(batch) - d.cfg.MaxRetained; over > 0 {
				d.dropped.Add(uint64(over))
				batch = append(batch[:0], batch[over:]...)
			}
			return
		}
		d.delivered.Add(uint64(len(batch)))
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *RemoteIndex) sendBatch(legs []remoteLeg) error {
	body := struct {
		Legs []remoteLeg `json:"legs"`
	}{Legs: legs}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if d.cfg.Token != "" {
			req.Header.Set("x-journey-index-token", d.cfg.Token)
		}

		resp, err := d.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(time.Duration(100*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}

func (d *RemoteIndex) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
