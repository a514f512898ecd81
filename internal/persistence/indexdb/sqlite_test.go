package indexdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/ports"
	"github.com/whimxiqal/journey-sub005/internal/session"
)

func testPath(t *testing.T, n int64) model.Path {
	t.Helper()
	var steps []model.Step
	for x := int64(0); x <= n; x++ {
		s := model.Step{Cell: model.C("overworld", x, 4, 0)}
		if x > 0 {
			s.Mode = model.ModeWalk
		}
		steps = append(steps, s)
	}
	p, err := model.NewPath(steps, float64(n))
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	return p
}

func open(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "journey.sqlite"), nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestSQLiteIndex_ReportsLegs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journey.sqlite")
	idx, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	ctx := context.Background()
	for i, caller := range []string{"alice", "bob", "alice"} {
		err := idx.Report(ctx, session.Record{
			SessionID: "s",
			Caller:    caller,
			Path:      testPath(t, int64(i+2)),
			Modes:     model.NewModeTypeSet(model.ModeWalk),
			Steps:     10 * (i + 1),
			Elapsed:   time.Millisecond,
		})
		if err != nil {
			t.Fatalf("Report: %v", err)
		}
	}
	if err := idx.Report(ctx, session.Record{Path: model.InvalidPath}); err == nil {
		t.Fatal("invalid path accepted")
	}
	// Close drains the writer.
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if st := idx.Stats(); st.Written != 3 || st.Dropped != 0 {
		t.Fatalf("stats: %+v", st)
	}

	idx, err = OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	legs, err := idx.Legs(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("Legs: %v", err)
	}
	if len(legs) != 2 {
		t.Fatalf("alice legs: %+v", legs)
	}
	if legs[0].Length != 5 || legs[0].Cost != 4 || legs[0].Steps != 30 {
		t.Fatalf("newest leg: %+v", legs[0])
	}
	if legs[0].Dest != model.C("overworld", 4, 4, 0) || legs[0].Modes != "walk" {
		t.Fatalf("newest leg endpoints: %+v", legs[0])
	}
	all, err := idx.Legs(ctx, "", 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("all legs: %d %v", len(all), err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan pathRow, 1)}
	s.ch <- pathRow{}
	if err := s.Report(context.Background(), session.Record{Path: testPath(t, 1)}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	st := s.Stats()
	if st.Dropped != 1 {
		t.Fatalf("Dropped=%d want=1", st.Dropped)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestPortStoreContract(t *testing.T) {
	ports.RunContract(t, func(t *testing.T) ports.Store {
		return open(t).Ports()
	})
}

func TestPortStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journey.sqlite")
	idx, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := model.Port{Origin: model.C("overworld", 1, 4, 1), Destination: model.C("nether", 0, 4, 0), Mode: model.ModeNetherPortal, Cost: 2}
	if err := idx.Ports().Add(context.Background(), p); err != nil {
		t.Fatalf("Add: %v", err)
	}
	_ = idx.Close()

	idx, err = OpenSQLite(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	got, err := idx.Ports().All(context.Background(), 0)
	if err != nil || len(got) != 1 || got[0] != p {
		t.Fatalf("after reopen: %v %v", got, err)
	}
}

func TestRemoteIndex_RetainsBatchOnFlushFailure(t *testing.T) {
	var mu sync.Mutex
	reqCount := 0
	applied := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqCount++
		thisReq := reqCount
		mu.Unlock()

		if thisReq <= 3 {
			http.Error(w, "temporary failure", http.StatusInternalServerError)
			return
		}
		var body struct {
			Legs []remoteLeg `json:"legs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		applied += len(body.Legs)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	idx, err := OpenRemote(RemoteConfig{
		Endpoint:      srv.URL,
		Source:        "test",
		BatchSize:     1,
		FlushInterval: 20 * time.Millisecond,
		HTTPTimeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("OpenRemote: %v", err)
	}
	defer func() { _ = idx.Close() }()

	if err := idx.Report(context.Background(), session.Record{Caller: "alice", Path: testPath(t, 3)}); err != nil {
		t.Fatalf("Report: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := applied >= 1
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	finalApplied := applied
	finalReqCount := reqCount
	mu.Unlock()
	if finalApplied < 1 {
		t.Fatalf("expected retained batch to be eventually delivered; applied=%d reqCount=%d", finalApplied, finalReqCount)
	}
	st := idx.Stats()
	if st.FlushFailTotal == 0 {
		t.Fatalf("expected flush failures to be recorded, got 0")
	}
	if st.QueueDropped != 0 {
		t.Fatalf("unexpected queue drops: %d", st.QueueDropped)
	}
}

func TestReportersFanOut(t *testing.T) {
	idx := open(t)
	var rep session.Reporter = session.Reporters{idx, nil}
	if err := rep.Report(context.Background(), session.Record{Path: testPath(t, 1)}); err != nil {
		t.Fatalf("Report: %v", err)
	}
}
