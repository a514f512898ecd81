// Package indexdb is the secondary sqlite index: an append-only log of
// searched path legs and a durable port store.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/whimxiqal/journey-sub005/internal/model"
	snapv1 "github.com/whimxiqal/journey-sub005/internal/persistence/snapshot"
	"github.com/whimxiqal/journey-sub005/internal/session"
)

const schemaVersion = "1"

type SQLiteIndex struct {
	db     *sql.DB
	logger *log.Logger

	ch   chan pathRow
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

type Stats struct {
	Written       uint64
	Dropped       uint64
	Failed        uint64
	QueueDepth    int
	QueueCapacity int
}

type pathRow struct {
	SessionID  string
	Caller     string
	Domain     string
	Origin     model.Cell
	Dest       model.Cell
	Modes      string
	Steps      int
	Length     int
	Cost       float64
	ElapsedMS  float64
	StepsJSON  string
	RecordedAt string
}

func OpenSQLite(path string, logger *log.Logger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:     db,
		logger: logger,
		ch:     make(chan pathRow, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS path_legs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			caller TEXT NOT NULL,
			domain TEXT NOT NULL,
			ox INTEGER NOT NULL, oy INTEGER NOT NULL, oz INTEGER NOT NULL,
			dx INTEGER NOT NULL, dy INTEGER NOT NULL, dz INTEGER NOT NULL,
			modes TEXT NOT NULL,
			steps INTEGER NOT NULL,
			length INTEGER NOT NULL,
			cost REAL NOT NULL,
			elapsed_ms REAL NOT NULL,
			steps_json TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_path_legs_caller ON path_legs(caller, id);`,
		`CREATE INDEX IF NOT EXISTS idx_path_legs_origin ON path_legs(domain, ox, oz, oy);`,
		`CREATE TABLE IF NOT EXISTS ports (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			o_domain TEXT NOT NULL, ox INTEGER NOT NULL, oy INTEGER NOT NULL, oz INTEGER NOT NULL,
			d_domain TEXT NOT NULL, dx INTEGER NOT NULL, dy INTEGER NOT NULL, dz INTEGER NOT NULL,
			mode TEXT NOT NULL,
			cost REAL NOT NULL,
			UNIQUE (o_domain, ox, oy, oz, d_domain, dx, dy, dz, mode)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ports_dest ON ports(d_domain, dx, dy, dz);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains queued records and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Report queues a searched leg. It never blocks the search: when the writer
// falls behind the record is dropped and counted.
func (s *SQLiteIndex) Report(_ context.Context, r session.Record) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	if !r.Path.Valid() {
		return fmt.Errorf("report: invalid path")
	}
	steps := make([]snapv1.StepV1, 0, r.Path.Len())
	for _, st := range r.Path.Steps() {
		steps = append(steps, snapv1.StepV1{
			Cell: snapv1.CellV1{Domain: string(st.Cell.Domain), X: st.Cell.X, Y: st.Cell.Y, Z: st.Cell.Z},
			Mode: uint8(st.Mode),
		})
	}
	b, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	row := pathRow{
		SessionID:  r.SessionID,
		Caller:     r.Caller,
		Domain:     string(r.Path.Domain()),
		Origin:     r.Path.Origin(),
		Dest:       r.Path.Destination(),
		Modes:      r.Modes.String(),
		Steps:      r.Steps,
		Length:     r.Path.Len(),
		Cost:       r.Path.Cost(),
		ElapsedMS:  float64(r.Elapsed) / float64(time.Millisecond),
		StepsJSON:  string(b),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- row:
	default:
		s.dropped.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		Written:       s.written.Load(),
		Dropped:       s.dropped.Load(),
		Failed:        s.failed.Load(),
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
	}
}

// LegRecord is one stored row of path_legs.
type LegRecord struct {
	ID        int64
	SessionID string
	Caller    string
	Origin    model.Cell
	Dest      model.Cell
	Modes     string
	Steps     int
	Length    int
	Cost      float64
}

// Legs returns up to limit recorded legs for caller, newest first. An empty
// caller matches everyone.
func (s *SQLiteIndex) Legs(ctx context.Context, caller string, limit int) ([]LegRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, caller, domain, ox, oy, oz, dx, dy, dz, modes, steps, length, cost
		FROM path_legs WHERE (?1 = '' OR caller = ?1) ORDER BY id DESC LIMIT ?2`, caller, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LegRecord
	for rows.Next() {
		var r LegRecord
		var domain string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Caller, &domain,
			&r.Origin.X, &r.Origin.Y, &r.Origin.Z, &r.Dest.X, &r.Dest.Y, &r.Dest.Z,
			&r.Modes, &r.Steps, &r.Length, &r.Cost); err != nil {
			return nil, err
		}
		r.Origin.Domain = model.DomainID(domain)
		r.Dest.Domain = model.DomainID(domain)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insert, err := s.db.Prepare(`INSERT INTO path_legs(session_id,caller,domain,ox,oy,oz,dx,dy,dz,modes,steps,length,cost,elapsed_ms,steps_json,recorded_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		s.logger.Printf("indexdb: prepare: %v", err)
	}
	defer func() {
		if insert != nil {
			_ = insert.Close()
		}
	}()

	var (
		tx            *sql.Tx
		pending       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.logger.Printf("indexdb: begin: %v", err)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		pending = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.logger.Printf("indexdb: commit: %v", err)
			s.failed.Add(uint64(pending))
		} else {
			s.written.Add(uint64(pending))
		}
		tx = nil
		pending = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.failed.Add(uint64(pending))
		tx = nil
		pending = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil || insert == nil {
			s.failed.Add(1)
			continue
		}
		if _, err := tx.Stmt(insert).Exec(
			r.SessionID, r.Caller, r.Domain,
			r.Origin.X, r.Origin.Y, r.Origin.Z,
			r.Dest.X, r.Dest.Y, r.Dest.Z,
			r.Modes, r.Steps, r.Length, r.Cost, r.ElapsedMS, r.StepsJSON, r.RecordedAt,
		); err != nil {
			s.logger.Printf("indexdb: insert: %v", err)
			s.failed.Add(1)
			rollback()
			continue
		}
		pending++
		// Commit on an idle queue too, so a quiet server does not sit on
		// uncommitted rows.
		if pending >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}
