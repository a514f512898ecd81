package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version     int    `json:"version"`
	CreatedAt   string `json:"created_at"`
	CatalogHash string `json:"catalog_hash,omitempty"`
}

// SnapshotV1 holds modified terrain chunks and memoized path legs so a
// restarted process resumes with the same world and warm cache.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Chunks []ChunkV1      `json:"chunks"`
	Cache  []CacheEntryV1 `json:"cache"`
}

type ChunkV1 struct {
	Domain string   `json:"domain"`
	CX     int64    `json:"cx"`
	CZ     int64    `json:"cz"`
	Height int      `json:"height"`
	Blocks []uint16 `json:"blocks"`
}

type CellV1 struct {
	Domain string `json:"domain"`
	X      int64  `json:"x"`
	Y      int64  `json:"y"`
	Z      int64  `json:"z"`
}

type StepV1 struct {
	Cell CellV1 `json:"cell"`
	Mode uint8  `json:"mode"`
}

type CacheEntryV1 struct {
	Origin    CellV1   `json:"origin"`
	GoalKey   string   `json:"goal_key"`
	Modes     uint32   `json:"modes"`
	Reachable bool     `json:"reachable"`
	Cost      float64  `json:"cost,omitempty"`
	Steps     []StepV1 `json:"steps,omitempty"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	hb, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(hb, &h); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
