package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "1.snap.zst")
	in := SnapshotV1{
		Header: Header{CreatedAt: "2026-01-01T00:00:00Z", CatalogHash: "abc"},
		Chunks: []ChunkV1{{Domain: "overworld", CX: 1, CZ: -2, Height: 1, Blocks: make([]uint16, 256)}},
		Cache: []CacheEntryV1{{
			Origin:    CellV1{Domain: "overworld", X: 1, Y: 4, Z: 1},
			GoalKey:   "dest:overworld(3,4,1)~0",
			Modes:     6,
			Reachable: true,
			Cost:      2,
			Steps: []StepV1{
				{Cell: CellV1{Domain: "overworld", X: 1, Y: 4, Z: 1}},
				{Cell: CellV1{Domain: "overworld", X: 2, Y: 4, Z: 1}, Mode: 1},
			},
		}},
	}
	in.Chunks[0].Blocks[17] = 9
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Header.Version != Version || out.Header.CatalogHash != "abc" {
		t.Fatalf("unexpected header: %+v", out.Header)
	}
	if len(out.Chunks) != 1 || out.Chunks[0].Blocks[17] != 9 {
		t.Fatalf("chunk mismatch: %+v", out.Chunks)
	}
	if len(out.Cache) != 1 || len(out.Cache[0].Steps) != 2 || out.Cache[0].GoalKey != in.Cache[0].GoalKey {
		t.Fatalf("cache mismatch: %+v", out.Cache)
	}
}

func TestReadSnapshotRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap.zst")
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected error for garbage snapshot")
	}
}
