package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/whimxiqal/journey-sub005/internal/persistence/snapshot"
)

type SnapshotArchiveMeta struct {
	Seq          int    `json:"seq"`
	Snapshot     string `json:"snapshot"`
	CreatedAt    string `json:"created_at"`
	Chunks       int    `json:"chunks"`
	CacheEntries int    `json:"cache_entries"`
}

// ArchiveSnapshot copies a saved snapshot into `dataDir/archives/snapshot_<NNNN>/`
// and prunes all but the newest keep archives (keep <= 0 keeps everything).
func ArchiveSnapshot(dataDir, snapshotPath string, snap snapshot.SnapshotV1, keep int) (archivedPath string, err error) {
	root := filepath.Join(dataDir, "archives")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	existing, err := list(root)
	if err != nil {
		return "", err
	}
	seq := 1
	if n := len(existing); n > 0 {
		seq = existing[n-1].seq + 1
	}

	archiveDir := filepath.Join(root, fmt.Sprintf("snapshot_%04d", seq))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", err
	}

	created := snap.Header.CreatedAt
	if created == "" {
		created = time.Now().UTC().Format(time.RFC3339Nano)
	}
	meta := SnapshotArchiveMeta{
		Seq:          seq,
		Snapshot:     filepath.Base(dst),
		CreatedAt:    created,
		Chunks:       len(snap.Chunks),
		CacheEntries: len(snap.Cache),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	if keep > 0 {
		existing = append(existing, archived{seq: seq, dir: archiveDir})
		for len(existing) > keep {
			if err := os.RemoveAll(existing[0].dir); err != nil {
				return dst, err
			}
			existing = existing[1:]
		}
	}
	return dst, nil
}

type archived struct {
	seq int
	dir string
}

func list(root string) ([]archived, error) {
	ents, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []archived
	for _, e := range ents {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "snapshot_") {
			continue
		}
		var seq int
		if _, err := fmt.Sscanf(e.Name(), "snapshot_%d", &seq); err != nil {
			continue
		}
		out = append(out, archived{seq: seq, dir: filepath.Join(root, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
