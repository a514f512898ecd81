package terrain

import (
	"fmt"
	"sort"

	"github.com/whimxiqal/journey-sub005/internal/model"
	snapv1 "github.com/whimxiqal/journey-sub005/internal/persistence/snapshot"
)

// ExportModifiedChunks returns every chunk whose blocks differ from generation,
// ordered by domain then chunk coordinates.
func (w *World) ExportModifiedChunks() []snapv1.ChunkV1 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []snapv1.ChunkV1
	for id, ds := range w.domains {
		for k, ch := range ds.chunks {
			if !ch.Modified() {
				continue
			}
			blocks := make([]uint16, len(ch.Blocks))
			copy(blocks, ch.Blocks)
			out = append(out, snapv1.ChunkV1{
				Domain: string(id),
				CX:     k.CX,
				CZ:     k.CZ,
				Height: ch.Height,
				Blocks: blocks,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		if out[i].CX != out[j].CX {
			return out[i].CX < out[j].CX
		}
		return out[i].CZ < out[j].CZ
	})
	return out
}

// ImportChunks replaces chunks in already-registered domains.
func (w *World) ImportChunks(chunks []snapv1.ChunkV1) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range chunks {
		ds, ok := w.domains[model.DomainID(ch.Domain)]
		if !ok {
			return fmt.Errorf("snapshot chunk: %w: %s", ErrUnknownDomain, ch.Domain)
		}
		if ch.Height != ds.spec.Height {
			return fmt.Errorf("snapshot chunk height mismatch: got %d want %d", ch.Height, ds.spec.Height)
		}
		if len(ch.Blocks) != ChunkSize*ChunkSize*ch.Height {
			return fmt.Errorf("snapshot chunk blocks length mismatch: got %d want %d", len(ch.Blocks), ChunkSize*ChunkSize*ch.Height)
		}
		for _, b := range ch.Blocks {
			if int(b) >= len(w.cat.Palette) {
				return fmt.Errorf("snapshot chunk: block id %d outside palette", b)
			}
		}
		c := newChunk(ch.CX, ch.CZ, ch.Height)
		copy(c.Blocks, ch.Blocks)
		c.modified = true
		c.dirty = true
		_ = c.Digest()
		ds.chunks[ChunkKey{CX: ch.CX, CZ: ch.CZ}] = c
	}
	return nil
}
