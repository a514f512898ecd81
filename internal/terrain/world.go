package terrain

import (
	"fmt"
	"sort"
	"sync"

	"github.com/whimxiqal/journey-sub005/internal/flags"
	"github.com/whimxiqal/journey-sub005/internal/model"
)

type domainStore struct {
	spec   DomainSpec
	gen    *generator
	chunks map[ChunkKey]*Chunk
}

// World is a set of chunked block domains and implements Oracle.
type World struct {
	mu      sync.RWMutex
	cat     *Catalog
	domains map[model.DomainID]*domainStore
}

func NewWorld(cat *Catalog) *World {
	if cat == nil {
		cat = DefaultCatalog()
	}
	return &World{cat: cat, domains: map[model.DomainID]*domainStore{}}
}

func (w *World) Catalog() *Catalog { return w.cat }

func (w *World) AddDomain(spec DomainSpec) error {
	if spec.ID == "" {
		return fmt.Errorf("domain id must not be empty")
	}
	g, err := newGenerator(w.cat, spec)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, dup := w.domains[spec.ID]; dup {
		return fmt.Errorf("duplicate domain %s", spec.ID)
	}
	w.domains[spec.ID] = &domainStore{spec: spec, gen: g, chunks: map[ChunkKey]*Chunk{}}
	return nil
}

func (w *World) Domains() []model.DomainID {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]model.DomainID, 0, len(w.domains))
	for id := range w.domains {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Surface is the first y above the generated layers.
func (w *World) Surface(domain model.DomainID) (int64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ds, ok := w.domains[domain]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	return int64(ds.gen.surface), nil
}

func (w *World) Query(c model.Cell, _ flags.Set) (Properties, error) {
	id, ok, err := w.blockID(c)
	if err != nil {
		return Properties{}, err
	}
	if !ok {
		return Barrier, nil
	}
	return w.cat.properties(id), nil
}

// Block returns the block name at c, or "" outside the vertical bounds.
func (w *World) Block(c model.Cell) (string, error) {
	id, ok, err := w.blockID(c)
	if err != nil || !ok {
		return "", err
	}
	return w.cat.Name(id), nil
}

func (w *World) SetBlock(c model.Cell, name string) error {
	id, err := w.cat.ID(name)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	ds, ok := w.domains[c.Domain]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDomain, c.Domain)
	}
	if c.Y < 0 || c.Y >= int64(ds.spec.Height) {
		return fmt.Errorf("set %s: y out of bounds [0,%d)", c, ds.spec.Height)
	}
	ch := ds.chunkLocked(floorDiv(c.X, ChunkSize), floorDiv(c.Z, ChunkSize))
	ch.Set(int(mod(c.X, ChunkSize)), int(c.Y), int(mod(c.Z, ChunkSize)), id)
	return nil
}

// Fill sets every cell in the inclusive box spanned by a and b.
func (w *World) Fill(a, b model.Cell, name string) error {
	if err := model.SameDomain(a, b); err != nil {
		return err
	}
	x0, x1 := minmax(a.X, b.X)
	y0, y1 := minmax(a.Y, b.Y)
	z0, z1 := minmax(a.Z, b.Z)
	for y := y0; y <= y1; y++ {
		for z := z0; z <= z1; z++ {
			for x := x0; x <= x1; x++ {
				if err := w.SetBlock(model.Cell{X: x, Y: y, Z: z, Domain: a.Domain}, name); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func minmax(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

func (w *World) blockID(c model.Cell) (uint16, bool, error) {
	cx := floorDiv(c.X, ChunkSize)
	cz := floorDiv(c.Z, ChunkSize)
	lx := int(mod(c.X, ChunkSize))
	lz := int(mod(c.Z, ChunkSize))

	w.mu.RLock()
	ds, ok := w.domains[c.Domain]
	if !ok {
		w.mu.RUnlock()
		return 0, false, fmt.Errorf("%w: %s", ErrUnknownDomain, c.Domain)
	}
	if c.Y < 0 || c.Y >= int64(ds.spec.Height) {
		w.mu.RUnlock()
		return 0, false, nil
	}
	if ch, ok := ds.chunks[ChunkKey{CX: cx, CZ: cz}]; ok {
		id := ch.Get(lx, int(c.Y), lz)
		w.mu.RUnlock()
		return id, true, nil
	}
	w.mu.RUnlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	ch := ds.chunkLocked(cx, cz)
	return ch.Get(lx, int(c.Y), lz), true, nil
}

func (ds *domainStore) chunkLocked(cx, cz int64) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	if ch, ok := ds.chunks[k]; ok {
		return ch
	}
	ch := newChunk(cx, cz, ds.spec.Height)
	ds.gen.generate(ch)
	ch.dirty = true
	_ = ch.Digest()
	ds.chunks[k] = ch
	return ch
}
