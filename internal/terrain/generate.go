package terrain

import (
	"fmt"

	"github.com/whimxiqal/journey-sub005/internal/model"
)

type Layer struct {
	Block     string
	Thickness int
}

// DomainSpec describes how a domain's chunks are generated on first access.
type DomainSpec struct {
	ID     model.DomainID
	Height int
	Seed   int64
	// Layers stack upward from y=0.
	Layers []Layer
	// Pillars scatter columns of PillarBlock on top of the surface.
	PillarPermille   int
	PillarBlock      string
	PillarHeight     int
	SpawnClearRadius int
}

type generator struct {
	spec    DomainSpec
	column  []uint16
	surface int
	pillar  uint16
}

func newGenerator(cat *Catalog, spec DomainSpec) (*generator, error) {
	if spec.Height <= 0 {
		return nil, fmt.Errorf("domain %s: height must be > 0", spec.ID)
	}
	g := &generator{spec: spec, column: make([]uint16, spec.Height)}
	y := 0
	for _, l := range spec.Layers {
		id, err := cat.ID(l.Block)
		if err != nil {
			return nil, fmt.Errorf("domain %s layer: %w", spec.ID, err)
		}
		for i := 0; i < l.Thickness && y < spec.Height; i++ {
			g.column[y] = id
			y++
		}
	}
	g.surface = y
	if spec.PillarPermille > 0 {
		name := spec.PillarBlock
		if name == "" {
			name = "STONE"
		}
		id, err := cat.ID(name)
		if err != nil {
			return nil, fmt.Errorf("domain %s pillar: %w", spec.ID, err)
		}
		g.pillar = id
	}
	return g, nil
}

func (g *generator) generate(ch *Chunk) {
	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			for y := 0; y < ch.Height; y++ {
				ch.Blocks[ch.index(x, y, z)] = g.column[y]
			}
			if g.spec.PillarPermille <= 0 || g.spec.PillarHeight <= 0 {
				continue
			}
			wx := ch.CX*ChunkSize + int64(x)
			wz := ch.CZ*ChunkSize + int64(z)
			if withinClear(wx, wz, g.spec.SpawnClearRadius) {
				continue
			}
			if hash2(g.spec.Seed, wx, wz)%1000 >= uint64(g.spec.PillarPermille) {
				continue
			}
			for y := g.surface; y < g.surface+g.spec.PillarHeight && y < ch.Height; y++ {
				ch.Blocks[ch.index(x, y, z)] = g.pillar
			}
		}
	}
}

func withinClear(x, z int64, r int) bool {
	if r <= 0 {
		return false
	}
	rr := int64(r)
	return x >= -rr && x <= rr && z >= -rr && z <= rr
}
