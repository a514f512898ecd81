package terrain

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

//go:embed blocks.json
var defaultBlocksJSON []byte

type BlockDef struct {
	ID         string  `json:"id"`
	Solid      bool    `json:"solid"`
	Climbable  bool    `json:"climbable,omitempty"`
	Water      bool    `json:"water,omitempty"`
	Portal     bool    `json:"portal,omitempty"`
	Door       bool    `json:"door,omitempty"`
	Open       bool    `json:"open,omitempty"`
	Reinforced bool    `json:"reinforced,omitempty"`
	NoVertical bool    `json:"no_vertical,omitempty"`
	Hardness   float64 `json:"hardness"`
	Height     float64 `json:"height"`
}

func (d BlockDef) Properties() Properties {
	passable := !d.Solid
	p := Properties{
		Passable:           passable,
		LaterallyPassable:  passable,
		VerticallyPassable: passable && !d.NoVertical,
		StandOn:            d.Solid && !d.Door,
		StandIn:            passable && !d.Water && !d.Portal,
		Climbable:          d.Climbable,
		Water:              d.Water,
		PortalLike:         d.Portal,
		Hardness:           d.Hardness,
		Height:             d.Height,
	}
	if d.Door {
		p.Door = &DoorState{Open: d.Open, Reinforced: d.Reinforced}
		if d.Open {
			p.StandIn = true
		}
	}
	return p
}

type Catalog struct {
	Palette []string
	Index   map[string]uint16
	Defs    map[string]BlockDef
	Digest  string

	props []Properties
}

func DefaultCatalog() *Catalog {
	c, err := parseCatalog(defaultBlocksJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded blocks.json: %v", err))
	}
	return c
}

func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseCatalog(raw)
}

func parseCatalog(raw []byte) (*Catalog, error) {
	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	out := &Catalog{Defs: map[string]BlockDef{}}
	sum := sha256.Sum256(raw)
	out.Digest = hex.EncodeToString(sum[:])
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("blocks.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return nil, fmt.Errorf("blocks.json: duplicate id %s", d.ID)
		}
		out.Defs[d.ID] = d
	}
	// AIR must exist and be palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return nil, fmt.Errorf("blocks.json: missing AIR")
	}
	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		if id != "AIR" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out.Palette = append([]string{"AIR"}, ids...)
	out.Index = make(map[string]uint16, len(out.Palette))
	out.props = make([]Properties, len(out.Palette))
	for i, id := range out.Palette {
		out.Index[id] = uint16(i)
		out.props[i] = out.Defs[id].Properties()
	}
	return out, nil
}

func (c *Catalog) ID(name string) (uint16, error) {
	id, ok := c.Index[name]
	if !ok {
		return 0, fmt.Errorf("unknown block %q", name)
	}
	return id, nil
}

func (c *Catalog) Name(id uint16) string {
	if int(id) >= len(c.Palette) {
		return ""
	}
	return c.Palette[id]
}

func (c *Catalog) properties(id uint16) Properties {
	if int(id) >= len(c.props) {
		return Barrier
	}
	p := c.props[id]
	if p.Door != nil {
		d := *p.Door
		p.Door = &d
	}
	return p
}
