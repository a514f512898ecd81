// Package terrain answers passability questions about cells. Search code only
// sees the Oracle interface; World is the chunked block store behind it.
package terrain

import (
	"errors"

	"github.com/whimxiqal/journey-sub005/internal/flags"
	"github.com/whimxiqal/journey-sub005/internal/model"
)

var ErrUnknownDomain = errors.New("unknown domain")

type DoorState struct {
	Open       bool
	Reinforced bool
}

// Properties is everything the oracle knows about one cell.
type Properties struct {
	Passable           bool
	LaterallyPassable  bool
	VerticallyPassable bool
	// StandOn: an agent can stand on top of this cell.
	StandOn bool
	// StandIn: an agent body can occupy this cell.
	StandIn    bool
	Climbable  bool
	Water      bool
	PortalLike bool
	// Hardness < 0 means unbreakable.
	Hardness float64
	Height   float64
	Door     *DoorState
}

func (p Properties) Breakable() bool { return p.Hardness >= 0 }

// Barrier is reported for cells outside a domain's vertical bounds.
var Barrier = Properties{Hardness: -1, Height: 1}

// Oracle is a pure query interface. It may be expensive; callers cache.
type Oracle interface {
	Query(c model.Cell, f flags.Set) (Properties, error)
}

type OracleFunc func(c model.Cell, f flags.Set) (Properties, error)

func (fn OracleFunc) Query(c model.Cell, f flags.Set) (Properties, error) { return fn(c, f) }

// Memo caches one search's oracle answers per cell. Not safe for concurrent use.
type Memo struct {
	oracle  Oracle
	flags   flags.Set
	answers map[model.Cell]Properties
	queries int
}

func NewMemo(o Oracle, f flags.Set) *Memo {
	return &Memo{oracle: o, flags: f, answers: make(map[model.Cell]Properties, 1024)}
}

func (m *Memo) Query(c model.Cell, _ flags.Set) (Properties, error) {
	if p, ok := m.answers[c]; ok {
		return p, nil
	}
	p, err := m.oracle.Query(c, m.flags)
	if err != nil {
		return Properties{}, err
	}
	m.queries++
	m.answers[c] = p
	return p, nil
}

// Queries counts calls that reached the wrapped oracle.
func (m *Memo) Queries() int { return m.queries }
