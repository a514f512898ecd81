package model

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"
)

// ModeType tags the capability that produced an edge.
type ModeType uint8

const (
	ModeNone ModeType = iota
	ModeWalk
	ModeJump
	ModeSwim
	ModeClimb
	ModeFly
	ModeDig
	ModeDoor
	ModeBoat
	ModeNetherPortal
	ModeTeleport

	modeCount
)

var modeNames = [...]string{
	ModeNone:         "none",
	ModeWalk:         "walk",
	ModeJump:         "jump",
	ModeSwim:         "swim",
	ModeClimb:        "climb",
	ModeFly:          "fly",
	ModeDig:          "dig",
	ModeDoor:         "door",
	ModeBoat:         "boat",
	ModeNetherPortal: "nether_portal",
	ModeTeleport:     "teleport",
}

func (t ModeType) String() string {
	if int(t) < len(modeNames) {
		return modeNames[t]
	}
	return fmt.Sprintf("mode(%d)", uint8(t))
}

func ParseModeType(s string) (ModeType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range modeNames {
		if i == int(ModeNone) {
			continue
		}
		if n == s {
			return ModeType(i), nil
		}
	}
	return ModeNone, fmt.Errorf("unknown mode type %q", s)
}

func (t ModeType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *ModeType) UnmarshalText(b []byte) error {
	v, err := ParseModeType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ModeTypeSet is an order-independent set of mode types, usable as a map key.
type ModeTypeSet uint32

func NewModeTypeSet(types ...ModeType) ModeTypeSet {
	var s ModeTypeSet
	for _, t := range types {
		s = s.With(t)
	}
	return s
}

func (s ModeTypeSet) With(t ModeType) ModeTypeSet {
	if t == ModeNone || t >= modeCount {
		return s
	}
	return s | 1<<t
}

func (s ModeTypeSet) Has(t ModeType) bool {
	return t < modeCount && s&(1<<t) != 0
}

func (s ModeTypeSet) Len() int { return bits.OnesCount32(uint32(s)) }

func (s ModeTypeSet) Types() []ModeType {
	out := make([]ModeType, 0, s.Len())
	for t := ModeType(1); t < modeCount; t++ {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s ModeTypeSet) String() string {
	names := make([]string, 0, s.Len())
	for _, t := range s.Types() {
		names = append(names, t.String())
	}
	sort.Strings(names)
	return strings.Join(names, "+")
}

func ParseModeTypeSet(s string) (ModeTypeSet, error) {
	var out ModeTypeSet
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' }) {
		t, err := ParseModeType(part)
		if err != nil {
			return 0, err
		}
		out = out.With(t)
	}
	return out, nil
}
