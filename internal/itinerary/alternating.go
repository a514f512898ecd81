package itinerary

// Alternating is a non-empty sequence Major, Minor, Major, ..., Major.
// The zero value is not usable; build one with NewAlternating.
type Alternating[M any, J any] struct {
	majors []M
	minors []J
}

func NewAlternating[M any, J any](first M) *Alternating[M, J] {
	return &Alternating[M, J]{majors: []M{first}}
}

// Append extends the sequence by one joint and the major that follows it.
func (a *Alternating[M, J]) Append(joint J, next M) {
	a.minors = append(a.minors, joint)
	a.majors = append(a.majors, next)
}

// Len counts majors and minors together.
func (a *Alternating[M, J]) Len() int { return len(a.majors) + len(a.minors) }

func (a *Alternating[M, J]) Majors() []M { return append([]M(nil), a.majors...) }
func (a *Alternating[M, J]) Minors() []J { return append([]J(nil), a.minors...) }

func (a *Alternating[M, J]) First() M { return a.majors[0] }
func (a *Alternating[M, J]) Last() M  { return a.majors[len(a.majors)-1] }

// At returns element i of the flattened sequence. Even indexes are majors.
func (a *Alternating[M, J]) At(i int) (major M, joint J, isMajor bool) {
	if i%2 == 0 {
		return a.majors[i/2], joint, true
	}
	return major, a.minors[i/2], false
}

// Cursor walks the flattened sequence forward. It starts on element 0.
type Cursor[M any, J any] struct {
	seq *Alternating[M, J]
	i   int
}

func (a *Alternating[M, J]) Cursor() *Cursor[M, J] { return &Cursor[M, J]{seq: a} }

func (c *Cursor[M, J]) Index() int    { return c.i }
func (c *Cursor[M, J]) HasNext() bool { return c.i+1 < c.seq.Len() }

func (c *Cursor[M, J]) Get() (M, J, bool) { return c.seq.At(c.i) }

// Next advances and returns the new current element. It panics past the end
// like an out-of-range slice index.
func (c *Cursor[M, J]) Next() (M, J, bool) {
	if !c.HasNext() {
		panic("itinerary: cursor advanced past the end")
	}
	c.i++
	return c.seq.At(c.i)
}
