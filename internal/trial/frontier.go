package trial

import (
	"container/heap"

	"github.com/whimxiqal/journey-sub005/internal/model"
)

type entry struct {
	cell model.Cell
	g    float64
	f    float64
	seq  uint64
}

// frontier orders by f, then by insertion sequence so equal-priority cells
// come out first-in first-out.
type frontier []entry

func (q frontier) Len() int { return len(q) }

func (q frontier) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	return q[i].seq < q[j].seq
}

func (q frontier) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *frontier) Push(x any) { *q = append(*q, x.(entry)) }

func (q *frontier) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

func (q *frontier) push(e entry) { heap.Push(q, e) }

func (q *frontier) pop() entry { return heap.Pop(q).(entry) }
