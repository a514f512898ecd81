package session

import (
	"sync"

	"github.com/whimxiqal/journey-sub005/internal/sched"
)

// Drive runs s for stepsPerTick steps on every tick until it reaches a
// terminal state, then unschedules itself. onDone, if set, runs once on the
// scheduling goroutine after the terminal state is reached.
func Drive(sc sched.Scheduler, s *Session, stepsPerTick int, async bool, onDone func(*Session)) sched.Handle {
	if stepsPerTick <= 0 {
		stepsPerTick = 1
	}
	var h sched.Handle
	var once sync.Once
	h = sc.ScheduleRepeating(func() {
		if !s.Done() {
			s.Search(stepsPerTick)
		}
		if !s.Done() {
			return
		}
		sc.Cancel(h)
		if onDone != nil {
			once.Do(func() { onDone(s) })
		}
	}, async, 1)
	return h
}
