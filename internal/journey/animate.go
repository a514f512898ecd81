package journey

import "github.com/whimxiqal/journey-sub005/internal/sched"

// Animate publishes the window every periodTicks until the journey stops
// running.
func Animate(s sched.Scheduler, j *Journey, periodTicks uint64, publish func([]Waypoint)) sched.Handle {
	var h sched.Handle
	h = s.ScheduleRepeating(func() {
		if j.State() != Running {
			s.Cancel(h)
			return
		}
		publish(j.Window())
	}, false, periodTicks)
	return h
}
