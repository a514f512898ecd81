// Package sched is the cooperative tick scheduler that drives step-bounded
// searches and journey animation.
package sched

import (
	"context"
	"io"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Handle uint64

type Task func()

type Scheduler interface {
	// Schedule runs task once after delayTicks ticks. Async tasks run off the
	// tick goroutine.
	Schedule(task Task, async bool, delayTicks uint64) Handle
	// ScheduleRepeating runs task every periodTicks ticks, first after one
	// period. An async run still in flight skips the next firing.
	ScheduleRepeating(task Task, async bool, periodTicks uint64) Handle
	Cancel(h Handle)
}

type entry struct {
	task    Task
	async   bool
	due     uint64
	period  uint64
	running atomic.Bool
}

// Loop fires tasks on Advance. Run calls Advance on a wall-clock ticker; tests
// call it directly.
type Loop struct {
	rateHz int
	logger *log.Logger

	mu    sync.Mutex
	next  Handle
	tasks map[Handle]*entry

	tick     atomic.Uint64
	inflight sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

func NewLoop(rateHz int, logger *log.Logger) *Loop {
	if rateHz <= 0 {
		rateHz = 20
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Loop{
		rateHz: rateHz,
		logger: logger,
		tasks:  map[Handle]*entry{},
		stop:   make(chan struct{}),
	}
}

func (l *Loop) CurrentTick() uint64 { return l.tick.Load() }

func (l *Loop) RateHz() int { return l.rateHz }

func (l *Loop) add(task Task, async bool, delay, period uint64) Handle {
	if delay == 0 {
		delay = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	h := l.next
	l.tasks[h] = &entry{task: task, async: async, due: l.tick.Load() + delay, period: period}
	return h
}

func (l *Loop) Schedule(task Task, async bool, delayTicks uint64) Handle {
	return l.add(task, async, delayTicks, 0)
}

func (l *Loop) ScheduleRepeating(task Task, async bool, periodTicks uint64) Handle {
	if periodTicks == 0 {
		periodTicks = 1
	}
	return l.add(task, async, periodTicks, periodTicks)
}

func (l *Loop) Cancel(h Handle) {
	l.mu.Lock()
	delete(l.tasks, h)
	l.mu.Unlock()
}

// Pending counts scheduled tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Advance moves one tick forward and fires due tasks in handle order.
func (l *Loop) Advance() {
	now := l.tick.Add(1)

	l.mu.Lock()
	var due []Handle
	for h, e := range l.tasks {
		if e.due <= now {
			due = append(due, h)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })
	fire := make([]*entry, 0, len(due))
	for _, h := range due {
		e := l.tasks[h]
		fire = append(fire, e)
		if e.period == 0 {
			delete(l.tasks, h)
		} else {
			e.due = now + e.period
		}
	}
	l.mu.Unlock()

	for _, e := range fire {
		if !e.async {
			l.safeRun(e.task)
			continue
		}
		if !e.running.CompareAndSwap(false, true) {
			continue
		}
		l.inflight.Add(1)
		go func(e *entry) {
			defer l.inflight.Done()
			defer e.running.Store(false)
			l.safeRun(e.task)
		}(e)
	}
}

// AdvanceN calls Advance n times.
func (l *Loop) AdvanceN(n int) {
	for i := 0; i < n; i++ {
		l.Advance()
	}
}

// Wait blocks until async tasks started so far have returned.
func (l *Loop) Wait() { l.inflight.Wait() }

func (l *Loop) safeRun(t Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Printf("task panic at tick %d: %v", l.tick.Load(), r)
		}
	}()
	t()
}

func (l *Loop) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(l.rateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer l.inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case <-ticker.C:
			l.Advance()
		}
	}
}

func (l *Loop) Stop() { l.stopOnce.Do(func() { close(l.stop) }) }
