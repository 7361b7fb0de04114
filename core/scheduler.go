package core

import (
	"context"
	"sync"
)

// Timer represents a scheduled event
type Timer struct {
	WakeTime int64
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// DefaultMaxSleep bounds how long Run sleeps before re-checking the timer list
const DefaultMaxSleep = 10

// Scheduler runs timers in WakeTime order on one goroutine. Handlers
// returning SF_RESCHEDULE must move WakeTime forward first.
type Scheduler struct {
	mu        sync.Mutex
	timerList *Timer
	clock     Clock
	maxSleep  int64
}

// NewScheduler creates a scheduler reading time from clock
func NewScheduler(clock Clock) *Scheduler {
	return &Scheduler{clock: clock, maxSleep: DefaultMaxSleep}
}

// SetMaxSleep sets the longest idle sleep in milliseconds
func (s *Scheduler) SetMaxSleep(ms int64) {
	if ms < 1 {
		ms = 1
	}
	s.mu.Lock()
	s.maxSleep = ms
	s.mu.Unlock()
}

// ScheduleTimer adds a timer to the schedule
func (s *Scheduler) ScheduleTimer(t *Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertTimer(t)
}

// CancelTimer removes t if it is scheduled
func (s *Scheduler) CancelTimer(t *Timer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timerList == t {
		s.timerList = t.Next
		t.Next = nil
		return true
	}
	for cur := s.timerList; cur != nil; cur = cur.Next {
		if cur.Next == t {
			cur.Next = t.Next
			t.Next = nil
			return true
		}
	}
	return false
}

// insertTimer inserts a timer in sorted order by WakeTime.
// Timers with equal WakeTime run in insertion order.
// Must be called with lock held.
func (s *Scheduler) insertTimer(t *Timer) {
	if s.timerList == nil || t.WakeTime < s.timerList.WakeTime {
		t.Next = s.timerList
		s.timerList = t
		return
	}

	current := s.timerList
	for current.Next != nil && current.Next.WakeTime <= t.WakeTime {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// TimerDispatch runs every timer due at now and returns how many ran.
// Rescheduled timers are re-inserted after the pass, so a timer runs at
// most once per dispatch.
func (s *Scheduler) TimerDispatch(now int64) int {
	var again []*Timer
	ran := 0

	for {
		s.mu.Lock()
		timer := s.timerList
		if timer == nil || timer.WakeTime > now {
			s.mu.Unlock()
			break
		}
		s.timerList = timer.Next
		timer.Next = nil // Clear Next pointer to avoid circular references
		s.mu.Unlock()

		// Handlers run unlocked so they may schedule other timers
		if timer.Handler(timer) == SF_RESCHEDULE {
			again = append(again, timer)
		}
		ran++
	}

	if len(again) > 0 {
		s.mu.Lock()
		for _, t := range again {
			s.insertTimer(t)
		}
		s.mu.Unlock()
	}
	return ran
}

// NextWake returns the WakeTime of the earliest timer
func (s *Scheduler) NextWake() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timerList == nil {
		return 0, false
	}
	return s.timerList.WakeTime, true
}

// Pending returns the number of scheduled timers
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for t := s.timerList; t != nil; t = t.Next {
		n++
	}
	return n
}

// Run dispatches timers until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := s.clock.Now()
		s.TimerDispatch(now)

		s.mu.Lock()
		delay := s.maxSleep
		if s.timerList != nil {
			if d := s.timerList.WakeTime - s.clock.Now(); d < delay {
				delay = d
			}
		}
		s.mu.Unlock()

		if delay < 1 {
			// Due already; yield a tick so a stuck handler cannot spin
			delay = 1
		}
		if err := s.clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}
