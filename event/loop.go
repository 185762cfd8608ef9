// Package event provides the single-goroutine reactor used by the
// non-audio parts of the daemon: monotonic timers, deferred work injected
// from any goroutine, and an idle queue drained before every wait. The
// audio threads never touch it; their pacing lives in their own condition
// variables.
package event

import (
	"container/heap"
	"sync"
	"time"
)

// Callback runs on the loop goroutine.
type Callback func()

// Timer is a scheduled callback; Cancel is safe from any goroutine and
// effective immediately, even within the current dispatch iteration.
type Timer struct {
	loop     *Loop
	when     time.Time
	fn       Callback
	index    int
	canceled bool
}

// Cancel stops the timer; canceling a fired or canceled timer is a no-op.
func (t *Timer) Cancel() {
	t.loop.mu.Lock()
	defer t.loop.mu.Unlock()
	t.canceled = true
	if t.index >= 0 {
		heap.Remove(&t.loop.timers, t.index)
	}
}

// IdleMonitor is a one-shot callback queued for the idle phase: the queue
// is drained until empty before the next wait. Cancel removes it.
type IdleMonitor struct {
	loop     *Loop
	fn       Callback
	canceled bool
}

// Cancel removes the monitor; safe from any goroutine.
func (m *IdleMonitor) Cancel() {
	m.loop.mu.Lock()
	defer m.loop.mu.Unlock()
	m.canceled = true
}

// Loop is the reactor. Run owns its goroutine; everything else is safe to
// call from anywhere.
type Loop struct {
	mu       sync.Mutex
	timers   timerHeap
	deferred []Callback
	idle     []*IdleMonitor
	// wake is the self-pipe of the loop: a buffered channel poked by
	// cross-goroutine injections.
	wake     chan struct{}
	breaking bool
}

// New creates a stopped loop; call Run to serve it.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Inject schedules a callback on the loop goroutine; safe from any
// goroutine, including loop callbacks.
func (l *Loop) Inject(fn Callback) {
	l.mu.Lock()
	l.deferred = append(l.deferred, fn)
	l.mu.Unlock()
	l.poke()
}

// Schedule runs a callback after d on the loop goroutine.
func (l *Loop) Schedule(d time.Duration, fn Callback) *Timer {
	t := &Timer{loop: l, when: time.Now().Add(d), fn: fn}
	l.mu.Lock()
	heap.Push(&l.timers, t)
	l.mu.Unlock()
	l.poke()
	return t
}

// AddIdle queues a one-shot callback for the idle phase; idle callbacks
// may queue further ones, and all of them run before the next wait.
func (l *Loop) AddIdle(fn Callback) *IdleMonitor {
	m := &IdleMonitor{loop: l, fn: fn}
	l.mu.Lock()
	l.idle = append(l.idle, m)
	l.mu.Unlock()
	l.poke()
	return m
}

// Break stops Run from any goroutine; a Break issued before Run makes that
// Run return at once.
func (l *Loop) Break() {
	l.mu.Lock()
	l.breaking = true
	l.mu.Unlock()
	l.poke()
}

func (l *Loop) poke() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run serves the loop until Break. Deferred work runs between waits; the
// idle queue is drained before each wait; timers fire in deadline order.
func (l *Loop) Run() {
	for {
		// deferred work first
		for {
			l.mu.Lock()
			if l.breaking {
				l.breaking = false
				l.mu.Unlock()
				return
			}
			if len(l.deferred) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.deferred[0]
			l.deferred = l.deferred[1:]
			l.mu.Unlock()
			fn()
		}

		// due timers
		now := time.Now()
		for {
			l.mu.Lock()
			if len(l.timers) == 0 || l.timers[0].when.After(now) {
				l.mu.Unlock()
				break
			}
			t := heap.Pop(&l.timers).(*Timer)
			canceled := t.canceled
			l.mu.Unlock()
			if !canceled {
				t.fn()
			}
		}

		// drain the idle queue before the wait
		for {
			var m *IdleMonitor
			l.mu.Lock()
			for len(l.idle) > 0 {
				next := l.idle[0]
				l.idle = l.idle[1:]
				if !next.canceled {
					m = next
					break
				}
			}
			l.mu.Unlock()
			if m == nil {
				break
			}
			m.fn()
		}

		// anything injected while dispatching restarts the cycle
		l.mu.Lock()
		if l.breaking {
			l.breaking = false
			l.mu.Unlock()
			return
		}
		if len(l.deferred) > 0 {
			l.mu.Unlock()
			continue
		}
		var timerWait <-chan time.Time
		var timer *time.Timer
		if len(l.timers) > 0 {
			d := time.Until(l.timers[0].when)
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerWait = timer.C
		}
		l.mu.Unlock()

		select {
		case <-l.wake:
		case <-timerWait:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// timerHeap orders timers by deadline.
type timerHeap []*Timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x interface{}) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
