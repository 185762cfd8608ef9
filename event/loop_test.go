package event_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/pipelined/phonod/event"
)

func runLoop(l *event.Loop) chan struct{} {
	done := make(chan struct{})
	go func() {
		l.Run()
		close(done)
	}()
	return done
}

func TestLoopBreak(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := event.New()
	done := runLoop(l)
	l.Break()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoopInject(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := event.New()
	done := runLoop(l)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Inject(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	l.Inject(l.Break)
	<-done
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoopTimerOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := event.New()
	done := runLoop(l)

	var mu sync.Mutex
	var got []string
	record := func(s string) func() {
		return func() {
			mu.Lock()
			got = append(got, s)
			mu.Unlock()
		}
	}
	l.Schedule(30*time.Millisecond, record("late"))
	l.Schedule(10*time.Millisecond, record("early"))
	l.Schedule(50*time.Millisecond, l.Break)
	<-done
	assert.Equal(t, []string{"early", "late"}, got)
}

func TestLoopTimerCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := event.New()
	done := runLoop(l)

	fired := false
	timer := l.Schedule(20*time.Millisecond, func() { fired = true })
	timer.Cancel()
	l.Schedule(40*time.Millisecond, l.Break)
	<-done
	assert.False(t, fired)
}

func TestLoopCancelFromCallback(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := event.New()
	done := runLoop(l)

	fired := false
	second := l.Schedule(20*time.Millisecond, func() { fired = true })
	// canceling inside a dispatch must keep later iterations from firing
	// the canceled timer
	l.Inject(func() { second.Cancel() })
	l.Schedule(50*time.Millisecond, l.Break)
	<-done
	assert.False(t, fired)
}

func TestLoopIdleDrainsBeforeWait(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := event.New()
	done := runLoop(l)

	var mu sync.Mutex
	var got []string
	l.AddIdle(func() {
		mu.Lock()
		got = append(got, "first")
		mu.Unlock()
		// idle work may queue more idle work; all of it runs before the
		// next wait
		l.AddIdle(func() {
			mu.Lock()
			got = append(got, "second")
			mu.Unlock()
			l.Break()
		})
	})
	<-done
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestLoopIdleCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := event.New()
	done := runLoop(l)

	fired := false
	m := l.AddIdle(func() { fired = true })
	m.Cancel()
	l.Schedule(20*time.Millisecond, l.Break)
	<-done
	assert.False(t, fired)
}

func TestLoopBreakFromOtherGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := event.New()
	done := runLoop(l)
	go l.Break()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cross-goroutine break did not stop the loop")
	}
}
