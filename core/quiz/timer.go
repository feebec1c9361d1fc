package quiz

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kat-co/vala"
)

// State of a Timer. A Timer is Running until it stops for one of the two terminal causes.
type State int32

const (
	Running State = iota
	ExpiredNaturally
	StoppedExplicitly
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case ExpiredNaturally:
		return "expired"
	case StoppedExplicitly:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// newTicker returns a tick channel and a func releasing it.
var newTicker = func(d time.Duration) (<-chan time.Time, func()) { // mockable
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Timer counts down from a number of seconds, one tick per interval, and signals completion at most once.
//
// The state word is the single source of truth: the countdown may only complete by moving it from
// Running to ExpiredNaturally, and Stop only succeeds by moving it from Running to StoppedExplicitly.
// Whichever compare-and-swap wins decides the outcome, so a stopped Timer never completes.
type Timer struct {
	interval  time.Duration
	remaining int32
	state     int32
	started   int32
	completed int32

	mu        sync.Mutex
	onTick    []func(remaining int)
	onExpired []func()

	quit chan struct{}
	done chan struct{}
}

// NewTimer returns a Timer of `seconds` seconds. The tick interval defaults to one second.
func NewTimer(seconds int, interval ...time.Duration) (*Timer, error) {
	tick := time.Second
	if len(interval) > 0 {
		tick = interval[0]
	}
	if err := vala.BeginValidation().Validate(
		vala.GreaterThan(seconds, 0, "seconds"),
		vala.GreaterThan(int(tick), 0, "interval"),
	).Check(); err != nil {
		return nil, err
	}
	if seconds > math.MaxInt32 {
		return nil, fmt.Errorf("seconds(%d) > %d", seconds, math.MaxInt32)
	}
	return &Timer{
		interval:  tick,
		remaining: int32(seconds),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// OnTick registers a handler called with the remaining seconds after each tick.
func (t *Timer) OnTick(h func(remaining int)) {
	t.mu.Lock()
	t.onTick = append(t.onTick, h)
	t.mu.Unlock()
}

// OnExpired registers a handler called once when the countdown reaches zero.
func (t *Timer) OnExpired(h func()) {
	t.mu.Lock()
	t.onExpired = append(t.onExpired, h)
	t.mu.Unlock()
}

// Start starts the countdown. Subsequent calls are no-ops.
func (t *Timer) Start() {
	if !atomic.CompareAndSwapInt32(&t.started, 0, 1) {
		return
	}
	if t.State() != Running { // stopped before it started
		close(t.done)
		return
	}
	go t.run()
}

// Stop stops a running Timer; no completion handler runs once it returns true.
// It returns false if the Timer had already stopped, whatever the cause.
func (t *Timer) Stop() bool {
	if !atomic.CompareAndSwapInt32(&t.state, int32(Running), int32(StoppedExplicitly)) {
		return false
	}
	close(t.quit)
	return true
}

func (t *Timer) State() State {
	return State(atomic.LoadInt32(&t.state))
}

func (t *Timer) Remaining() int {
	if r := int(atomic.LoadInt32(&t.remaining)); r > 0 {
		return r
	}
	return 0
}

// Done is closed once the countdown goroutine has exited.
func (t *Timer) Done() <-chan struct{} {
	return t.done
}

func (t *Timer) run() {
	defer close(t.done)

	ticks, release := newTicker(t.interval)
	defer release()

	for {
		select {
		case <-t.quit:
			return
		case <-ticks:
			if t.State() != Running {
				return
			}
			remaining := int(atomic.AddInt32(&t.remaining, -1))
			for _, h := range t.tickHandlers() {
				if t.State() != Running {
					return
				}
				h(remaining)
			}
			if remaining <= 0 {
				t.expire()
				return
			}
		}
	}
}

func (t *Timer) expire() {
	if !atomic.CompareAndSwapInt32(&t.state, int32(Running), int32(ExpiredNaturally)) {
		return // stopped in between
	}
	if n := atomic.AddInt32(&t.completed, 1); n != 1 {
		panic(fmt.Sprintf("quiz.Timer: completion signalled %d times", n))
	}
	t.mu.Lock()
	handlers := append([]func(){}, t.onExpired...)
	t.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}

func (t *Timer) tickHandlers() []func(int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]func(int){}, t.onTick...)
}
