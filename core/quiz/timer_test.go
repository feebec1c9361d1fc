package quiz

import (
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTicks replaces the ticker of the Timers started by the test with the returned channel.
func fakeTicks(t *testing.T, buf int) chan time.Time {
	t.Helper()
	ticks := make(chan time.Time, buf)
	orig := newTicker
	newTicker = func(time.Duration) (<-chan time.Time, func()) { return ticks, func() {} }
	t.Cleanup(func() { newTicker = orig })
	return ticks
}

func waitDone(t *testing.T, tmr *Timer) {
	t.Helper()
	select {
	case <-tmr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timer goroutine did not exit")
	}
}

func newCountedTimer(t *testing.T, seconds int) (*Timer, *int32, chan int) {
	t.Helper()
	tmr, err := NewTimer(seconds)
	require.NoError(t, err)

	var completions int32
	ticked := make(chan int, seconds)
	tmr.OnTick(func(remaining int) { ticked <- remaining })
	tmr.OnExpired(func() { atomic.AddInt32(&completions, 1) })
	return tmr, &completions, ticked
}

func TestNewTimer(t *testing.T) {
	tests := []struct {
		name     string
		seconds  int
		interval []time.Duration
		wantErr  bool
	}{
		{name: "valid", seconds: 60},
		{name: "custom interval", seconds: 1, interval: []time.Duration{time.Millisecond}},
		{name: "zero seconds", seconds: 0, wantErr: true},
		{name: "negative seconds", seconds: -5, wantErr: true},
		{name: "zero interval", seconds: 5, interval: []time.Duration{0}, wantErr: true},
		{name: "longest", seconds: math.MaxInt32},
		{name: "too long", seconds: math.MaxInt32 + 1, wantErr: true},
		{name: "wraps around", seconds: 40000000 * 60, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmr, err := NewTimer(tt.seconds, tt.interval...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewTimer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				assert.Equal(t, tt.seconds, tmr.Remaining())
				assert.Equal(t, Running, tmr.State())
			}
		})
	}
}

func TestTimer_expiresOnce(t *testing.T) {
	ticks := fakeTicks(t, 0)
	tmr, completions, ticked := newCountedTimer(t, 2)
	tmr.Start()

	ticks <- time.Now()
	assert.Equal(t, 1, <-ticked)
	assert.Equal(t, int32(0), atomic.LoadInt32(completions), "completed before the time was up")

	ticks <- time.Now()
	assert.Equal(t, 0, <-ticked)
	waitDone(t, tmr)

	assert.Equal(t, int32(1), atomic.LoadInt32(completions))
	assert.Equal(t, ExpiredNaturally, tmr.State())
	assert.Equal(t, 0, tmr.Remaining())
	assert.False(t, tmr.Stop(), "Stop() after expiry must report false")
	assert.Equal(t, ExpiredNaturally, tmr.State())
}

func TestTimer_stoppedNeverCompletes(t *testing.T) {
	ticks := fakeTicks(t, 0)
	tmr, completions, ticked := newCountedTimer(t, 5)
	tmr.Start()

	for want := 4; want >= 3; want-- {
		ticks <- time.Now()
		assert.Equal(t, want, <-ticked)
	}
	assert.True(t, tmr.Stop())
	waitDone(t, tmr)

	assert.False(t, tmr.Stop(), "second Stop() must report false")
	assert.Equal(t, StoppedExplicitly, tmr.State())
	assert.Equal(t, 3, tmr.Remaining())
	assert.Equal(t, int32(0), atomic.LoadInt32(completions))
}

func TestTimer_stopBeforeStart(t *testing.T) {
	fakeTicks(t, 0)
	tmr, completions, _ := newCountedTimer(t, 1)

	assert.True(t, tmr.Stop())
	tmr.Start()
	waitDone(t, tmr)
	assert.Equal(t, int32(0), atomic.LoadInt32(completions))
	assert.Equal(t, StoppedExplicitly, tmr.State())
}

func TestTimer_startTwice(t *testing.T) {
	ticks := fakeTicks(t, 0)
	tmr, completions, ticked := newCountedTimer(t, 1)
	tmr.Start()
	tmr.Start()

	ticks <- time.Now()
	<-ticked
	waitDone(t, tmr)
	assert.Equal(t, int32(1), atomic.LoadInt32(completions))
}

func TestTimer_stopRacesExpiry(t *testing.T) {
	for i := 0; i < 200; i++ {
		ticks := fakeTicks(t, 1)
		tmr, completions, _ := newCountedTimer(t, 1)
		tmr.Start()

		go func() { ticks <- time.Now() }()
		stopped := tmr.Stop()
		waitDone(t, tmr)

		n := atomic.LoadInt32(completions)
		if stopped && n != 0 {
			t.Fatalf("run %d: Stop() = true but completion signalled %d times", i, n)
		}
		if !stopped && n != 1 {
			t.Fatalf("run %d: Stop() = false but completion signalled %d times", i, n)
		}
	}
}

func TestTimer_realTicker(t *testing.T) {
	tmr, err := NewTimer(3, time.Millisecond)
	require.NoError(t, err)

	expired := make(chan struct{})
	tmr.OnExpired(func() { close(expired) })
	tmr.Start()

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not expire")
	}
	waitDone(t, tmr)
	assert.Equal(t, ExpiredNaturally, tmr.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "expired", ExpiredNaturally.String())
	assert.Equal(t, "stopped", StoppedExplicitly.String())
	assert.Equal(t, "State(7)", State(7).String())
}
