package timer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestService_ArmFires(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	var fired atomic.Int32
	s.Arm("wake:snz_1", time.Now().Add(20*time.Millisecond), func() {
		fired.Add(1)
	})

	require.True(t, s.Armed("wake:snz_1"))
	waitFor(t, func() bool { return fired.Load() == 1 }, "timer never fired")
	assert.False(t, s.Armed("wake:snz_1"))
}

func TestService_ArmPastFiresImmediately(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	var fired atomic.Int32
	s.Arm("wake:snz_past", time.Now().Add(-time.Hour), func() {
		fired.Add(1)
	})

	waitFor(t, func() bool { return fired.Load() == 1 }, "past-due timer never fired")
}

func TestService_RearmReplaces(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	var first, second atomic.Int32
	s.Arm("wake:snz_2", time.Now().Add(30*time.Millisecond), func() { first.Add(1) })
	s.Arm("wake:snz_2", time.Now().Add(30*time.Millisecond), func() { second.Add(1) })

	waitFor(t, func() bool { return second.Load() == 1 }, "replacement timer never fired")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), first.Load(), "replaced timer must not fire")
	assert.Equal(t, int32(1), second.Load())
}

func TestService_Cancel(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	var fired atomic.Int32
	s.Arm("wake:snz_3", time.Now().Add(30*time.Millisecond), func() { fired.Add(1) })
	s.Cancel("wake:snz_3")

	assert.False(t, s.Armed("wake:snz_3"))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	// Cancelling a name that was never armed is fine.
	s.Cancel("wake:snz_missing")
}

func TestService_ArmPeriodic(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	var ticks atomic.Int32
	s.ArmPeriodic("sweep", 10*time.Millisecond, func() { ticks.Add(1) })

	waitFor(t, func() bool { return ticks.Load() >= 3 }, "periodic timer never ticked")
	s.Cancel("sweep")
	assert.False(t, s.Armed("sweep"))

	settled := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, ticks.Load(), settled+1, "ticker kept running after cancel")
}

func TestService_RearmWhileFiringKeepsReplacement(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	// The first timer is past-due, so its callback races the replacement.
	// Whatever the interleaving, the fresh registration must still fire.
	var fresh atomic.Int32
	s.Arm("wake:snz_5", time.Now().Add(-time.Hour), func() {})
	s.Arm("wake:snz_5", time.Now().Add(20*time.Millisecond), func() { fresh.Add(1) })

	waitFor(t, func() bool { return fresh.Load() == 1 }, "replacement timer never fired")
}

func TestService_StopWaitsForRunningCallback(t *testing.T) {
	s := New(nil)

	started := make(chan struct{})
	var startOnce sync.Once
	var finished atomic.Bool
	s.ArmPeriodic("sweep", 5*time.Millisecond, func() {
		startOnce.Do(func() { close(started) })
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})

	<-started
	s.Stop()
	assert.True(t, finished.Load(), "Stop returned while a callback was still running")
}

func TestService_StopWaitsForOneShotCallback(t *testing.T) {
	s := New(nil)

	started := make(chan struct{})
	var finished atomic.Bool
	s.Arm("wake:snz_6", time.Now(), func() {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})

	<-started
	s.Stop()
	assert.True(t, finished.Load(), "Stop returned while a callback was still running")
}

func TestService_StopRejectsArming(t *testing.T) {
	s := New(nil)
	s.Stop()

	var fired atomic.Int32
	s.Arm("wake:snz_4", time.Now(), func() { fired.Add(1) })
	s.ArmPeriodic("sweep", 5*time.Millisecond, func() { fired.Add(1) })

	assert.False(t, s.Armed("wake:snz_4"))
	assert.False(t, s.Armed("sweep"))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	// Stop is idempotent.
	s.Stop()
}
