package cli

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIdleLock_FiresAfterWindow(t *testing.T) {
	var fired atomic.Int32
	l := NewIdleLock(10*time.Millisecond, func() { fired.Add(1) })

	l.Touch()
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 2*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	require.EqualValues(t, 1, fired.Load(), "fires once per touch")
}

func TestIdleLock_TouchPostpones(t *testing.T) {
	var fired atomic.Int32
	l := NewIdleLock(40*time.Millisecond, func() { fired.Add(1) })

	l.Touch()
	for i := 0; i < 4; i++ {
		time.Sleep(15 * time.Millisecond)
		l.Touch()
	}
	require.Zero(t, fired.Load())

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestIdleLock_DisarmAndStop(t *testing.T) {
	var fired atomic.Int32
	l := NewIdleLock(10*time.Millisecond, func() { fired.Add(1) })

	l.Touch()
	l.Disarm()
	time.Sleep(30 * time.Millisecond)
	require.Zero(t, fired.Load())

	l.Stop()
	l.Touch()
	time.Sleep(30 * time.Millisecond)
	require.Zero(t, fired.Load())
}

func TestIdleLock_ZeroWindowDisabled(t *testing.T) {
	l := NewIdleLock(0, func() { t.Fatal("must not fire") })
	l.Touch()
	time.Sleep(10 * time.Millisecond)
}
