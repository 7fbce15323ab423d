package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixedDelay_AlwaysReturnsSameInterval(t *testing.T) {
	d := FixedDelay{Interval: 50 * time.Millisecond}
	require.Equal(t, 50*time.Millisecond, d.Delay(1))
	require.Equal(t, 50*time.Millisecond, d.Delay(7))
}

func TestExponentialDelay_GrowsAndCaps(t *testing.T) {
	d := ExponentialDelay{Base: 10 * time.Millisecond, Factor: 2, Max: 60 * time.Millisecond}
	require.Equal(t, 10*time.Millisecond, d.Delay(1))
	require.Equal(t, 20*time.Millisecond, d.Delay(2))
	require.Equal(t, 40*time.Millisecond, d.Delay(3))
	require.Equal(t, 60*time.Millisecond, d.Delay(4)) // would be 80ms, capped
}

func TestDecorrelatedJitterDelay_StartsAtBaseAndStaysWithinBounds(t *testing.T) {
	d := NewDecorrelatedJitterDelay(10*time.Millisecond, 200*time.Millisecond, 42)

	first := d.Delay(1)
	require.Equal(t, 10*time.Millisecond, first)

	for attempt := 2; attempt <= 20; attempt++ {
		delay := d.Delay(attempt)
		require.GreaterOrEqual(t, delay, 10*time.Millisecond)
		require.LessOrEqual(t, delay, 200*time.Millisecond)
	}
}

func TestDecorrelatedJitterDelay_DeterministicGivenSeed(t *testing.T) {
	a := NewDecorrelatedJitterDelay(5*time.Millisecond, 500*time.Millisecond, 7)
	b := NewDecorrelatedJitterDelay(5*time.Millisecond, 500*time.Millisecond, 7)

	for attempt := 1; attempt <= 10; attempt++ {
		require.Equal(t, a.Delay(attempt), b.Delay(attempt))
	}
}
