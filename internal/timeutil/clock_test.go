package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMockClockAdvance moves the clock and checks Now and Since follow.
func TestMockClockAdvance(t *testing.T) {
	t.Parallel()

	start := time.Unix(100, 0)
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(3 * time.Second)
	assert.Equal(t, start.Add(3*time.Second), c.Now())
	assert.Equal(t, 3*time.Second, c.Since(start))
}

// TestMockTicker fires once per elapsed interval and stops cleanly.
func TestMockTicker(t *testing.T) {
	t.Parallel()

	c := NewMockClock(time.Unix(0, 0))
	ticker := c.NewTicker(time.Second)

	// Not yet due.
	c.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire at the interval")
	}

	// A stopped ticker stays quiet.
	ticker.Stop()
	c.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

// TestMockTickerCoalesces drops ticks the receiver has not drained.
func TestMockTickerCoalesces(t *testing.T) {
	t.Parallel()

	c := NewMockClock(time.Unix(0, 0))
	ticker := c.NewTicker(time.Second)

	c.Advance(10 * time.Second)
	<-ticker.C()
	select {
	case <-ticker.C():
		t.Fatal("expected coalesced ticks, got a backlog")
	default:
	}
}

// TestRealClock sanity-checks the passthrough implementation.
func TestRealClock(t *testing.T) {
	t.Parallel()

	c := RealClock{}
	before := time.Now()
	now := c.Now()
	require.False(t, now.Before(before))

	ticker := c.NewTicker(time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker did not fire")
	}
}
