package mocks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClockAfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)
	clk := NewMockClock(start)

	ch := clk.After(time.Hour)
	assert.Equal(t, 1, clk.Waiters())

	clk.Advance(30 * time.Minute)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	clk.Advance(30 * time.Minute)
	select {
	case got := <-ch:
		assert.Equal(t, start.Add(time.Hour), got)
	default:
		t.Fatal("did not fire")
	}
	assert.Equal(t, 0, clk.Waiters())
}

func TestMockClockAfterNonPositiveFiresImmediately(t *testing.T) {
	clk := NewMockClock(time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC))
	select {
	case <-clk.After(0):
	default:
		t.Fatal("did not fire")
	}
}

func TestMockRandomQueueThenSequence(t *testing.T) {
	r := NewMockRandom()
	r.QueueString("abc")
	assert.Equal(t, "abc", r.String(8, "x"))
	assert.Equal(t, "id-1", r.String(8, "x"))
	assert.Equal(t, "id-2", r.String(8, "x"))
	r.Reset()
	assert.Equal(t, "id-1", r.String(8, "x"))
}
