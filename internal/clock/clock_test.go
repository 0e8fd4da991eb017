package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_AdvanceFiresInDueOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)

	var fired []string
	var at []time.Duration
	record := func(name string) func() {
		return func() {
			fired = append(fired, name)
			at = append(at, m.Now().Sub(start))
		}
	}
	m.AfterFunc(300*time.Millisecond, record("c"))
	m.AfterFunc(100*time.Millisecond, record("a"))
	m.AfterFunc(100*time.Millisecond, record("b"))
	m.AfterFunc(time.Second, record("late"))

	m.Advance(500 * time.Millisecond)

	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond, 300 * time.Millisecond}, at)
	assert.Equal(t, 500*time.Millisecond, m.Now().Sub(start))
	assert.Equal(t, 1, m.Pending())
}

func TestManual_StopPreventsCallback(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	called := false
	timer := m.AfterFunc(time.Second, func() { called = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	m.Advance(2 * time.Second)
	assert.False(t, called)
}

func TestManual_CallbackCanScheduleWithinWindow(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var order []int
	m.AfterFunc(100*time.Millisecond, func() {
		order = append(order, 1)
		m.AfterFunc(100*time.Millisecond, func() { order = append(order, 2) })
	})

	m.Advance(250 * time.Millisecond)
	assert.Equal(t, []int{1, 2}, order)
}

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real{}.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}
