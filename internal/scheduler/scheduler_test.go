package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalScheduler_RunImmediatelyThenTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	s := NewIntervalScheduler(ctx, 5*time.Millisecond)
	s.RunImmediately = true

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(func() {
			if runs.Add(1) >= 3 {
				cancel()
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestIntervalScheduler_InvalidIntervalReturns(t *testing.T) {
	s := NewIntervalScheduler(context.Background(), 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(func() {})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler with zero interval should return at once")
	}
}

func TestIntervalScheduler_NilTaskReturns(t *testing.T) {
	s := NewIntervalScheduler(context.Background(), time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(nil)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler with nil task should return at once")
	}
}
