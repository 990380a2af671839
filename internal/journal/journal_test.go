package journal

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRingKeepsMostRecentEntries(t *testing.T) {
	j := New(Config{}, nil)
	for i := 1; i <= 250; i++ {
		j.Infof("entry %d", i)
	}

	snap := j.Snapshot()
	if len(snap) != DefaultCapacity {
		t.Fatalf("snapshot length = %d, want %d", len(snap), DefaultCapacity)
	}
	assert.Equal(t, uint64(51), snap[0].Seq)
	assert.Equal(t, "entry 51", snap[0].Message)
	assert.Equal(t, uint64(250), snap[len(snap)-1].Seq)
	for i := 1; i < len(snap); i++ {
		assert.Equal(t, snap[i-1].Seq+1, snap[i].Seq, "snapshot must stay in insertion order")
	}
}

func TestSubscriberBackfillThenLive(t *testing.T) {
	j := New(Config{Capacity: 200, Backfill: 50, Buffer: 64}, nil)
	for i := 1; i <= 60; i++ {
		j.Infof("entry %d", i)
	}

	sub := j.Subscribe()
	defer j.Unsubscribe(sub)

	for want := uint64(11); want <= 60; want++ {
		e := <-sub.C
		assert.Equal(t, want, e.Seq)
	}

	j.Successf("live one")
	j.Errorf("live two")

	e := <-sub.C
	assert.Equal(t, uint64(61), e.Seq)
	assert.Equal(t, LevelSuccess, e.Level)
	e = <-sub.C
	assert.Equal(t, uint64(62), e.Seq)
	assert.Equal(t, LevelError, e.Level)

	select {
	case extra := <-sub.C:
		t.Fatalf("unexpected duplicate entry seq=%d", extra.Seq)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSubscriberBackfillShorterThanLimit(t *testing.T) {
	j := New(Config{Capacity: 10, Backfill: 5, Buffer: 8}, nil)
	j.Infof("a")
	j.Infof("b")

	sub := j.Subscribe()
	defer j.Unsubscribe(sub)

	assert.Equal(t, "a", (<-sub.C).Message)
	assert.Equal(t, "b", (<-sub.C).Message)
	assert.Empty(t, sub.C)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	j := New(Config{Capacity: 10, Backfill: 1, Buffer: 1}, nil)
	j.Infof("first")

	sub := j.Subscribe() // backfill fills the 1-slot buffer
	defer j.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		j.Infof("second")
		j.Infof("third")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("append blocked on a full subscriber")
	}

	assert.Equal(t, uint64(2), j.Dropped())
	assert.Equal(t, "first", (<-sub.C).Message)

	// The ring itself still has everything.
	assert.Len(t, j.Snapshot(), 3)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	j := New(Config{}, nil)
	sub := j.Subscribe()
	assert.Equal(t, 1, j.Subscribers())

	j.Unsubscribe(sub)
	j.Unsubscribe(sub)
	assert.Equal(t, 0, j.Subscribers())

	_, open := <-sub.C
	assert.False(t, open, "channel must be closed after unsubscribe")

	// Appends after unsubscribe must not panic on the closed channel.
	j.Infof("after unsubscribe")
}

func TestConcurrentAppendsKeepTotalOrder(t *testing.T) {
	j := New(Config{Capacity: 500}, nil)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				j.Append(LevelInfo, fmt.Sprintf("producer %d entry %d", p, i))
			}
		}(p)
	}
	wg.Wait()

	snap := j.Snapshot()
	assert.Len(t, snap, 200)
	for i := 1; i < len(snap); i++ {
		assert.Equal(t, snap[i-1].Seq+1, snap[i].Seq)
	}
}
