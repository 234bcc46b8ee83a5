// ABOUTME: Tests for the reply dedupe cache
// ABOUTME: Validates TTL expiration, eviction, reply storage and concurrency safety

package dedupe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_Check(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.Check("turn-1"))
	cache.Mark("turn-1")
	assert.True(t, cache.Check("turn-1"))
}

func TestCache_Check_Expired(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	cache.Mark("turn-1")
	assert.True(t, cache.Check("turn-1"))

	time.Sleep(20 * time.Millisecond)
	assert.False(t, cache.Check("turn-1"))
}

func TestCache_Reply(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("turn-1"))

	_, ok := cache.Reply("turn-1")
	assert.False(t, ok, "in-flight turns have no reply")

	cache.Complete("turn-1", "Hi there")
	reply, ok := cache.Reply("turn-1")
	assert.True(t, ok)
	assert.Equal(t, "Hi there", reply)

	assert.True(t, cache.CheckAndMark("turn-1"), "answered turns stay claimed")
}

func TestCache_Complete_UnknownKey(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	cache.Complete("turn-9", "late")
	reply, ok := cache.Reply("turn-9")
	assert.True(t, ok)
	assert.Equal(t, "late", reply)
}

func TestCache_Release(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("turn-1"))
	cache.Release("turn-1")
	assert.False(t, cache.Check("turn-1"))
	assert.False(t, cache.CheckAndMark("turn-1"), "released turns can be claimed again")

	cache.Release("never-seen")
	assert.Equal(t, 1, cache.Len())
}

func TestCache_Mark_ClearsReply(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	cache.Complete("turn-1", "old")
	cache.Mark("turn-1")
	_, ok := cache.Reply("turn-1")
	assert.False(t, ok)
}

func TestCache_Mark_UpdatesTimestamp(t *testing.T) {
	cache := New(50*time.Millisecond, 100)
	defer cache.Close()

	cache.Mark("turn-1")
	time.Sleep(30 * time.Millisecond)
	cache.Mark("turn-1")
	time.Sleep(30 * time.Millisecond)

	assert.True(t, cache.Check("turn-1"))
}

func TestCache_EvictionOrder(t *testing.T) {
	cache := New(5*time.Minute, 3)
	defer cache.Close()

	cache.Mark("first")
	cache.Mark("second")
	cache.Mark("third")
	cache.Mark("fourth")

	assert.False(t, cache.Check("first"), "oldest key is evicted")
	assert.True(t, cache.Check("second"))
	assert.True(t, cache.Check("third"))
	assert.True(t, cache.Check("fourth"))

	cache.Mark("fifth")
	assert.False(t, cache.Check("second"))
	assert.Equal(t, 3, cache.Len())
}

func TestCache_Cleanup(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	cache.Mark("a")
	cache.Complete("b", "reply")

	time.Sleep(20 * time.Millisecond)
	cache.runCleanup()

	assert.Equal(t, 0, cache.Len())
}

func TestCache_CheckAndMark_Atomic(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	const numGoroutines = 100
	var winners int32
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			if !cache.CheckAndMark("contested") {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners)
}

func TestCache_Claim(t *testing.T) {
	cache := New(50*time.Millisecond, 100)
	defer cache.Close()

	_, state := cache.Claim("turn-1")
	assert.Equal(t, Claimed, state)
	_, state = cache.Claim("turn-1")
	assert.Equal(t, InFlight, state)

	cache.Complete("turn-1", "Hi!")
	reply, state := cache.Claim("turn-1")
	assert.Equal(t, Answered, state)
	assert.Equal(t, "Hi!", reply)

	cache.Release("turn-1")
	_, state = cache.Claim("turn-1")
	assert.Equal(t, Claimed, state)

	time.Sleep(60 * time.Millisecond)
	_, state = cache.Claim("turn-1")
	assert.Equal(t, Claimed, state, "expired claims can be taken again")
}

func TestCache_Claim_NeverMissesCompletedReply(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	_, state := cache.Claim("contested")
	assert.Equal(t, Claimed, state)

	const numGoroutines = 100
	var claimed, answered, inFlight int32
	var wg sync.WaitGroup
	wg.Add(numGoroutines + 1)

	go func() {
		defer wg.Done()
		cache.Complete("contested", "done")
	}()
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			reply, state := cache.Claim("contested")
			switch state {
			case Claimed:
				atomic.AddInt32(&claimed, 1)
			case Answered:
				assert.Equal(t, "done", reply)
				atomic.AddInt32(&answered, 1)
			case InFlight:
				atomic.AddInt32(&inFlight, 1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, claimed)
	assert.Equal(t, int32(numGoroutines), answered+inFlight)

	reply, state := cache.Claim("contested")
	assert.Equal(t, Answered, state)
	assert.Equal(t, "done", reply)
}

func TestCache_Close(t *testing.T) {
	cache := New(5*time.Minute, 100)
	cache.Close()
	cache.Close()
}
