package arrival

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var base = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)

func TestAllowWithinCooldownOnce(t *testing.T) {
	g := NewGate(10 * time.Second)

	assert.True(t, g.Allow("alice", base))
	assert.False(t, g.Allow("alice", base.Add(4*time.Second)))
	assert.False(t, g.Allow("alice", base.Add(9999*time.Millisecond)))
	assert.True(t, g.Allow("alice", base.Add(10*time.Second)))
}

func TestAllowIsPerIdentity(t *testing.T) {
	g := NewGate(10 * time.Second)

	assert.True(t, g.Allow("alice", base))
	assert.True(t, g.Allow("bob", base.Add(time.Second)))
	assert.False(t, g.Allow("bob", base.Add(2*time.Second)))
}

func TestRejectedAttemptDoesNotExtendWindow(t *testing.T) {
	g := NewGate(10 * time.Second)

	assert.True(t, g.Allow("alice", base))
	assert.False(t, g.Allow("alice", base.Add(8*time.Second)))
	assert.True(t, g.Allow("alice", base.Add(11*time.Second)))
}

func TestForget(t *testing.T) {
	g := NewGate(10 * time.Second)
	g.Allow("alice", base)
	g.Allow("bob", base.Add(5*time.Second))

	assert.Equal(t, 1, g.Forget(base.Add(12*time.Second)))
	assert.False(t, g.Allow("bob", base.Add(12*time.Second)))
}

func TestAllowConcurrent(t *testing.T) {
	g := NewGate(time.Minute)
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Allow("alice", base) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), admitted.Load())
}
