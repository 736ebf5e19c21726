package worker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsAllTasks(t *testing.T) {
	p := NewPool(3)
	var done atomic.Int32

	for i := 0; i < 20; i++ {
		p.Submit(func() {
			time.Sleep(time.Millisecond)
			done.Add(1)
		})
	}
	p.Wait()

	assert.Equal(t, int32(20), done.Load())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	var running, peak atomic.Int32

	for i := 0; i < 10; i++ {
		p.Submit(func() {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
		})
	}
	p.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestNewPoolMinimumSize(t *testing.T) {
	p := NewPool(0)

	var running, peak atomic.Int32
	for i := 0; i < 4; i++ {
		p.Submit(func() {
			if n := running.Add(1); n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
		})
	}
	p.Wait()

	assert.Equal(t, int32(1), peak.Load())
}
