package dashboard

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTask struct {
	mu      sync.Mutex
	cancels int
}

func (t *countingTask) Cancel() {
	t.mu.Lock()
	t.cancels++
	t.mu.Unlock()
}

func TestRegistryReserveCommitRelease(t *testing.T) {
	r := NewRegistry()

	gen, ok := r.Reserve(1)
	require.True(t, ok)
	_, ok = r.Reserve(1)
	assert.False(t, ok, "reservation blocks a second one")
	_, ok = r.Get(1)
	assert.False(t, ok, "reservations are not active handles")
	assert.True(t, r.Has(1))

	r.Release(1, gen)
	assert.False(t, r.Has(1))

	gen, ok = r.Reserve(1)
	require.True(t, ok)
	task := &countingTask{}
	require.True(t, r.Commit(1, gen, 55, task))
	h, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, 55, h.MessageId)

	r.Release(1, gen)
	assert.True(t, r.Has(1), "release ignores committed handles")
	assert.False(t, r.Commit(1, gen, 56, task))
}

func TestRegistryRemoveCancelsTask(t *testing.T) {
	r := NewRegistry()
	gen, _ := r.Reserve(3)
	task := &countingTask{}
	r.Commit(3, gen, 1, task)

	_, ok := r.RemoveIf(3, gen+1)
	assert.False(t, ok)
	assert.Equal(t, 0, task.cancels)

	h, ok := r.RemoveIf(3, gen)
	require.True(t, ok)
	assert.Equal(t, 1, h.MessageId)
	assert.Equal(t, 1, task.cancels)

	_, ok = r.Remove(3)
	assert.False(t, ok)
}

func TestRegistryRemoveIfMessage(t *testing.T) {
	r := NewRegistry()
	gen, _ := r.Reserve(3)
	task := &countingTask{}
	r.Commit(3, gen, 1, task)
	require.True(t, r.SetMessage(3, gen, 2))

	_, ok := r.RemoveIfMessage(3, gen, 1)
	assert.False(t, ok)
	assert.Equal(t, 0, task.cancels)

	h, ok := r.RemoveIfMessage(3, gen, 2)
	require.True(t, ok)
	assert.Equal(t, 2, h.MessageId)
	assert.Equal(t, 1, task.cancels)
}

func TestRegistrySetMessageAndChannels(t *testing.T) {
	r := NewRegistry()
	for _, channel := range []int64{9, -5, 2} {
		gen, _ := r.Reserve(channel)
		r.Commit(channel, gen, 1, &countingTask{})
	}
	_, _ = r.Reserve(100)

	assert.Equal(t, []int64{-5, 2, 9}, r.Channels())
	assert.Equal(t, 3, r.Len())

	h, _ := r.Get(2)
	assert.True(t, r.SetMessage(2, h.gen, 77))
	assert.False(t, r.SetMessage(2, h.gen+1, 78))
	h, _ = r.Get(2)
	assert.Equal(t, 77, h.MessageId)
}

func TestRegistryConcurrentReserve(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Reserve(8); ok {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, won)
}
