package mutex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLockName(t *testing.T) {
	// No connection is made until the lock is taken.
	b := NewBuilder("127.0.0.1:0")

	assert.Equal(t, "dashboard:event:watch:s1", b.Event("watch:s1").Name())
	assert.Equal(t, "dashboard:event:download:queue_a:T1", b.Event("download:queue_a:T1").Name())
}

func TestLockGivesUpWithContext(t *testing.T) {
	b := NewBuilder("127.0.0.1:1")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	unlock, err := b.Lock(ctx, "watch:s1")

	require.Error(t, err)
	assert.Nil(t, unlock)
	assert.Less(t, time.Since(start), 5*time.Second)
}
