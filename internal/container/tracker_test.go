package container

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_GoAndStop(t *testing.T) {
	tr := NewTracker()
	started := make(chan struct{})

	tr.Go(context.Background(), "a", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started

	assert.True(t, tr.Has("a"))
	assert.Equal(t, 1, tr.Len())
	assert.True(t, tr.Stop("a"))
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_ReplaceSameID(t *testing.T) {
	tr := NewTracker()
	var cancelled atomic.Int32
	started := make(chan struct{})

	tr.Go(context.Background(), "a", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		cancelled.Add(1)
	})
	<-started

	tr.Go(context.Background(), "a", func(ctx context.Context) {})
	tr.Close()

	assert.Equal(t, int32(1), cancelled.Load())
}

func TestTracker_CloseRejectsNew(t *testing.T) {
	tr := NewTracker()
	tr.Close()

	ok := tr.Go(context.Background(), "a", func(ctx context.Context) {})
	assert.False(t, ok)
}
