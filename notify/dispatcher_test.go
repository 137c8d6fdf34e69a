package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odinbook/domain"
)

// recorder remembers the events it handled.
type recorder struct {
	mu     sync.Mutex
	events []domain.SocialEvent
	block  chan struct{}
	fail   bool
}

func (r *recorder) HandleEvent(ctx context.Context, event domain.SocialEvent) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if r.fail {
		return assert.AnError
	}
	return nil
}

func (r *recorder) handled() []domain.SocialEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SocialEvent(nil), r.events...)
}

func TestDispatcherHandlesEveryEvent(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, WithWorkers(3), WithBuffer(100))
	ctx := context.Background()

	for i := 1; i <= 50; i++ {
		require.NoError(t, d.Publish(ctx, domain.SocialEvent{Kind: domain.PostLiked, ActorID: i, PostID: 1}))
	}
	d.Close()

	events := rec.handled()
	require.Len(t, events, 50)
	seen := map[int]bool{}
	for _, e := range events {
		seen[e.ActorID] = true
	}
	assert.Len(t, seen, 50)
}

func TestDispatcherRejectsWhenFull(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	d := NewDispatcher(rec, WithWorkers(1), WithBuffer(1))
	ctx := context.Background()
	event := domain.SocialEvent{Kind: domain.PostLiked, ActorID: 1, PostID: 1}

	// The worker takes the first event and blocks on it; the second fills the queue.
	require.NoError(t, d.Publish(ctx, event))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.Publish(ctx, event))
	assert.ErrorIs(t, d.Publish(ctx, event), ErrQueueFull)

	close(rec.block)
	d.Close()
	assert.Len(t, rec.handled(), 2)
}

func TestDispatcherAfterClose(t *testing.T) {
	d := NewDispatcher(&recorder{})
	d.Close()
	d.Close()
	err := d.Publish(context.Background(), domain.SocialEvent{Kind: domain.PostLiked, ActorID: 1})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDispatcherSurvivesHandlerFailure(t *testing.T) {
	rec := &recorder{fail: true}
	d := NewDispatcher(rec, WithWorkers(1))
	ctx := context.Background()
	require.NoError(t, d.Publish(ctx, domain.SocialEvent{Kind: domain.PostLiked, ActorID: 1}))
	require.NoError(t, d.Publish(ctx, domain.SocialEvent{Kind: domain.PostLiked, ActorID: 2}))
	d.Close()
	assert.Len(t, rec.handled(), 2)
}
