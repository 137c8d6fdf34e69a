package crud

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"odinbook/database"
	"odinbook/domain"
)

// syncPublisher delivers events to the handler right away, so tests can assert
// on notifications without waiting.
type syncPublisher struct {
	mu      sync.Mutex
	handler domain.EventHandler
	events  []domain.SocialEvent
}

func (p *syncPublisher) Publish(ctx context.Context, event domain.SocialEvent) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	return p.handler.HandleEvent(ctx, event)
}

func (p *syncPublisher) kinds() []domain.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var kinds []domain.EventKind
	for _, e := range p.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

type fixture struct {
	db    *database.DB
	s     *Services
	pub   *syncPublisher
	nextU int
}

func newFixture(t *testing.T, extra ...ServicesConfig) *fixture {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	pub := &syncPublisher{}
	cfgs := []ServicesConfig{
		WithNotification(),
		WithEvents(func(h domain.EventHandler) (domain.EventPublisher, error) {
			pub.handler = h
			return pub, nil
		}),
	}
	cfgs = append(cfgs, extra...)
	cfgs = append(cfgs,
		WithUser("pepper"),
		WithOAuth(),
		WithFriend(),
		WithRecommendation(),
		WithPost(),
		WithComment(),
		WithCascade(),
	)
	s, err := NewServices(db.Gorm, cfgs...)
	require.NoError(t, err)
	return &fixture{db: db, s: s, pub: pub}
}

// users signs up n accounts and returns their ids in order.
func (f *fixture) users(t *testing.T, n int) []int {
	t.Helper()
	ids := make([]int, n)
	for i := range ids {
		f.nextU++
		u := &domain.User{
			FirstName: "User",
			LastName:  fmt.Sprint(f.nextU),
			Email:     fmt.Sprintf("user%d@example.com", f.nextU),
			Password:  "password123",
		}
		require.NoError(t, f.s.User.Create(context.Background(), u))
		ids[i] = u.ID
	}
	return ids
}

// befriend runs the request workflow to make a and b friends.
func (f *fixture) befriend(t *testing.T, a, b int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.s.Friend.SendRequest(ctx, a, b))
	require.NoError(t, f.s.Friend.AcceptRequest(ctx, owner, b, a))
}

func (f *fixture) state(t *testing.T, viewer, subject int) domain.FriendState {
	t.Helper()
	st, err := f.s.Friend.State(context.Background(), viewer, subject)
	require.NoError(t, err)
	return st
}

func (f *fixture) inbox(t *testing.T, userID int) []domain.Notification {
	t.Helper()
	ns, err := f.s.Notification.ByUser(context.Background(), userID)
	require.NoError(t, err)
	return ns
}

var (
	owner    = domain.Authorization{IsOwner: true}
	admin    = domain.Authorization{IsAdmin: true}
	stranger = domain.Authorization{}
)
