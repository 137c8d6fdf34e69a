package crud

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odinbook/domain"
	"odinbook/errs"
)

func TestFriendScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 5)

	require.NoError(t, f.s.Friend.SendRequest(ctx, u[0], u[1]))
	assert.Equal(t, domain.FriendRequestSent, f.state(t, u[0], u[1]))
	assert.Equal(t, domain.FriendRequestReceived, f.state(t, u[1], u[0]))

	require.NoError(t, f.s.Friend.AcceptRequest(ctx, owner, u[1], u[0]))
	assert.Equal(t, domain.Friend, f.state(t, u[0], u[1]))
	assert.Equal(t, domain.Friend, f.state(t, u[1], u[0]))

	reqs, err := f.s.Friend.Requests(ctx, owner, u[1])
	require.NoError(t, err)
	assert.Empty(t, reqs)

	// Already friends, so a new request is refused before it is written.
	err = f.s.Friend.SendRequest(ctx, u[0], u[1])
	assert.Equal(t, errs.EINVALID, errs.ErrorCode(err))
	assert.Equal(t, errs.AlreadyFriend, errs.ErrorReason(err))

	// The other accounts are untouched.
	assert.Equal(t, domain.NotFriend, f.state(t, u[0], u[2]))
	assert.Equal(t, domain.NotFriend, f.state(t, u[3], u[4]))
}

func TestSendRequestTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 2)

	require.NoError(t, f.s.Friend.SendRequest(ctx, u[0], u[1]))
	err := f.s.Friend.SendRequest(ctx, u[0], u[1])
	assert.Equal(t, errs.EINVALID, errs.ErrorCode(err))
	assert.Equal(t, errs.DuplicateRequest, errs.ErrorReason(err))

	reqs, err := f.s.Friend.Requests(ctx, owner, u[1])
	require.NoError(t, err)
	assert.Len(t, reqs, 1)
}

func TestSendRequestToSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 2)

	for _, setup := range []func(){
		func() {},
		func() { f.befriend(t, u[0], u[1]) },
	} {
		setup()
		err := f.s.Friend.SendRequest(ctx, u[0], u[0])
		assert.Equal(t, errs.SelfTarget, errs.ErrorReason(err))
	}
	// Even for an account that does not exist.
	err := f.s.Friend.SendRequest(ctx, 999, 999)
	assert.Equal(t, errs.SelfTarget, errs.ErrorReason(err))
}

func TestSendRequestToMissingAccount(t *testing.T) {
	f := newFixture(t)
	u := f.users(t, 1)

	err := f.s.Friend.SendRequest(context.Background(), u[0], 4242)
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
	assert.Equal(t, errs.TargetNotFound, errs.ErrorReason(err))
}

func TestConcurrentSendsWriteOneRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 2)

	const n = 8
	results := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.s.Friend.SendRequest(ctx, u[0], u[1])
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, errs.DuplicateRequest, errs.ErrorReason(err))
	}
	assert.Equal(t, 1, succeeded)
}

func TestAcceptRequest(t *testing.T) {
	t.Run("without request", func(t *testing.T) {
		f := newFixture(t)
		u := f.users(t, 2)
		err := f.s.Friend.AcceptRequest(context.Background(), owner, u[1], u[0])
		assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
		assert.Equal(t, errs.RequestNotFound, errs.ErrorReason(err))
		assert.Equal(t, domain.NotFriend, f.state(t, u[0], u[1]))
	})

	t.Run("twice", func(t *testing.T) {
		f := newFixture(t)
		u := f.users(t, 2)
		f.befriend(t, u[0], u[1])
		err := f.s.Friend.AcceptRequest(context.Background(), owner, u[1], u[0])
		assert.Equal(t, errs.RequestNotFound, errs.ErrorReason(err))

		friends, err := f.s.Friend.FriendIDs(context.Background(), u[0])
		require.NoError(t, err)
		assert.Equal(t, []int{u[1]}, friends)
	})

	t.Run("crossing requests", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		u := f.users(t, 2)
		require.NoError(t, f.s.Friend.SendRequest(ctx, u[0], u[1]))
		require.NoError(t, f.s.Friend.SendRequest(ctx, u[1], u[0]))
		assert.Equal(t, domain.FriendRequestReceived, f.state(t, u[0], u[1]))

		require.NoError(t, f.s.Friend.AcceptRequest(ctx, owner, u[1], u[0]))
		for _, id := range u {
			reqs, err := f.s.Friend.Requests(ctx, owner, id)
			require.NoError(t, err)
			assert.Empty(t, reqs)
		}
		assert.Equal(t, domain.Friend, f.state(t, u[0], u[1]))
	})

	t.Run("not authorized", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		u := f.users(t, 2)
		require.NoError(t, f.s.Friend.SendRequest(ctx, u[0], u[1]))
		err := f.s.Friend.AcceptRequest(ctx, stranger, u[1], u[0])
		assert.Equal(t, errs.EUNAUTHORIZED, errs.ErrorCode(err))
		assert.Equal(t, errs.AuthorizationDenied, errs.ErrorReason(err))
		assert.Equal(t, domain.FriendRequestSent, f.state(t, u[0], u[1]))
	})

	t.Run("by admin", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		u := f.users(t, 2)
		require.NoError(t, f.s.Friend.SendRequest(ctx, u[0], u[1]))
		require.NoError(t, f.s.Friend.AcceptRequest(ctx, admin, u[1], u[0]))
		assert.Equal(t, domain.Friend, f.state(t, u[1], u[0]))
	})
}

func TestRejectAndCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 3)

	require.NoError(t, f.s.Friend.SendRequest(ctx, u[0], u[1]))
	require.NoError(t, f.s.Friend.RejectRequest(ctx, owner, u[1], u[0]))
	assert.Equal(t, domain.NotFriend, f.state(t, u[0], u[1]))
	err := f.s.Friend.RejectRequest(ctx, owner, u[1], u[0])
	assert.Equal(t, errs.RequestNotFound, errs.ErrorReason(err))

	require.NoError(t, f.s.Friend.SendRequest(ctx, u[0], u[2]))
	require.NoError(t, f.s.Friend.CancelRequest(ctx, owner, u[0], u[2]))
	assert.Equal(t, domain.NotFriend, f.state(t, u[2], u[0]))
	err = f.s.Friend.CancelRequest(ctx, owner, u[0], u[2])
	assert.Equal(t, errs.RequestNotFound, errs.ErrorReason(err))

	// A rejected sender may ask again.
	assert.NoError(t, f.s.Friend.SendRequest(ctx, u[0], u[1]))

	err = f.s.Friend.CancelRequest(ctx, stranger, u[0], u[1])
	assert.Equal(t, errs.AuthorizationDenied, errs.ErrorReason(err))
	assert.Equal(t, domain.FriendRequestSent, f.state(t, u[0], u[1]))
}

func TestUnfriend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 3)
	f.befriend(t, u[0], u[1])
	f.befriend(t, u[0], u[2])

	err := f.s.Friend.Unfriend(ctx, stranger, u[0], u[1])
	assert.Equal(t, errs.AuthorizationDenied, errs.ErrorReason(err))
	assert.Equal(t, domain.Friend, f.state(t, u[0], u[1]))

	require.NoError(t, f.s.Friend.Unfriend(ctx, owner, u[1], u[0]))
	assert.Equal(t, domain.NotFriend, f.state(t, u[0], u[1]))
	assert.Equal(t, domain.NotFriend, f.state(t, u[1], u[0]))
	assert.Equal(t, domain.Friend, f.state(t, u[0], u[2]))

	ids, err := f.s.Friend.FriendIDs(ctx, u[0])
	require.NoError(t, err)
	assert.Equal(t, []int{u[2]}, ids)
	ids, err = f.s.Friend.FriendIDs(ctx, u[1])
	require.NoError(t, err)
	assert.Empty(t, ids)

	err = f.s.Friend.Unfriend(ctx, owner, u[0], u[1])
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
	assert.Equal(t, errs.NotFriend, errs.ErrorReason(err))

	// A new pending request shows through after unfriending.
	require.NoError(t, f.s.Friend.SendRequest(ctx, u[1], u[0]))
	assert.Equal(t, domain.FriendRequestReceived, f.state(t, u[0], u[1]))
}

func TestFriendStatePrefersFriendOverStaleRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 2)
	f.befriend(t, u[0], u[1])

	// Write a stale request directly; the workflow would refuse it.
	require.NoError(t, f.db.Gorm.Create(&domain.FriendRequest{ReceiverID: u[0], SenderID: u[1]}).Error)
	st, err := f.s.Friend.State(ctx, u[0], u[1])
	require.NoError(t, err)
	assert.Equal(t, domain.Friend, st)
}

func TestRequestsAndMarkViewed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 4)

	require.NoError(t, f.s.Friend.SendRequest(ctx, u[1], u[0]))
	require.NoError(t, f.s.Friend.MarkRequestsViewed(ctx, owner, u[0]))
	require.NoError(t, f.s.Friend.SendRequest(ctx, u[2], u[0]))

	reqs, err := f.s.Friend.Requests(ctx, owner, u[0])
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.False(t, reqs[0].Viewed)
	assert.Equal(t, u[2], reqs[0].SenderID)
	require.NotNil(t, reqs[0].Sender)
	assert.Equal(t, "User", reqs[0].Sender.FirstName)
	assert.True(t, reqs[1].Viewed)

	home, err := f.s.User.Home(ctx, owner, u[0])
	require.NoError(t, err)
	assert.Equal(t, 1, home.FriendRequestsCount)

	_, err = f.s.Friend.Requests(ctx, stranger, u[0])
	assert.Equal(t, errs.AuthorizationDenied, errs.ErrorReason(err))
	err = f.s.Friend.MarkRequestsViewed(ctx, stranger, u[0])
	assert.Equal(t, errs.AuthorizationDenied, errs.ErrorReason(err))
}

func TestFriendsAnnotatedForViewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 4)
	f.befriend(t, u[0], u[1])
	f.befriend(t, u[0], u[2])
	f.befriend(t, u[0], u[3])
	f.befriend(t, u[3], u[1])
	require.NoError(t, f.s.Friend.SendRequest(ctx, u[2], u[3]))

	friends, err := f.s.Friend.Friends(ctx, u[3], u[0])
	require.NoError(t, err)
	require.Len(t, friends, 3)

	states := map[int]domain.FriendState{}
	for _, fr := range friends {
		states[fr.ID] = fr.FriendState
	}
	assert.Equal(t, domain.Friend, states[u[1]])
	assert.Equal(t, domain.FriendRequestReceived, states[u[2]])
	// The viewer's own entry carries no state.
	assert.Equal(t, domain.FriendState(""), states[u[3]])
}

func TestAcceptPublishesEvent(t *testing.T) {
	f := newFixture(t)
	u := f.users(t, 2)
	f.befriend(t, u[0], u[1])

	assert.Equal(t, []domain.EventKind{domain.FriendRequestAccepted}, f.pub.kinds())
	inbox := f.inbox(t, u[0])
	require.Len(t, inbox, 1)
	assert.Equal(t, "User 2 accepted your friend request", inbox[0].Content)
	assert.Equal(t, []domain.Link{{ID: u[1], Kind: domain.LinkUser}}, inbox[0].Links)
	assert.Empty(t, f.inbox(t, u[1]))
}
