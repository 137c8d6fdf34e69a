package crud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odinbook/domain"
	"odinbook/errs"
)

func TestNotificationTemplates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 3)
	author, liker, commenter := u[0], u[1], u[2]

	post := &domain.Post{AuthorID: author, Content: "hello"}
	require.NoError(t, f.s.Post.Create(ctx, post))
	require.NoError(t, f.s.Post.Like(ctx, liker, post.ID))

	comment := &domain.Comment{PostID: post.ID, AuthorID: commenter, Content: "hi there"}
	require.NoError(t, f.s.Comment.Create(ctx, comment))
	require.NoError(t, f.s.Comment.Like(ctx, liker, post.ID, comment.ID))

	inbox := f.inbox(t, author)
	require.Len(t, inbox, 2)
	contents := []string{inbox[0].Content, inbox[1].Content}
	assert.ElementsMatch(t, []string{"User 2 liked your post", "User 3 commented on your post"}, contents)
	for _, n := range inbox {
		switch n.Content {
		case "User 2 liked your post":
			assert.Equal(t, []domain.Link{
				{ID: post.ID, Kind: domain.LinkPost},
				{ID: liker, Kind: domain.LinkUser},
			}, n.Links)
		case "User 3 commented on your post":
			assert.Equal(t, []domain.Link{
				{ID: comment.ID, Kind: domain.LinkComment},
				{ID: post.ID, Kind: domain.LinkPost},
				{ID: commenter, Kind: domain.LinkUser},
			}, n.Links)
		}
		assert.False(t, n.Viewed)
	}

	inbox = f.inbox(t, commenter)
	require.Len(t, inbox, 1)
	assert.Equal(t, "User 2 liked your comment on User 1's post", inbox[0].Content)
	assert.Equal(t, []domain.Link{
		{ID: comment.ID, Kind: domain.LinkComment},
		{ID: post.ID, Kind: domain.LinkPost},
		{ID: liker, Kind: domain.LinkUser},
	}, inbox[0].Links)

	assert.Empty(t, f.inbox(t, liker))
}

func TestNotificationSuppressesSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 1)

	post := &domain.Post{AuthorID: u[0], Content: "my post"}
	require.NoError(t, f.s.Post.Create(ctx, post))
	require.NoError(t, f.s.Post.Like(ctx, u[0], post.ID))
	comment := &domain.Comment{PostID: post.ID, AuthorID: u[0], Content: "my comment"}
	require.NoError(t, f.s.Comment.Create(ctx, comment))
	require.NoError(t, f.s.Comment.Like(ctx, u[0], post.ID, comment.ID))

	// A forged accept event for oneself.
	require.NoError(t, f.s.Notification.HandleEvent(ctx, domain.SocialEvent{
		Kind: domain.FriendRequestAccepted, ActorID: u[0], SenderID: u[0],
	}))

	assert.Len(t, f.pub.kinds(), 3)
	assert.Empty(t, f.inbox(t, u[0]))
}

func TestNotificationResolvesActorFromStorage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 2)

	post := &domain.Post{AuthorID: u[0], Content: "my post"}
	require.NoError(t, f.s.Post.Create(ctx, post))
	comment := &domain.Comment{PostID: post.ID, AuthorID: u[0], Content: "my own comment"}
	require.NoError(t, f.s.Comment.Create(ctx, comment))

	// The event claims somebody else commented; the comment says otherwise.
	require.NoError(t, f.s.Notification.HandleEvent(ctx, domain.SocialEvent{
		Kind: domain.PostCommented, ActorID: u[1], PostID: post.ID, CommentID: comment.ID,
	}))
	assert.Empty(t, f.inbox(t, u[0]))
}

func TestNotificationFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 1)

	err := f.s.Notification.HandleEvent(ctx, domain.SocialEvent{Kind: domain.PostLiked, ActorID: u[0], PostID: 77})
	assert.Error(t, err)

	err = f.s.Notification.HandleEvent(ctx, domain.SocialEvent{Kind: "post.shared", ActorID: u[0]})
	assert.Equal(t, errs.EINVALID, errs.ErrorCode(err))
}

func TestMarkNotificationsViewed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 3)
	f.befriend(t, u[0], u[1])
	f.befriend(t, u[0], u[2])

	n, err := f.s.Notification.CountUnviewed(ctx, u[0])
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, f.s.Notification.MarkViewed(ctx, u[0]))
	n, err = f.s.Notification.CountUnviewed(ctx, u[0])
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	for _, note := range f.inbox(t, u[0]) {
		assert.True(t, note.Viewed)
	}

	home, err := f.s.User.Home(ctx, owner, u[0])
	require.NoError(t, err)
	assert.Equal(t, 0, home.NotificationsCount)
}

// failingPublisher refuses every event.
type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, event domain.SocialEvent) error {
	return assert.AnError
}

func TestPublishFailureDoesNotFailAction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 2)

	f.s.Post.events = failingPublisher{}
	f.s.Friend.events = failingPublisher{}

	post := &domain.Post{AuthorID: u[0], Content: "hello"}
	require.NoError(t, f.s.Post.Create(ctx, post))
	require.NoError(t, f.s.Post.Like(ctx, u[1], post.ID))
	f.befriend(t, u[0], u[1])

	p, err := f.s.Post.ByID(ctx, post.ID, u[1])
	require.NoError(t, err)
	assert.Equal(t, 1, p.LikesCount)
	assert.Equal(t, domain.Friend, f.state(t, u[0], u[1]))
	assert.Empty(t, f.inbox(t, u[0]))
}
