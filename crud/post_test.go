package crud

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odinbook/domain"
	"odinbook/errs"
)

func TestPostContentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 1)

	cases := []struct {
		name    string
		content string
		ok      bool
	}{
		{"empty", "", false},
		{"blank", "   \n ", false},
		{"max length", strings.Repeat("ü", MaxContentLength), true},
		{"too long", strings.Repeat("a", MaxContentLength+1), false},
		{"trimmed", "  hi  ", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			post := &domain.Post{AuthorID: u[0], Content: c.content}
			err := f.s.Post.Create(ctx, post)
			if c.ok {
				require.NoError(t, err)
				assert.Equal(t, strings.TrimSpace(c.content), post.Content)
				require.NotNil(t, post.Author)
				assert.Equal(t, u[0], post.Author.ID)
				return
			}
			assert.Equal(t, errs.EINVALID, errs.ErrorCode(err))
		})
	}
}

func TestPostLikes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 3)
	post := &domain.Post{AuthorID: u[0], Content: "hello"}
	require.NoError(t, f.s.Post.Create(ctx, post))

	require.NoError(t, f.s.Post.Like(ctx, u[1], post.ID))
	require.NoError(t, f.s.Post.Like(ctx, u[2], post.ID))
	err := f.s.Post.Like(ctx, u[1], post.ID)
	assert.Equal(t, errs.EINVALID, errs.ErrorCode(err))
	assert.Equal(t, errs.AlreadyLiked, errs.ErrorReason(err))

	err = f.s.Post.Like(ctx, u[1], 999)
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))

	p, err := f.s.Post.ByID(ctx, post.ID, u[1])
	require.NoError(t, err)
	assert.Equal(t, 2, p.LikesCount)
	assert.True(t, p.LikedByUser)

	likers, err := f.s.Post.Likers(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, likers, 2)
	assert.Equal(t, u[1], likers[0].ID)

	require.NoError(t, f.s.Post.Unlike(ctx, u[1], post.ID))
	err = f.s.Post.Unlike(ctx, u[1], post.ID)
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
	assert.Equal(t, errs.NotLiked, errs.ErrorReason(err))

	p, err = f.s.Post.ByID(ctx, post.ID, u[1])
	require.NoError(t, err)
	assert.Equal(t, 1, p.LikesCount)
	assert.False(t, p.LikedByUser)
}

func TestPostUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 2)
	post := &domain.Post{AuthorID: u[0], Content: "first"}
	require.NoError(t, f.s.Post.Create(ctx, post))
	comment := &domain.Comment{PostID: post.ID, AuthorID: u[1], Content: "reply"}
	require.NoError(t, f.s.Comment.Create(ctx, comment))
	require.NoError(t, f.s.Comment.Like(ctx, u[0], post.ID, comment.ID))
	require.NoError(t, f.s.Post.Like(ctx, u[1], post.ID))

	_, err := f.s.Post.Update(ctx, stranger, post.ID, "changed")
	assert.Equal(t, errs.AuthorizationDenied, errs.ErrorReason(err))

	updated, err := f.s.Post.Update(ctx, owner, post.ID, " changed ")
	require.NoError(t, err)
	assert.Equal(t, "changed", updated.Content)
	assert.Equal(t, 1, updated.CommentsCount)

	_, err = f.s.Post.Update(ctx, owner, 999, "x")
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))

	err = f.s.Post.Delete(ctx, stranger, post.ID)
	assert.Equal(t, errs.AuthorizationDenied, errs.ErrorReason(err))
	require.NoError(t, f.s.Post.Delete(ctx, admin, post.ID))

	_, err = f.s.Post.ByID(ctx, post.ID, 0)
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
	_, err = f.s.Comment.ByID(ctx, comment.ID)
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))

	var likes int64
	require.NoError(t, f.db.Gorm.Model(&domain.CommentLike{}).Count(&likes).Error)
	assert.Zero(t, likes)
	require.NoError(t, f.db.Gorm.Model(&domain.PostLike{}).Count(&likes).Error)
	assert.Zero(t, likes)
}

func TestPostsByAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 2)
	for _, c := range []string{"one", "two", "three"} {
		require.NoError(t, f.s.Post.Create(ctx, &domain.Post{AuthorID: u[0], Content: c}))
	}
	require.NoError(t, f.s.Post.Create(ctx, &domain.Post{AuthorID: u[1], Content: "other"}))

	posts, err := f.s.Post.ByAuthor(ctx, u[0], u[1], 0, 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	rest, err := f.s.Post.ByAuthor(ctx, u[0], u[1], 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	for _, p := range append(posts, rest...) {
		assert.Equal(t, u[0], p.AuthorID)
	}
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.users(t, 2)
	post := &domain.Post{AuthorID: u[0], Content: "post"}
	require.NoError(t, f.s.Post.Create(ctx, post))
	other := &domain.Post{AuthorID: u[0], Content: "other post"}
	require.NoError(t, f.s.Post.Create(ctx, other))

	err := f.s.Comment.Create(ctx, &domain.Comment{PostID: 999, AuthorID: u[1], Content: "x"})
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))

	c := &domain.Comment{PostID: post.ID, AuthorID: u[1], Content: "nice"}
	require.NoError(t, f.s.Comment.Create(ctx, c))

	// The comment must be addressed through its own post.
	err = f.s.Comment.Like(ctx, u[0], other.ID, c.ID)
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))

	require.NoError(t, f.s.Comment.Like(ctx, u[0], post.ID, c.ID))
	err = f.s.Comment.Like(ctx, u[0], post.ID, c.ID)
	assert.Equal(t, errs.AlreadyLiked, errs.ErrorReason(err))

	list, err := f.s.Comment.ByPost(ctx, post.ID, u[0], 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].LikesCount)
	assert.True(t, list[0].LikedByUser)

	updated, err := f.s.Comment.Update(ctx, owner, c.ID, "very nice")
	require.NoError(t, err)
	assert.Equal(t, "very nice", updated.Content)

	require.NoError(t, f.s.Comment.Unlike(ctx, u[0], post.ID, c.ID))
	err = f.s.Comment.Unlike(ctx, u[0], post.ID, c.ID)
	assert.Equal(t, errs.NotLiked, errs.ErrorReason(err))

	require.NoError(t, f.s.Comment.Delete(ctx, owner, c.ID))
	err = f.s.Comment.Delete(ctx, owner, c.ID)
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))

	_, err = f.s.Comment.ByPost(ctx, 999, u[0], 0, 10)
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
}
