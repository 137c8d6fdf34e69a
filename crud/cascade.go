package crud

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"odinbook/domain"
	"odinbook/errs"
)

// CascadeService deletes accounts. Before the account row goes, every reference
// to the account is swept out of the other stores. It only knows those stores
// through the narrow interfaces of the domain package.
type CascadeService struct {
	posts     domain.AuthorDeleter
	comments  domain.AuthorDeleter
	postLikes domain.LikePuller
	comLikes  domain.LikePuller
	relations domain.RelationPurger
	inbox     domain.InboxPurger
	accounts  *userGorm
	// ranking is optional; the deleted account's cached ranking is dropped.
	ranking domain.RankingCache
}

// CascadeStores groups the stores the cascade sweeps.
type CascadeStores struct {
	Posts        domain.AuthorDeleter
	Comments     domain.AuthorDeleter
	PostLikes    domain.LikePuller
	CommentLikes domain.LikePuller
	Relations    domain.RelationPurger
	Inbox        domain.InboxPurger
}

// NewCascadeService returns an instance of CascadeService.
func NewCascadeService(users *UserService, stores CascadeStores, ranking domain.RankingCache) *CascadeService {
	return &CascadeService{
		posts:     stores.Posts,
		comments:  stores.Comments,
		postLikes: stores.PostLikes,
		comLikes:  stores.CommentLikes,
		relations: stores.Relations,
		inbox:     stores.Inbox,
		accounts:  &users.userGorm,
		ranking:   ranking,
	}
}

var _ domain.AccountDeleter = &CascadeService{}

// DeleteAccount runs the sweeps concurrently and waits for all of them. Only when
// every sweep succeeded is the account row removed. A failed sweep leaves the
// account in place and reports CascadeIncomplete; sweeps that already committed
// stay committed, and running the deletion again finishes the job since every
// sweep is idempotent.
func (cs *CascadeService) DeleteAccount(ctx context.Context, authz domain.Authorization, userID int) error {
	if err := authorize(authz, "delete this account"); err != nil {
		return err
	}
	exists, err := cs.accounts.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return errs.Reasonf(errs.ENOTFOUND, errs.TargetNotFound, "The user does not exist.")
	}

	g, gctx := errgroup.WithContext(ctx)
	sweep := func(name string, fn func(ctx context.Context) error) {
		g.Go(func() error {
			start := time.Now()
			err := fn(gctx)
			cascadeDuration.WithLabelValues(name, outcome(err)).Observe(time.Since(start).Seconds())
			if err != nil {
				slog.ErrorContext(ctx, "account deletion sweep failed", "sweep", name, "user", userID, "error", err)
			}
			return err
		})
	}

	// Comments on the user's posts go with the posts; the comment sweep then
	// only meets comments on other people's posts.
	sweep("content", func(ctx context.Context) error {
		if err := cs.posts.DeleteByAuthor(ctx, userID); err != nil {
			return err
		}
		return cs.comments.DeleteByAuthor(ctx, userID)
	})
	// Requests go before friendships. An accept racing the deletion either finds
	// its request gone or commits first and leaves rows the friend pull removes.
	sweep("relations", func(ctx context.Context) error {
		if err := cs.relations.PullRequests(ctx, userID); err != nil {
			return err
		}
		return cs.relations.PullFriend(ctx, userID)
	})
	sweep("likes", func(ctx context.Context) error {
		if err := cs.postLikes.PullLikesByUser(ctx, userID); err != nil {
			return err
		}
		return cs.comLikes.PullLikesByUser(ctx, userID)
	})
	sweep("inbox", func(ctx context.Context) error {
		return cs.inbox.DeleteByUser(ctx, userID)
	})

	if err := g.Wait(); err != nil {
		return &errs.Error{
			Code:    errs.EINTERNAL,
			Reason:  errs.CascadeIncomplete,
			Message: "The account could not be deleted completely. Please try again.",
		}
	}

	if err := cs.accounts.deleteAccount(ctx, userID); err != nil {
		return err
	}
	if cs.ranking != nil {
		if err := cs.ranking.Invalidate(ctx, userID); err != nil {
			slog.WarnContext(ctx, "dropping cached ranking", "user", userID, "error", err)
		}
	}
	slog.InfoContext(ctx, "account deleted", "user", userID)
	return nil
}
