package domain

import "context"

// The interfaces below are the narrow views the account deletion cascade has on the
// stores it sweeps. Each store implements the ones that concern it, so that no store
// has to know about any other.

// AuthorDeleter deletes all content authored by a user.
type AuthorDeleter interface {
	DeleteByAuthor(ctx context.Context, userID int) error
}

// LikePuller removes a user from every likes collection of a store.
type LikePuller interface {
	PullLikesByUser(ctx context.Context, userID int) error
}

// RelationPurger removes a user from the friend graph of every other account.
type RelationPurger interface {
	PullFriend(ctx context.Context, userID int) error
	PullRequests(ctx context.Context, userID int) error
}

// InboxPurger deletes the notifications addressed to a user.
type InboxPurger interface {
	DeleteByUser(ctx context.Context, userID int) error
}

// AccountDeleter deletes an account together with every reference to it.
type AccountDeleter interface {
	DeleteAccount(ctx context.Context, authz Authorization, userID int) error
}
