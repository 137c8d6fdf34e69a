package domain

import (
	"context"
	"time"
)

// User represents a registered account. Friend lists and pending friend requests
// are not embedded in the record itself; they live in the friendships and
// friend_requests tables, where every row is owned by exactly one account.
type User struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name" gorm:"notNull"`
	LastName  string `json:"last_name" gorm:"notNull"`
	Email     string `json:"email,omitempty" gorm:"notNull;uniqueIndex"`
	IsAdmin   bool   `json:"is_admin"`

	// Password is only ever set on incoming data and gets cleared after hashing.
	Password     string `json:"password,omitempty" gorm:"-"`
	PasswordHash string `json:"-"`
	// NoPasswordNeeded is set for accounts created through a third-party login.
	NoPasswordNeeded bool `json:"-" gorm:"-"`

	// FriendState is the relationship of the requesting user to this user.
	// It is computed per request and never stored.
	FriendState FriendState `json:"friend_state,omitempty" gorm:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Name returns the user's full name as it is used in notification texts.
func (u *User) Name() string {
	return u.FirstName + " " + u.LastName
}

// UserUpdate holds the editable profile fields.
type UserUpdate struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=50"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=50"`
}

// HomeSummary is what a user sees first after logging in: themselves,
// plus the number of things waiting for their attention.
type HomeSummary struct {
	User                *User `json:"user"`
	FriendRequestsCount int   `json:"friend_requests_count"`
	NotificationsCount  int   `json:"notifications_count"`
}

// Authorization is computed by the http layer for every privileged operation.
// The caller either owns the resource or is an administrator; services never
// inspect the request themselves.
type Authorization struct {
	IsOwner bool
	IsAdmin bool
}

// Allowed reports whether the privileged operation may run.
func (a Authorization) Allowed() bool {
	return a.IsOwner || a.IsAdmin
}

// UserService is a set of methods to manipulate and work with the User model.
type UserService interface {
	Create(ctx context.Context, user *User) error
	Authenticate(ctx context.Context, email, password string) (*User, error)
	ByID(ctx context.Context, id int) (*User, error)
	Exists(ctx context.Context, id int) (bool, error)
	Update(ctx context.Context, authz Authorization, id int, upd *UserUpdate) (*User, error)
	SetAdmin(ctx context.Context, id int, isAdmin bool) error
	Home(ctx context.Context, authz Authorization, id int) (*HomeSummary, error)
}
