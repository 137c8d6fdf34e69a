package domain

import (
	"context"
	"time"
)

// LinkKind tells a client which kind of entity a notification link points to.
type LinkKind string

const (
	LinkUser    LinkKind = "User"
	LinkPost    LinkKind = "Post"
	LinkComment LinkKind = "Comment"
)

// Link references an entity a notification is about.
type Link struct {
	ID   int      `json:"id"`
	Kind LinkKind `json:"kind"`
}

// Notification is a human readable record of a social event, addressed to one user.
// Only the Viewed flag ever changes after creation.
type Notification struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id" gorm:"notNull;index"`
	Links     []Link    `json:"links" gorm:"type:text;serializer:json"`
	Content   string    `json:"content" gorm:"notNull"`
	Viewed    bool      `json:"viewed" gorm:"notNull;default:false"`
	CreatedAt time.Time `json:"created_at"`
}

// EventKind names the social actions that produce notifications.
type EventKind string

const (
	PostLiked             EventKind = "post.liked"
	CommentLiked          EventKind = "comment.liked"
	PostCommented         EventKind = "post.commented"
	FriendRequestAccepted EventKind = "friend_request.accepted"
)

// SocialEvent is emitted by a social action after it has been committed.
// Only identifiers travel with the event; the recipient is resolved from storage
// when the event is handled, never taken from the producer.
type SocialEvent struct {
	Kind      EventKind `json:"kind"`
	ActorID   int       `json:"actor_id"`
	PostID    int       `json:"post_id,omitempty"`
	CommentID int       `json:"comment_id,omitempty"`
	// SenderID is the original sender of an accepted friend request.
	SenderID   int       `json:"sender_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher hands social events to the notification fan-out.
// Publishing is fire-and-forget: an error only means the event was not queued.
type EventPublisher interface {
	Publish(ctx context.Context, event SocialEvent) error
}

// EventHandler turns a social event into a notification record.
type EventHandler interface {
	HandleEvent(ctx context.Context, event SocialEvent) error
}

// NotificationService is a set of methods to read and acknowledge notifications.
type NotificationService interface {
	EventHandler
	ByUser(ctx context.Context, userID int) ([]Notification, error)
	MarkViewed(ctx context.Context, userID int) error
	CountUnviewed(ctx context.Context, userID int) (int, error)
}
