package domain

import (
	"context"
	"time"
)

// Friendship is one entry of a user's friend list. A friendship between A and B
// is always stored as two rows, (A, B) and (B, A), written in the same transaction.
// The composite primary key keeps a friend list free of duplicates.
type Friendship struct {
	UserID    int       `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	FriendID  int       `json:"friend_id" gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `json:"created_at"`
}

// FriendRequest is a pending, directed proposal from Sender to Receiver. It is
// owned by the receiver. The composite primary key allows at most one pending
// request per (receiver, sender) pair, which is what makes sending race-safe.
type FriendRequest struct {
	ReceiverID int       `json:"receiver_id" gorm:"primaryKey;autoIncrement:false"`
	SenderID   int       `json:"sender_id" gorm:"primaryKey;autoIncrement:false;index"`
	Sender     *User     `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
	Viewed     bool      `json:"viewed" gorm:"notNull;default:false"`
	CreatedAt  time.Time `json:"created_at"`
}

// FriendState is the derived relationship of one user (the viewer) to another (the subject).
type FriendState string

const (
	Friend                FriendState = "FRIEND"
	FriendRequestSent     FriendState = "FRIEND_REQUEST_SENT"
	FriendRequestReceived FriendState = "FRIEND_REQUEST_RECEIVED"
	NotFriend             FriendState = "NOT_FRIEND"
)

// ResolveFriendState applies the precedence FRIEND > RECEIVED > SENT > NOT_FRIEND
// to the three independent facts about a pair. A stale request entry must never
// hide an established friendship.
func ResolveFriendState(isFriend, received, sent bool) FriendState {
	switch {
	case isFriend:
		return Friend
	case received:
		return FriendRequestReceived
	case sent:
		return FriendRequestSent
	default:
		return NotFriend
	}
}

// Recommendation is a friend-of-friend suggestion.
type Recommendation struct {
	User          *User `json:"user"`
	MutualFriends int   `json:"mutual_friends"`
}

// Ranked is a recommendation before its user record is loaded.
type Ranked struct {
	UserID        int `json:"user_id"`
	MutualFriends int `json:"mutual_friends"`
}

// FriendService is the friend request workflow plus the friend state resolver.
type FriendService interface {
	State(ctx context.Context, viewerID, subjectID int) (FriendState, error)
	SendRequest(ctx context.Context, senderID, receiverID int) error
	AcceptRequest(ctx context.Context, authz Authorization, receiverID, senderID int) error
	RejectRequest(ctx context.Context, authz Authorization, receiverID, senderID int) error
	CancelRequest(ctx context.Context, authz Authorization, senderID, receiverID int) error
	Unfriend(ctx context.Context, authz Authorization, userID, friendID int) error
	MarkRequestsViewed(ctx context.Context, authz Authorization, receiverID int) error
	Requests(ctx context.Context, authz Authorization, receiverID int) ([]FriendRequest, error)
	Friends(ctx context.Context, viewerID, userID int) ([]User, error)
}

// RecommendationService ranks friends of friends of the subject by their number of
// mutual friends. Each result carries the viewer's friend state.
type RecommendationService interface {
	Recommend(ctx context.Context, authz Authorization, viewerID, subjectID, offset, limit int) ([]Recommendation, error)
}

// RankingCache keeps the full ranking of a subject for a short while, so that the
// pages of one browsing session are cut from the same snapshot.
type RankingCache interface {
	Get(ctx context.Context, subjectID int) ([]Ranked, bool, error)
	Set(ctx context.Context, subjectID int, ranking []Ranked) error
	Invalidate(ctx context.Context, subjectID int) error
}
