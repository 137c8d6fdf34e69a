package domain

import (
	"context"
	"time"
)

// Comment is a reply to a Post.
type Comment struct {
	ID       int    `json:"id"`
	PostID   int    `json:"post_id" gorm:"notNull;index"`
	AuthorID int    `json:"author_id" gorm:"notNull;index"`
	Author   *User  `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Content  string `json:"content" gorm:"notNull"`

	LikesCount  int  `json:"likes_count" gorm:"-"`
	LikedByUser bool `json:"liked_by_user" gorm:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommentLike is one entry of a comment's likes collection.
type CommentLike struct {
	CommentID int       `json:"comment_id" gorm:"primaryKey;autoIncrement:false"`
	UserID    int       `json:"user_id" gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentService is a set of methods to manipulate and work with the Comment model.
type CommentService interface {
	Create(ctx context.Context, comment *Comment) error
	ByID(ctx context.Context, id int) (*Comment, error)
	ByPost(ctx context.Context, postID, viewerID, offset, limit int) ([]Comment, error)
	Update(ctx context.Context, authz Authorization, id int, content string) (*Comment, error)
	Delete(ctx context.Context, authz Authorization, id int) error
	Like(ctx context.Context, userID, postID, commentID int) error
	Unlike(ctx context.Context, userID, postID, commentID int) error
}
