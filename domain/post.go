package domain

import (
	"context"
	"time"
)

// Post is a piece of text content written by a user.
// Its likes are stored as PostLike rows, one per liking user.
type Post struct {
	ID       int    `json:"id"`
	AuthorID int    `json:"author_id" gorm:"notNull;index"`
	Author   *User  `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Content  string `json:"content" gorm:"notNull"`

	LikesCount    int  `json:"likes_count" gorm:"-"`
	CommentsCount int  `json:"comments_count" gorm:"-"`
	LikedByUser   bool `json:"liked_by_user" gorm:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostLike is one entry of a post's likes collection.
type PostLike struct {
	PostID    int       `json:"post_id" gorm:"primaryKey;autoIncrement:false"`
	UserID    int       `json:"user_id" gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `json:"created_at"`
}

// PostService is a set of methods to manipulate and work with the Post model.
type PostService interface {
	Create(ctx context.Context, post *Post) error
	ByID(ctx context.Context, id, viewerID int) (*Post, error)
	ByAuthor(ctx context.Context, authorID, viewerID, offset, limit int) ([]Post, error)
	Update(ctx context.Context, authz Authorization, id int, content string) (*Post, error)
	Delete(ctx context.Context, authz Authorization, id int) error
	Like(ctx context.Context, userID, postID int) error
	Unlike(ctx context.Context, userID, postID int) error
	Likers(ctx context.Context, postID int) ([]User, error)
}
