package crud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"odinbook/domain"
	"odinbook/errs"
)

// CommentService manages Comments and their likes.
// It implements the domain.CommentService interface.
type CommentService struct {
	commentValidator
	eventSink
}

// commentValidator runs validations on incoming Comment data.
// On success, it passes the data on to commentGorm.
// Otherwise, it returns the error of the validation that has failed.
type commentValidator struct {
	commentGorm
}

// commentGorm runs CRUD operations on the database using incoming Comment data.
// It assumes that data has been validated.
type commentGorm struct {
	db *gorm.DB
}

// NewCommentService returns an instance of CommentService.
func NewCommentService(db *gorm.DB, events domain.EventPublisher) *CommentService {
	return &CommentService{
		commentValidator: commentValidator{
			commentGorm{
				db: db,
			},
		},
		eventSink: eventSink{events: events},
	}
}

var _ domain.CommentService = &CommentService{}
var _ domain.AuthorDeleter = &CommentService{}
var _ domain.LikePuller = &CommentService{}

// Create stores a new comment and notifies the author of the post.
func (cs *CommentService) Create(ctx context.Context, comment *domain.Comment) error {
	err := runCommentValFns(ctx, comment,
		cs.authorIDValid,
		cs.postExists,
		cs.contentNormalize,
		cs.contentLength)
	if err != nil {
		return err
	}
	if err := cs.commentGorm.create(ctx, comment); err != nil {
		return err
	}
	cs.publish(ctx, domain.SocialEvent{
		Kind:      domain.PostCommented,
		ActorID:   comment.AuthorID,
		PostID:    comment.PostID,
		CommentID: comment.ID,
	})
	return nil
}

// Update replaces the content of a comment. Only its author or an admin may do that.
func (cv *commentValidator) Update(ctx context.Context, authz domain.Authorization, id int, content string) (*domain.Comment, error) {
	if err := authorize(authz, "edit this comment"); err != nil {
		return nil, err
	}
	comment := &domain.Comment{ID: id, Content: content}
	if err := runCommentValFns(ctx, comment, cv.contentNormalize, cv.contentLength); err != nil {
		return nil, err
	}
	if err := cv.commentGorm.updateContent(ctx, comment); err != nil {
		return nil, err
	}
	return cv.commentGorm.ByID(ctx, id)
}

// Delete removes a comment and its likes.
func (cv *commentValidator) Delete(ctx context.Context, authz domain.Authorization, id int) error {
	if err := authorize(authz, "delete this comment"); err != nil {
		return err
	}
	return cv.commentGorm.delete(ctx, id)
}

// Like adds the user to the likes of the comment and notifies the comment's author.
func (cs *CommentService) Like(ctx context.Context, userID, postID, commentID int) error {
	if err := cs.commentGorm.onPost(ctx, postID, commentID); err != nil {
		return err
	}
	if err := cs.commentGorm.like(ctx, userID, commentID); err != nil {
		return err
	}
	cs.publish(ctx, domain.SocialEvent{
		Kind:      domain.CommentLiked,
		ActorID:   userID,
		PostID:    postID,
		CommentID: commentID,
	})
	return nil
}

// Unlike removes the user from the likes of the comment.
func (cs *CommentService) Unlike(ctx context.Context, userID, postID, commentID int) error {
	if err := cs.commentGorm.onPost(ctx, postID, commentID); err != nil {
		return err
	}
	return cs.commentGorm.unlike(ctx, userID, commentID)
}

// runCommentValFns runs any number of functions of type commentValFn on the passed in Comment object.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runCommentValFns(ctx context.Context, comment *domain.Comment, fns ...commentValFn) error {
	for _, fn := range fns {
		if err := fn(ctx, comment); err != nil {
			return err
		}
	}
	return nil
}

// A commentValFn is any function that validates a domain.Comment object.
type commentValFn = func(ctx context.Context, comment *domain.Comment) error

func (cv *commentValidator) authorIDValid(ctx context.Context, comment *domain.Comment) error {
	if comment.AuthorID <= 0 {
		return errs.Errorf(errs.EINVALID, "A comment needs an author.")
	}
	return nil
}

// postExists makes sure that the post to be commented on actually exists.
func (cv *commentValidator) postExists(ctx context.Context, comment *domain.Comment) error {
	var count int64
	err := cv.db.WithContext(ctx).Model(&domain.Post{}).Where("id = ?", comment.PostID).Count(&count).Error
	if err != nil {
		return fmt.Errorf("checking post: %w", err)
	}
	if count == 0 {
		return errs.Errorf(errs.ENOTFOUND, "The post does not exist.")
	}
	return nil
}

func (cv *commentValidator) contentNormalize(ctx context.Context, comment *domain.Comment) error {
	comment.Content = strings.TrimSpace(comment.Content)
	return nil
}

func (cv *commentValidator) contentLength(ctx context.Context, comment *domain.Comment) error {
	return checkContent(comment.Content, "Comment")
}

// ByID retrieves a single Comment with its author and like count.
func (cg *commentGorm) ByID(ctx context.Context, id int) (*domain.Comment, error) {
	var comment domain.Comment
	err := cg.db.WithContext(ctx).
		Preload("Author").
		First(&comment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Errorf(errs.ENOTFOUND, "The comment does not exist.")
		}
		return nil, fmt.Errorf("reading comment: %w", err)
	}
	comments := []domain.Comment{comment}
	if err := cg.decorate(ctx, 0, comments); err != nil {
		return nil, err
	}
	return &comments[0], nil
}

// ByPost retrieves one page of the comments on a post, oldest first.
func (cg *commentGorm) ByPost(ctx context.Context, postID, viewerID, offset, limit int) ([]domain.Comment, error) {
	var count int64
	if err := cg.db.WithContext(ctx).Model(&domain.Post{}).Where("id = ?", postID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("checking post: %w", err)
	}
	if count == 0 {
		return nil, errs.Errorf(errs.ENOTFOUND, "The post does not exist.")
	}

	offset, limit = clampPage(offset, limit)
	var comments []domain.Comment
	err := cg.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Preload("Author").
		Order("created_at asc").
		Order("id asc").
		Offset(offset).
		Limit(limit).
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("reading comments: %w", err)
	}
	if err := cg.decorate(ctx, viewerID, comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// decorate fills in the like counts of the comments, and whether the viewer likes them.
func (cg *commentGorm) decorate(ctx context.Context, viewerID int, comments []domain.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	ids := make([]int, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	db := cg.db.WithContext(ctx)

	var likes []countRow
	err := db.Model(&domain.CommentLike{}).
		Select("comment_id AS id, count(*) AS count").
		Where("comment_id IN ?", ids).
		Group("comment_id").
		Scan(&likes).Error
	if err != nil {
		return fmt.Errorf("counting comment likes: %w", err)
	}
	var liked []int
	if viewerID > 0 {
		err = db.Model(&domain.CommentLike{}).
			Where("user_id = ? AND comment_id IN ?", viewerID, ids).
			Pluck("comment_id", &liked).Error
		if err != nil {
			return fmt.Errorf("reading viewer likes: %w", err)
		}
	}

	likeCounts, likedSet := countMap(likes), toSet(liked)
	for i := range comments {
		comments[i].LikesCount = likeCounts[comments[i].ID]
		comments[i].LikedByUser = likedSet[comments[i].ID]
	}
	return nil
}

// onPost returns ENOTFOUND unless the comment exists and belongs to the post.
func (cg *commentGorm) onPost(ctx context.Context, postID, commentID int) error {
	var count int64
	err := cg.db.WithContext(ctx).
		Model(&domain.Comment{}).
		Where("id = ? AND post_id = ?", commentID, postID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("checking comment: %w", err)
	}
	if count == 0 {
		return errs.Errorf(errs.ENOTFOUND, "The comment does not exist.")
	}
	return nil
}

func (cg *commentGorm) create(ctx context.Context, comment *domain.Comment) error {
	db := cg.db.WithContext(ctx)
	if err := db.Create(comment).Error; err != nil {
		return fmt.Errorf("creating comment: %w", err)
	}
	if err := db.Preload("Author").First(comment, "id = ?", comment.ID).Error; err != nil {
		return fmt.Errorf("reading created comment: %w", err)
	}
	return nil
}

func (cg *commentGorm) updateContent(ctx context.Context, comment *domain.Comment) error {
	res := cg.db.WithContext(ctx).
		Model(&domain.Comment{}).
		Where("id = ?", comment.ID).
		Update("content", comment.Content)
	if res.Error != nil {
		return fmt.Errorf("updating comment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Errorf(errs.ENOTFOUND, "The comment does not exist.")
	}
	return nil
}

func (cg *commentGorm) delete(ctx context.Context, id int) error {
	return cg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.Comment{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("deleting comment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.Errorf(errs.ENOTFOUND, "The comment does not exist.")
		}
		if err := tx.Where("comment_id = ?", id).Delete(&domain.CommentLike{}).Error; err != nil {
			return fmt.Errorf("deleting comment likes: %w", err)
		}
		return nil
	})
}

func (cg *commentGorm) like(ctx context.Context, userID, commentID int) error {
	res := cg.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.CommentLike{CommentID: commentID, UserID: userID})
	if res.Error != nil {
		return fmt.Errorf("liking comment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Reasonf(errs.EINVALID, errs.AlreadyLiked, "You already like this comment.")
	}
	return nil
}

func (cg *commentGorm) unlike(ctx context.Context, userID, commentID int) error {
	res := cg.db.WithContext(ctx).
		Where("comment_id = ? AND user_id = ?", commentID, userID).
		Delete(&domain.CommentLike{})
	if res.Error != nil {
		return fmt.Errorf("unliking comment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Reasonf(errs.ENOTFOUND, errs.NotLiked, "You cannot unlike a comment you have not liked.")
	}
	return nil
}

// DeleteByAuthor deletes every comment the user wrote, on any post, with their likes.
func (cg *commentGorm) DeleteByAuthor(ctx context.Context, userID int) error {
	return cg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&domain.Comment{}).Select("id").Where("author_id = ?", userID)
		if err := tx.Where("comment_id IN (?)", ids).Delete(&domain.CommentLike{}).Error; err != nil {
			return fmt.Errorf("deleting likes on comments of %d: %w", userID, err)
		}
		if err := tx.Where("author_id = ?", userID).Delete(&domain.Comment{}).Error; err != nil {
			return fmt.Errorf("deleting comments of %d: %w", userID, err)
		}
		return nil
	})
}

// PullLikesByUser removes the user from the likes of every comment.
func (cg *commentGorm) PullLikesByUser(ctx context.Context, userID int) error {
	err := cg.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.CommentLike{}).Error
	if err != nil {
		return fmt.Errorf("pulling comment likes of %d: %w", userID, err)
	}
	return nil
}
