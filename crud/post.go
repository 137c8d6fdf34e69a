package crud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"odinbook/domain"
	"odinbook/errs"
)

// MaxContentLength is the maximum number of characters of a post or a comment.
const MaxContentLength = 1000

// PostService manages Posts and their likes.
// It implements the domain.PostService interface.
type PostService struct {
	postValidator
	eventSink
}

// postValidator runs validations on incoming Post data.
// On success, it passes the data on to postGorm.
// Otherwise, it returns the error of the validation that has failed.
type postValidator struct {
	postGorm
}

// postGorm runs CRUD operations on the database using incoming Post data.
// It assumes that data has been validated.
type postGorm struct {
	db *gorm.DB
}

// NewPostService returns an instance of PostService.
func NewPostService(db *gorm.DB, events domain.EventPublisher) *PostService {
	return &PostService{
		postValidator: postValidator{
			postGorm{
				db: db,
			},
		},
		eventSink: eventSink{events: events},
	}
}

// Ensure the PostService struct properly implements the domain.PostService interface,
// as well as the interfaces the account deletion cascade needs.
var _ domain.PostService = &PostService{}
var _ domain.AuthorDeleter = &PostService{}
var _ domain.LikePuller = &PostService{}

// Create runs validations needed for creating new Post database records.
func (pv *postValidator) Create(ctx context.Context, post *domain.Post) error {
	err := runPostValFns(post,
		pv.authorIDValid,
		pv.contentNormalize,
		pv.contentLength)
	if err != nil {
		return err
	}
	return pv.postGorm.create(ctx, post)
}

// Update replaces the content of a post. Only its author or an admin may do that.
func (pv *postValidator) Update(ctx context.Context, authz domain.Authorization, id int, content string) (*domain.Post, error) {
	if err := authorize(authz, "edit this post"); err != nil {
		return nil, err
	}
	post := &domain.Post{ID: id, Content: content}
	if err := runPostValFns(post, pv.contentNormalize, pv.contentLength); err != nil {
		return nil, err
	}
	if err := pv.postGorm.updateContent(ctx, post); err != nil {
		return nil, err
	}
	return pv.postGorm.ByID(ctx, id, 0)
}

// Delete removes a post together with its comments and all likes on both.
func (pv *postValidator) Delete(ctx context.Context, authz domain.Authorization, id int) error {
	if err := authorize(authz, "delete this post"); err != nil {
		return err
	}
	return pv.postGorm.delete(ctx, id)
}

// Like adds the user to the likes of the post and notifies the post's author.
func (ps *PostService) Like(ctx context.Context, userID, postID int) error {
	if err := ps.postGorm.exists(ctx, postID); err != nil {
		return err
	}
	if err := ps.postGorm.like(ctx, userID, postID); err != nil {
		return err
	}
	ps.publish(ctx, domain.SocialEvent{
		Kind:    domain.PostLiked,
		ActorID: userID,
		PostID:  postID,
	})
	return nil
}

// Unlike removes the user from the likes of the post.
func (ps *PostService) Unlike(ctx context.Context, userID, postID int) error {
	return ps.postGorm.unlike(ctx, userID, postID)
}

// runPostValFns runs any number of functions of type postValFn on the passed in Post object.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runPostValFns(post *domain.Post, fns ...postValFn) error {
	for _, fn := range fns {
		if err := fn(post); err != nil {
			return err
		}
	}
	return nil
}

// A postValFn is any function that takes in a pointer to a domain.Post object and returns an error.
type postValFn = func(post *domain.Post) error

// authorIDValid ensures that the post has an author.
func (pv *postValidator) authorIDValid(post *domain.Post) error {
	if post.AuthorID <= 0 {
		return errs.Errorf(errs.EINVALID, "A post needs an author.")
	}
	return nil
}

// contentNormalize trims surrounding whitespace off the content.
func (pv *postValidator) contentNormalize(post *domain.Post) error {
	post.Content = strings.TrimSpace(post.Content)
	return nil
}

// contentLength makes sure the content is neither empty nor too long.
func (pv *postValidator) contentLength(post *domain.Post) error {
	return checkContent(post.Content, "Post")
}

// checkContent is shared by posts and comments.
func checkContent(content, what string) error {
	if content == "" {
		return errs.Errorf(errs.EINVALID, "%s content must not be empty.", what)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return errs.Errorf(errs.EINVALID, "%s content max length is %d characters.", what, MaxContentLength)
	}
	return nil
}

// ByID retrieves a single Post with its author, counts and whether the viewer likes it.
func (pg *postGorm) ByID(ctx context.Context, id, viewerID int) (*domain.Post, error) {
	var post domain.Post
	err := pg.db.WithContext(ctx).
		Preload("Author").
		First(&post, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Errorf(errs.ENOTFOUND, "The post does not exist.")
		}
		return nil, fmt.Errorf("reading post: %w", err)
	}
	posts := []domain.Post{post}
	if err := pg.decorate(ctx, viewerID, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// ByAuthor retrieves one page of the posts of an author, newest first.
func (pg *postGorm) ByAuthor(ctx context.Context, authorID, viewerID, offset, limit int) ([]domain.Post, error) {
	offset, limit = clampPage(offset, limit)
	var posts []domain.Post
	err := pg.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Preload("Author").
		Order("created_at desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("reading posts: %w", err)
	}
	if err := pg.decorate(ctx, viewerID, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Likers lists the users who like a post.
func (pg *postGorm) Likers(ctx context.Context, postID int) ([]domain.User, error) {
	if err := pg.exists(ctx, postID); err != nil {
		return nil, err
	}
	var users []domain.User
	err := pg.db.WithContext(ctx).
		Joins("JOIN post_likes ON post_likes.user_id = users.id").
		Where("post_likes.post_id = ?", postID).
		Order("users.id").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("reading likers: %w", err)
	}
	return users, nil
}

// countRow is the result row of a grouped count.
type countRow struct {
	ID    int
	Count int
}

// decorate fills in the like and comment counts of the posts, and whether the viewer likes them.
func (pg *postGorm) decorate(ctx context.Context, viewerID int, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]int, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	db := pg.db.WithContext(ctx)

	var likes, comments []countRow
	err := db.Model(&domain.PostLike{}).
		Select("post_id AS id, count(*) AS count").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&likes).Error
	if err != nil {
		return fmt.Errorf("counting post likes: %w", err)
	}
	err = db.Model(&domain.Comment{}).
		Select("post_id AS id, count(*) AS count").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&comments).Error
	if err != nil {
		return fmt.Errorf("counting comments: %w", err)
	}
	var liked []int
	if viewerID > 0 {
		err = db.Model(&domain.PostLike{}).
			Where("user_id = ? AND post_id IN ?", viewerID, ids).
			Pluck("post_id", &liked).Error
		if err != nil {
			return fmt.Errorf("reading viewer likes: %w", err)
		}
	}

	likeCounts, commentCounts, likedSet := countMap(likes), countMap(comments), toSet(liked)
	for i := range posts {
		posts[i].LikesCount = likeCounts[posts[i].ID]
		posts[i].CommentsCount = commentCounts[posts[i].ID]
		posts[i].LikedByUser = likedSet[posts[i].ID]
	}
	return nil
}

func countMap(rows []countRow) map[int]int {
	m := make(map[int]int, len(rows))
	for _, r := range rows {
		m[r.ID] = r.Count
	}
	return m
}

// exists returns ENOTFOUND if there is no post with the id.
func (pg *postGorm) exists(ctx context.Context, id int) error {
	var count int64
	err := pg.db.WithContext(ctx).Model(&domain.Post{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return fmt.Errorf("checking post: %w", err)
	}
	if count == 0 {
		return errs.Errorf(errs.ENOTFOUND, "The post does not exist.")
	}
	return nil
}

// create stores the data from the Post object in a new database record,
// then loads its author for the response.
func (pg *postGorm) create(ctx context.Context, post *domain.Post) error {
	db := pg.db.WithContext(ctx)
	if err := db.Create(post).Error; err != nil {
		return fmt.Errorf("creating post: %w", err)
	}
	if err := db.Preload("Author").First(post, "id = ?", post.ID).Error; err != nil {
		return fmt.Errorf("reading created post: %w", err)
	}
	return nil
}

func (pg *postGorm) updateContent(ctx context.Context, post *domain.Post) error {
	res := pg.db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("id = ?", post.ID).
		Update("content", post.Content)
	if res.Error != nil {
		return fmt.Errorf("updating post: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Errorf(errs.ENOTFOUND, "The post does not exist.")
	}
	return nil
}

// delete permanently deletes a post, its comments and the likes on both, in one transaction.
func (pg *postGorm) delete(ctx context.Context, id int) error {
	return pg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.Post{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("deleting post: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.Errorf(errs.ENOTFOUND, "The post does not exist.")
		}
		return deletePostDependents(tx, []int{id})
	})
}

// deletePostDependents deletes the comments and likes hanging off the given posts.
func deletePostDependents(tx *gorm.DB, postIDs []int) error {
	if len(postIDs) == 0 {
		return nil
	}
	commentIDs := tx.Model(&domain.Comment{}).Select("id").Where("post_id IN ?", postIDs)
	if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&domain.CommentLike{}).Error; err != nil {
		return fmt.Errorf("deleting comment likes: %w", err)
	}
	if err := tx.Where("post_id IN ?", postIDs).Delete(&domain.Comment{}).Error; err != nil {
		return fmt.Errorf("deleting comments: %w", err)
	}
	if err := tx.Where("post_id IN ?", postIDs).Delete(&domain.PostLike{}).Error; err != nil {
		return fmt.Errorf("deleting post likes: %w", err)
	}
	return nil
}

// like inserts the like row. An existing row means the user already likes the post.
func (pg *postGorm) like(ctx context.Context, userID, postID int) error {
	res := pg.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.PostLike{PostID: postID, UserID: userID})
	if res.Error != nil {
		return fmt.Errorf("liking post: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Reasonf(errs.EINVALID, errs.AlreadyLiked, "You already like this post.")
	}
	return nil
}

func (pg *postGorm) unlike(ctx context.Context, userID, postID int) error {
	res := pg.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&domain.PostLike{})
	if res.Error != nil {
		return fmt.Errorf("unliking post: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Reasonf(errs.ENOTFOUND, errs.NotLiked, "You cannot unlike a post you have not liked.")
	}
	return nil
}

// DeleteByAuthor deletes every post of the user, with all comments and likes on them.
func (pg *postGorm) DeleteByAuthor(ctx context.Context, userID int) error {
	return pg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int
		if err := tx.Model(&domain.Post{}).Where("author_id = ?", userID).Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("reading posts of %d: %w", userID, err)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := deletePostDependents(tx, ids); err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&domain.Post{}).Error; err != nil {
			return fmt.Errorf("deleting posts of %d: %w", userID, err)
		}
		return nil
	})
}

// PullLikesByUser removes the user from the likes of every post.
func (pg *postGorm) PullLikesByUser(ctx context.Context, userID int) error {
	err := pg.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.PostLike{}).Error
	if err != nil {
		return fmt.Errorf("pulling post likes of %d: %w", userID, err)
	}
	return nil
}
