package crud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"odinbook/domain"
	"odinbook/errs"
)

// NotificationService turns social events into notification records and serves
// them back to their recipients. It implements the domain.NotificationService interface.
type NotificationService struct {
	notificationGorm
}

// notificationGorm reads the entities an event refers to and stores notifications.
type notificationGorm struct {
	db *gorm.DB
}

// NewNotificationService returns an instance of NotificationService.
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{
		notificationGorm{
			db: db,
		},
	}
}

var _ domain.NotificationService = &NotificationService{}
var _ domain.InboxPurger = &NotificationService{}

// HandleEvent records a notification for the event's recipient. Recipient and actor
// are resolved from storage, and nobody is ever notified about their own action.
func (ns *NotificationService) HandleEvent(ctx context.Context, event domain.SocialEvent) error {
	n, err := ns.compose(ctx, event)
	if err != nil {
		notificationTotal.WithLabelValues(string(event.Kind), "failed").Inc()
		return err
	}
	if n == nil {
		notificationTotal.WithLabelValues(string(event.Kind), "suppressed").Inc()
		return nil
	}
	if err := ns.db.WithContext(ctx).Create(n).Error; err != nil {
		notificationTotal.WithLabelValues(string(event.Kind), "failed").Inc()
		return fmt.Errorf("creating notification: %w", err)
	}
	notificationTotal.WithLabelValues(string(event.Kind), "created").Inc()
	return nil
}

// compose builds the notification for an event. It returns nil when the actor is
// the recipient.
func (ns *NotificationService) compose(ctx context.Context, event domain.SocialEvent) (*domain.Notification, error) {
	switch event.Kind {
	case domain.PostLiked:
		post, err := ns.post(ctx, event.PostID)
		if err != nil {
			return nil, err
		}
		if post.AuthorID == event.ActorID {
			return nil, nil
		}
		actor, err := ns.user(ctx, event.ActorID)
		if err != nil {
			return nil, err
		}
		return &domain.Notification{
			UserID: post.AuthorID,
			Links: []domain.Link{
				{ID: post.ID, Kind: domain.LinkPost},
				{ID: actor.ID, Kind: domain.LinkUser},
			},
			Content: fmt.Sprintf("%s liked your post", actor.Name()),
		}, nil

	case domain.CommentLiked:
		comment, err := ns.comment(ctx, event.CommentID)
		if err != nil {
			return nil, err
		}
		if comment.AuthorID == event.ActorID {
			return nil, nil
		}
		post, err := ns.post(ctx, comment.PostID)
		if err != nil {
			return nil, err
		}
		actor, err := ns.user(ctx, event.ActorID)
		if err != nil {
			return nil, err
		}
		return &domain.Notification{
			UserID: comment.AuthorID,
			Links: []domain.Link{
				{ID: comment.ID, Kind: domain.LinkComment},
				{ID: post.ID, Kind: domain.LinkPost},
				{ID: actor.ID, Kind: domain.LinkUser},
			},
			Content: fmt.Sprintf("%s liked your comment on %s's post", actor.Name(), post.Author.Name()),
		}, nil

	case domain.PostCommented:
		comment, err := ns.comment(ctx, event.CommentID)
		if err != nil {
			return nil, err
		}
		post, err := ns.post(ctx, comment.PostID)
		if err != nil {
			return nil, err
		}
		// The comment's author is the actor, whatever the producer claimed.
		if post.AuthorID == comment.AuthorID {
			return nil, nil
		}
		actor, err := ns.user(ctx, comment.AuthorID)
		if err != nil {
			return nil, err
		}
		return &domain.Notification{
			UserID: post.AuthorID,
			Links: []domain.Link{
				{ID: comment.ID, Kind: domain.LinkComment},
				{ID: post.ID, Kind: domain.LinkPost},
				{ID: actor.ID, Kind: domain.LinkUser},
			},
			Content: fmt.Sprintf("%s commented on your post", actor.Name()),
		}, nil

	case domain.FriendRequestAccepted:
		if event.SenderID == event.ActorID {
			return nil, nil
		}
		if _, err := ns.user(ctx, event.SenderID); err != nil {
			return nil, err
		}
		actor, err := ns.user(ctx, event.ActorID)
		if err != nil {
			return nil, err
		}
		return &domain.Notification{
			UserID:  event.SenderID,
			Links:   []domain.Link{{ID: actor.ID, Kind: domain.LinkUser}},
			Content: fmt.Sprintf("%s accepted your friend request", actor.Name()),
		}, nil
	}
	return nil, errs.Errorf(errs.EINVALID, "Unknown event kind %q.", event.Kind)
}

// ByUser lists the notifications of a user, newest first.
func (ng *notificationGorm) ByUser(ctx context.Context, userID int) ([]domain.Notification, error) {
	var ns []domain.Notification
	err := ng.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Find(&ns).Error
	if err != nil {
		return nil, fmt.Errorf("reading notifications: %w", err)
	}
	return ns, nil
}

// MarkViewed flags every unviewed notification of a user as viewed.
func (ng *notificationGorm) MarkViewed(ctx context.Context, userID int) error {
	err := ng.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND viewed = ?", userID, false).
		Update("viewed", true).Error
	if err != nil {
		return fmt.Errorf("marking notifications viewed: %w", err)
	}
	return nil
}

// CountUnviewed counts the notifications a user has not looked at yet.
func (ng *notificationGorm) CountUnviewed(ctx context.Context, userID int) (int, error) {
	var count int64
	err := ng.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND viewed = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting notifications: %w", err)
	}
	return int(count), nil
}

// DeleteByUser empties the inbox of a user.
func (ng *notificationGorm) DeleteByUser(ctx context.Context, userID int) error {
	err := ng.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.Notification{}).Error
	if err != nil {
		return fmt.Errorf("deleting notifications of %d: %w", userID, err)
	}
	return nil
}

func (ng *notificationGorm) post(ctx context.Context, id int) (*domain.Post, error) {
	var post domain.Post
	err := ng.db.WithContext(ctx).Preload("Author").First(&post, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("resolving post %d: %w", id, err)
	}
	if post.Author == nil {
		return nil, fmt.Errorf("resolving author of post %d: %w", id, gorm.ErrRecordNotFound)
	}
	return &post, nil
}

func (ng *notificationGorm) comment(ctx context.Context, id int) (*domain.Comment, error) {
	var comment domain.Comment
	if err := ng.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("resolving comment %d: %w", id, err)
	}
	return &comment, nil
}

func (ng *notificationGorm) user(ctx context.Context, id int) (*domain.User, error) {
	var user domain.User
	if err := ng.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("resolving user %d: %w", id, err)
	}
	return &user, nil
}

// eventSink is embedded by the services producing social events.
type eventSink struct {
	events domain.EventPublisher
}

// publish hands the event to the fan-out. The triggering action has already
// committed, so a failure here is only logged.
func (es eventSink) publish(ctx context.Context, event domain.SocialEvent) {
	if es.events == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := es.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		notificationTotal.WithLabelValues(string(event.Kind), "dropped").Inc()
		slog.WarnContext(ctx, "social event not published", "kind", event.Kind, "actor", event.ActorID, "error", err)
	}
}
