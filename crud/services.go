package crud

import (
	"errors"

	"gorm.io/gorm"

	"odinbook/domain"
	"odinbook/errs"
)

// A ServicesConfig is any function that takes in a pointer to a Services
// object and returns an error. It wraps the constructor of one crud service,
// so that main.go can assemble the services using functional options.
type ServicesConfig func(*Services) error

// Services is a container object holding pointers to all the crud services.
// The crud services all share the database connection provided by Services.
// Order matters when assembling it: a service can only be wired to the ones
// configured before it.
type Services struct {
	db             *gorm.DB
	events         domain.EventPublisher
	ranking        domain.RankingCache
	Notification   *NotificationService
	User           *UserService
	OAuth          *OAuthService
	Friend         *FriendService
	Recommendation *RecommendationService
	Post           *PostService
	Comment        *CommentService
	Cascade        *CascadeService
}

// NewServices returns a new Services object, containing any crud services
// it's told to create by one of the passed in ServicesConfig functions.
// It shares the passed in database connection with any crud service it creates.
func NewServices(db *gorm.DB, cfgs ...ServicesConfig) (*Services, error) {
	s := Services{
		db: db,
	}
	for _, cfg := range cfgs {
		if err := cfg(&s); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// WithNotification wraps the constructor of NotificationService, NewNotificationService.
func WithNotification() ServicesConfig {
	return func(s *Services) error {
		s.Notification = NewNotificationService(s.db)
		return nil
	}
}

// WithEvents sets the publisher the friend, post and comment services hand their
// social events to. newPublisher receives the notification service as the handler
// at the end of the fan-out.
func WithEvents(newPublisher func(domain.EventHandler) (domain.EventPublisher, error)) ServicesConfig {
	return func(s *Services) error {
		if s.Notification == nil {
			return errors.New("crud: WithEvents needs WithNotification first")
		}
		pub, err := newPublisher(s.Notification)
		if err != nil {
			return err
		}
		s.events = pub
		return nil
	}
}

// WithRankingCache sets the cache recommendation rankings are kept in.
func WithRankingCache(cache domain.RankingCache) ServicesConfig {
	return func(s *Services) error {
		s.ranking = cache
		return nil
	}
}

// WithUser wraps the constructor of UserService, NewUserService.
func WithUser(pepper string) ServicesConfig {
	return func(s *Services) error {
		s.User = NewUserService(s.db, pepper)
		return nil
	}
}

// WithOAuth wraps the constructor of OAuthService, NewOAuthService.
func WithOAuth() ServicesConfig {
	return func(s *Services) error {
		if s.User == nil {
			return errors.New("crud: WithOAuth needs WithUser first")
		}
		s.OAuth = NewOAuthService(s.db, s.User)
		return nil
	}
}

// WithFriend wraps the constructor of FriendService, NewFriendService.
func WithFriend() ServicesConfig {
	return func(s *Services) error {
		if s.User == nil {
			return errors.New("crud: WithFriend needs WithUser first")
		}
		s.Friend = NewFriendService(s.db, s.User, s.events)
		return nil
	}
}

// WithRecommendation wraps the constructor of RecommendationService, NewRecommendationService.
func WithRecommendation() ServicesConfig {
	return func(s *Services) error {
		if s.Friend == nil || s.User == nil {
			return errors.New("crud: WithRecommendation needs WithUser and WithFriend first")
		}
		s.Recommendation = NewRecommendationService(s.Friend, s.User, s.ranking)
		return nil
	}
}

// WithPost wraps the constructor of PostService, NewPostService.
func WithPost() ServicesConfig {
	return func(s *Services) error {
		s.Post = NewPostService(s.db, s.events)
		return nil
	}
}

// WithComment wraps the constructor of CommentService, NewCommentService.
func WithComment() ServicesConfig {
	return func(s *Services) error {
		s.Comment = NewCommentService(s.db, s.events)
		return nil
	}
}

// WithCascade wraps the constructor of CascadeService, NewCascadeService.
func WithCascade() ServicesConfig {
	return func(s *Services) error {
		if s.User == nil || s.Post == nil || s.Comment == nil || s.Friend == nil || s.Notification == nil {
			return errors.New("crud: WithCascade needs every store configured first")
		}
		s.Cascade = NewCascadeService(s.User, CascadeStores{
			Posts:        s.Post,
			Comments:     s.Comment,
			PostLikes:    s.Post,
			CommentLikes: s.Comment,
			Relations:    s.Friend,
			Inbox:        s.Notification,
		}, s.ranking)
		return nil
	}
}

// authorize returns AuthorizationDenied unless the caller owns the resource or is an admin.
func authorize(authz domain.Authorization, action string) error {
	if !authz.Allowed() {
		return errs.Reasonf(errs.EUNAUTHORIZED, errs.AuthorizationDenied, "You are not allowed to %s.", action)
	}
	return nil
}
