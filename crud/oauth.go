package crud

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"odinbook/domain"
	"odinbook/errs"
)

// OAuthService logs users in through a third-party provider. The first login
// creates an account, or links the provider account to an existing account
// with the same email address.
type OAuthService struct {
	oauthValidator
	users *UserService
}

type oauthValidator struct {
	oauthGorm
}

type oauthGorm struct {
	db *gorm.DB
}

// NewOAuthService returns an instance of OAuthService.
func NewOAuthService(db *gorm.DB, users *UserService) *OAuthService {
	return &OAuthService{
		oauthValidator: oauthValidator{
			oauthGorm{
				db: db,
			},
		},
		users: users,
	}
}

var _ domain.OAuthService = &OAuthService{}

// Login returns the account linked to the provider profile, creating it if needed.
func (oas *OAuthService) Login(ctx context.Context, provider string, profile *domain.ProviderProfile) (*domain.User, error) {
	oauth := &domain.OAuth{Provider: provider, ProviderUserID: profile.ID}
	if err := runOAuthValFns(oauth, oas.providerRequired, oas.providerUserIDRequired); err != nil {
		return nil, err
	}

	existing, err := oas.oauthGorm.byProviderUserID(ctx, provider, profile.ID)
	if err == nil {
		return oas.users.ByID(ctx, existing.UserID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user, err := oas.accountFor(ctx, profile)
	if err != nil {
		return nil, err
	}
	oauth.UserID = user.ID
	if err := runOAuthValFns(oauth, oas.userIDRequired); err != nil {
		return nil, err
	}
	if err := oas.oauthGorm.create(ctx, oauth); err != nil {
		return nil, err
	}
	return user, nil
}

// accountFor finds the account with the profile's email, or signs the person up.
func (oas *OAuthService) accountFor(ctx context.Context, profile *domain.ProviderProfile) (*domain.User, error) {
	if profile.Email != "" {
		user := &domain.User{Email: profile.Email}
		_ = oas.users.emailNormalize(user)
		found, err := oas.users.byEmail(ctx, user.Email)
		if err == nil {
			return found, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	user := &domain.User{
		FirstName:        profile.FirstName,
		LastName:         profile.LastName,
		Email:            profile.Email,
		NoPasswordNeeded: true,
	}
	if user.Email == "" {
		// Facebook does not share an address for every account.
		user.Email = fmt.Sprintf("%s@facebook.invalid", profile.ID)
	}
	if err := oas.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// runOAuthValFns runs any number of functions of type oauthValFn on the passed in OAuth object.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runOAuthValFns(oauth *domain.OAuth, fns ...oauthValFn) error {
	for _, fn := range fns {
		if err := fn(oauth); err != nil {
			return err
		}
	}
	return nil
}

// A oauthValFn is any function that takes in a pointer to a domain.OAuth object and returns an error.
type oauthValFn = func(oauth *domain.OAuth) error

func (ov *oauthValidator) providerRequired(oauth *domain.OAuth) error {
	if oauth.Provider != domain.ProviderFacebook {
		return errs.Errorf(errs.EINVALID, "Unknown login provider %q.", oauth.Provider)
	}
	return nil
}

func (ov *oauthValidator) providerUserIDRequired(oauth *domain.OAuth) error {
	if oauth.ProviderUserID == "" {
		return errs.Errorf(errs.EUNAUTHENTICATED, "The login provider did not identify the user.")
	}
	return nil
}

func (ov *oauthValidator) userIDRequired(oauth *domain.OAuth) error {
	if oauth.UserID <= 0 {
		return errs.Errorf(errs.EINVALID, "A login needs an account.")
	}
	return nil
}

func (og *oauthGorm) byProviderUserID(ctx context.Context, provider, providerUserID string) (*domain.OAuth, error) {
	var oauth domain.OAuth
	err := og.db.WithContext(ctx).
		Where("provider = ?", provider).
		Where("provider_user_id = ?", providerUserID).
		First(&oauth).Error
	if err != nil {
		return nil, err
	}
	return &oauth, nil
}

func (og *oauthGorm) create(ctx context.Context, oauth *domain.OAuth) error {
	if err := og.db.WithContext(ctx).Create(oauth).Error; err != nil {
		return fmt.Errorf("linking login: %w", err)
	}
	return nil
}
