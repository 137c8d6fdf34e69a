package crud

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"odinbook/domain"
	"odinbook/errs"
)

// UserService manages Users. It is also the part of the authentication system
// that checks credentials against the database; token issuance lives in the auth
// package. It implements the domain.UserService interface.
type UserService struct {
	userValidator
}

// userValidator runs validations on incoming User data.
// On success, it passes the data on to userGorm.
// Otherwise, it returns the error of the validation that has failed.
type userValidator struct {
	pepper     string
	emailRegex *regexp.Regexp
	userGorm
}

// userGorm runs CRUD operations on the database using incoming User data.
// It assumes that data has been validated.
type userGorm struct {
	db *gorm.DB
}

// NewUserService returns an instance of UserService.
func NewUserService(db *gorm.DB, pepper string) *UserService {
	return &UserService{
		userValidator{
			pepper:     pepper,
			emailRegex: regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,16}$`),
			userGorm: userGorm{
				db: db,
			},
		},
	}
}

// Ensure the UserService struct properly implements the domain.UserService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.UserService = &UserService{}

// Authenticate checks a submitted email address and password for existence and correctness.
func (uv *userValidator) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user := &domain.User{Email: email}
	if err := runUserValFns(user, uv.emailNormalize); err != nil {
		return nil, err
	}
	found, err := uv.userGorm.byEmail(ctx, user.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Errorf(errs.EUNAUTHENTICATED, "The email address does not exist in our database.")
		}
		return nil, err
	}
	if found.PasswordHash == "" {
		return nil, errs.Errorf(errs.EUNAUTHENTICATED, "This account logs in with Facebook.")
	}

	// Append the pepper to the submitted password, hash it, and compare the result to the
	// stored hash. If they match, the submitted password is correct.
	err = bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password+uv.pepper))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, errs.Errorf(errs.EUNAUTHENTICATED, "The password is incorrect.")
		}
		return nil, err
	}
	return found, nil
}

// Create runs validations needed for creating new User database records.
func (uv *userValidator) Create(ctx context.Context, user *domain.User) error {
	err := runUserValFns(user,
		uv.idUnset,
		uv.namesNormalize,
		uv.namesRequired,
		uv.passwordRequired,
		uv.passwordMinLength,
		uv.passwordBcrypt,
		uv.passwordHashRequired,
		uv.emailNormalize,
		uv.emailRequired,
		uv.emailFormat,
		uv.emailIsAvail(ctx))
	if err != nil {
		return err
	}
	user.IsAdmin = false
	return uv.userGorm.create(ctx, user)
}

// Update changes the names of an account. Only the account owner or an admin may do that.
func (uv *userValidator) Update(ctx context.Context, authz domain.Authorization, id int, upd *domain.UserUpdate) (*domain.User, error) {
	if err := authorize(authz, "edit this account"); err != nil {
		return nil, err
	}
	user, err := uv.userGorm.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
	}
	if err := runUserValFns(user, uv.namesNormalize, uv.namesRequired); err != nil {
		return nil, err
	}
	if err := uv.userGorm.updateNames(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Home summarizes what waits for the user: unviewed friend requests and notifications.
func (uv *userValidator) Home(ctx context.Context, authz domain.Authorization, id int) (*domain.HomeSummary, error) {
	if err := authorize(authz, "see this home page"); err != nil {
		return nil, err
	}
	return uv.userGorm.home(ctx, id)
}

// runUserValFns runs any number of functions of type userValFn on the passed in User object.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runUserValFns(user *domain.User, fns ...userValFn) error {
	for _, fn := range fns {
		if err := fn(user); err != nil {
			return err
		}
	}
	return nil
}

// A userValFn is any function that takes in a pointer to a domain.User object and returns an error.
type userValFn func(user *domain.User) error

// idUnset makes sure a new account does not bring its own id.
func (uv *userValidator) idUnset(user *domain.User) error {
	if user.ID != 0 {
		return errs.Errorf(errs.EINVALID, "A new account must not have an id.")
	}
	return nil
}

// emailFormat makes sure that a provided email address matches a predefined regex pattern.
func (uv *userValidator) emailFormat(user *domain.User) error {
	if user.Email == "" {
		return nil
	}
	if !uv.emailRegex.MatchString(user.Email) {
		return errs.Errorf(errs.EINVALID, "The email address is invalid.")
	}
	return nil
}

// emailIsAvail makes sure that a provided email address is not yet taken.
func (uv *userValidator) emailIsAvail(ctx context.Context) userValFn {
	return func(user *domain.User) error {
		existing, err := uv.userGorm.byEmail(ctx, user.Email)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if user.ID != existing.ID {
			return errs.Errorf(errs.EINVALID, "This email address is already taken.")
		}
		return nil
	}
}

// emailNormalize converts the email to all lowercase and trims its whitespaces.
func (uv *userValidator) emailNormalize(user *domain.User) error {
	user.Email = strings.TrimSpace(strings.ToLower(user.Email))
	return nil
}

// emailRequired makes sure that the email is not the empty string.
func (uv *userValidator) emailRequired(user *domain.User) error {
	if user.Email == "" {
		return errs.Errorf(errs.EINVALID, "An email address is required.")
	}
	return nil
}

// namesNormalize trims the whitespace around first and last name.
func (uv *userValidator) namesNormalize(user *domain.User) error {
	user.FirstName = strings.TrimSpace(user.FirstName)
	user.LastName = strings.TrimSpace(user.LastName)
	return nil
}

// namesRequired makes sure both names are set and at most 50 characters long.
func (uv *userValidator) namesRequired(user *domain.User) error {
	if user.FirstName == "" || user.LastName == "" {
		return errs.Errorf(errs.EINVALID, "First and last name are required.")
	}
	if utf8.RuneCountInString(user.FirstName) > 50 || utf8.RuneCountInString(user.LastName) > 50 {
		return errs.Errorf(errs.EINVALID, "Names must not be longer than 50 characters.")
	}
	return nil
}

// passwordBcrypt hashes a user's password with a predefined pepper.
// It bcrypts it, if the Password field is not the empty string.
// It then clears the password on the user object in memory.
func (uv *userValidator) passwordBcrypt(user *domain.User) error {
	if user.Password == "" {
		return nil
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(user.Password+uv.pepper), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashedBytes)
	user.Password = ""
	return nil
}

// passwordHashRequired makes sure that the user's password hash is not the empty string.
func (uv *userValidator) passwordHashRequired(user *domain.User) error {
	if user.NoPasswordNeeded {
		return nil
	}
	if user.PasswordHash == "" {
		return errs.Errorf(errs.EINVALID, "A password is required.")
	}
	return nil
}

// passwordMinLength makes sure that the user's password is at least 8 characters long.
func (uv *userValidator) passwordMinLength(user *domain.User) error {
	if user.Password == "" {
		return nil
	}
	if utf8.RuneCountInString(user.Password) < 8 {
		return errs.Errorf(errs.EINVALID, "The password must have at least 8 characters.")
	}
	return nil
}

// passwordRequired makes sure that the user's password is not the empty string.
func (uv *userValidator) passwordRequired(user *domain.User) error {
	if user.NoPasswordNeeded {
		return nil
	}
	if user.Password == "" {
		return errs.Errorf(errs.EINVALID, "A password is required.")
	}
	return nil
}

// ByID retrieves a User database record by ID.
func (ug *userGorm) ByID(ctx context.Context, id int) (*domain.User, error) {
	var user domain.User
	err := first(ug.db.WithContext(ctx).Where("id = ?", id), &user)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Reasonf(errs.ENOTFOUND, errs.TargetNotFound, "The user does not exist.")
		}
		return nil, fmt.Errorf("reading user: %w", err)
	}
	return &user, nil
}

// ByIDs retrieves the User records with the given ids. Missing ids are skipped.
func (ug *userGorm) ByIDs(ctx context.Context, ids []int) ([]domain.User, error) {
	var users []domain.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := ug.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("reading users: %w", err)
	}
	return users, nil
}

// Exists reports whether there is an account with the id.
func (ug *userGorm) Exists(ctx context.Context, id int) (bool, error) {
	var count int64
	err := ug.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking user: %w", err)
	}
	return count > 0, nil
}

// SetAdmin grants or revokes the admin flag of an account.
func (ug *userGorm) SetAdmin(ctx context.Context, id int, isAdmin bool) error {
	res := ug.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("is_admin", isAdmin)
	if res.Error != nil {
		return fmt.Errorf("setting admin flag: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Reasonf(errs.ENOTFOUND, errs.TargetNotFound, "The user does not exist.")
	}
	return nil
}

// byEmail retrieves a User database record by Email.
func (ug *userGorm) byEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := first(ug.db.WithContext(ctx).Where("email = ?", email), &user)
	return &user, err
}

func (ug *userGorm) home(ctx context.Context, id int) (*domain.HomeSummary, error) {
	user, err := ug.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	db := ug.db.WithContext(ctx)
	var requests, notifications int64
	err = db.Model(&domain.FriendRequest{}).
		Where("receiver_id = ? AND viewed = ?", id, false).
		Count(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("counting friend requests: %w", err)
	}
	err = db.Model(&domain.Notification{}).
		Where("user_id = ? AND viewed = ?", id, false).
		Count(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("counting notifications: %w", err)
	}
	return &domain.HomeSummary{
		User:                user,
		FriendRequestsCount: int(requests),
		NotificationsCount:  int(notifications),
	}, nil
}

// create stores the data from the User object in a new database record.
func (ug *userGorm) create(ctx context.Context, user *domain.User) error {
	if err := ug.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (ug *userGorm) updateNames(ctx context.Context, user *domain.User) error {
	err := ug.db.WithContext(ctx).
		Model(user).
		Updates(map[string]interface{}{
			"first_name": user.FirstName,
			"last_name":  user.LastName,
		}).Error
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

// deleteAccount removes the account row and its third-party logins. It runs after
// every reference to the account has been swept.
func (ug *userGorm) deleteAccount(ctx context.Context, id int) error {
	return ug.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&domain.OAuth{}).Error; err != nil {
			return fmt.Errorf("deleting logins of %d: %w", id, err)
		}
		res := tx.Delete(&domain.User{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("deleting user %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.Reasonf(errs.ENOTFOUND, errs.TargetNotFound, "The user does not exist.")
		}
		return nil
	})
}

// first is a helper for getting the first database record that matches a given query.
func first(db *gorm.DB, dst interface{}) error {
	return db.First(dst).Error
}
