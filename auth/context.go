package auth

import (
	"context"

	"odinbook/domain"
)

const (
	userKey privateKey = "user"
)

type privateKey string

// SetUser stores the authenticated user in the context.
func SetUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser returns the authenticated user, or nil for anonymous requests.
func GetUser(ctx context.Context) *domain.User {
	if temp := ctx.Value(userKey); temp != nil {
		if user, ok := temp.(*domain.User); ok {
			return user
		}
	}
	return nil
}
