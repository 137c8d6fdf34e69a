package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"odinbook/crud"
	"odinbook/domain"
	"odinbook/errs"
)

// Seed creates n demo accounts, befriends neighbours in a ring plus a few random
// pairs, and gives every account a post. All accounts share the password
// "password123". Accounts that already exist are reused.
func Seed(ctx context.Context, s *crud.Services, n int) error {
	authz := domain.Authorization{IsAdmin: true}
	ids := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		user := &domain.User{
			FirstName: "Demo",
			LastName:  fmt.Sprintf("User%d", i),
			Email:     fmt.Sprintf("demo%d@odinbook.test", i),
			Password:  "password123",
		}
		err := s.User.Create(ctx, user)
		if errs.ErrorCode(err) == errs.EINVALID {
			found, authErr := s.User.Authenticate(ctx, user.Email, "password123")
			if authErr != nil {
				return fmt.Errorf("seeding %s: %w", user.Email, err)
			}
			user = found
		} else if err != nil {
			return err
		}
		ids = append(ids, user.ID)
	}

	befriend := func(a, b int) error {
		err := s.Friend.SendRequest(ctx, a, b)
		switch errs.ErrorReason(err) {
		case errs.AlreadyFriend, errs.SelfTarget:
			return nil
		case errs.DuplicateRequest:
			// Left over from an earlier run; accept it now.
		default:
			if err != nil {
				return err
			}
		}
		err = s.Friend.AcceptRequest(ctx, authz, b, a)
		if errs.ErrorReason(err) == errs.RequestNotFound {
			return nil
		}
		return err
	}

	rng := rand.New(rand.NewSource(int64(n)))
	for i := range ids {
		if n > 1 {
			if err := befriend(ids[i], ids[(i+1)%n]); err != nil {
				return err
			}
		}
		if n > 3 {
			if err := befriend(ids[i], ids[rng.Intn(n)]); err != nil {
				return err
			}
		}
	}

	for i, id := range ids {
		post := &domain.Post{AuthorID: id, Content: fmt.Sprintf("Hello from demo user %d!", i+1)}
		if err := s.Post.Create(ctx, post); err != nil {
			return err
		}
	}
	slog.Info("database seeded", "users", len(ids))
	return nil
}
