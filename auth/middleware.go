package auth

import (
	"context"
	"net/http"
	"strings"

	"odinbook/domain"
	"odinbook/errs"
)

type userFinder interface {
	ByID(ctx context.Context, id int) (*domain.User, error)
}

// UserMw looks up the user a bearer token was issued to and puts them into the
// request context. Requests without a token pass through anonymously.
type UserMw struct {
	Tokens *TokenIssuer
	Users  userFinder
}

func (mw *UserMw) Apply(next http.Handler) http.Handler {
	return mw.ApplyFn(next.ServeHTTP)
}

func (mw *UserMw) ApplyFn(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next(w, r)
			return
		}
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			errs.ReturnError(w, r, errs.Errorf(errs.EUNAUTHENTICATED, "Expected a bearer token."))
			return
		}
		id, err := mw.Tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			errs.ReturnError(w, r, err)
			return
		}
		// The account may have been deleted after the token was issued.
		user, err := mw.Users.ByID(r.Context(), id)
		if err != nil {
			if errs.ErrorCode(err) == errs.ENOTFOUND {
				err = errs.Errorf(errs.EUNAUTHENTICATED, "The account of this token no longer exists.")
			}
			errs.ReturnError(w, r, err)
			return
		}
		next(w, r.WithContext(SetUser(r.Context(), user)))
	}
}

// RequireUser assumes that UserMw has already run.
func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if GetUser(r.Context()) == nil {
			errs.ReturnError(w, r, errs.Errorf(errs.EUNAUTHENTICATED, "You need to log in first."))
			return
		}
		next(w, r)
	}
}
