package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"odinbook/domain"
	"odinbook/errs"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	ti, err := NewTokenIssuer(testKey, time.Hour)
	require.NoError(t, err)

	token, err := ti.Issue(&domain.User{ID: 42, Email: "ada@example.com"})
	require.NoError(t, err)
	id, err := ti.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, 42, id)
}

func TestTokenRejected(t *testing.T) {
	ti, err := NewTokenIssuer(testKey, time.Hour)
	require.NoError(t, err)
	token, err := ti.Issue(&domain.User{ID: 1})
	require.NoError(t, err)

	other, err := NewTokenIssuer("another key that is long enough!!", time.Hour)
	require.NoError(t, err)
	_, err = other.Parse(token)
	assert.Equal(t, errs.EUNAUTHENTICATED, errs.ErrorCode(err))

	ti.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = ti.Parse(token)
	assert.Equal(t, errs.EUNAUTHENTICATED, errs.ErrorCode(err))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "1", Issuer: issuer})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = other.Parse(unsigned)
	assert.Equal(t, errs.EUNAUTHENTICATED, errs.ErrorCode(err))

	_, err = NewTokenIssuer("short", time.Hour)
	assert.Error(t, err)
}

type users map[int]*domain.User

func (u users) ByID(ctx context.Context, id int) (*domain.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, errs.Errorf(errs.ENOTFOUND, "User not found.")
}

func TestUserMw(t *testing.T) {
	ti, err := NewTokenIssuer(testKey, time.Hour)
	require.NoError(t, err)
	mw := &UserMw{Tokens: ti, Users: users{7: {ID: 7, FirstName: "Ada"}}}
	handler := mw.Apply(RequireUser(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetUser(r.Context()).FirstName))
	}))

	serve := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	valid, err := ti.Issue(&domain.User{ID: 7})
	require.NoError(t, err)
	rec := serve("Bearer " + valid)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", rec.Body.String())

	deleted, err := ti.Issue(&domain.User{ID: 8})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve("Bearer "+deleted).Code)
	assert.Equal(t, http.StatusUnauthorized, serve("").Code)
	assert.Equal(t, http.StatusUnauthorized, serve("Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve("Bearer garbage").Code)
}

func TestFacebookProfile(t *testing.T) {
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me" || r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1001","first_name":"Ada","last_name":"Lovelace","email":"ada@example.com"}`))
	}))
	defer graph.Close()

	fb := NewFacebook("client", "secret", "http://localhost/callback", graph.URL)
	profile, err := fb.Profile(context.Background(), &oauth2.Token{AccessToken: "good-token"})
	require.NoError(t, err)
	assert.Equal(t, &domain.ProviderProfile{ID: "1001", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}, profile)

	_, err = fb.Profile(context.Background(), &oauth2.Token{AccessToken: "bad-token"})
	assert.Equal(t, errs.EUNAUTHENTICATED, errs.ErrorCode(err))

	assert.Contains(t, fb.AuthCodeURL("xyz"), "state=xyz")
}
