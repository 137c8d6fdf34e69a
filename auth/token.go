package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"odinbook/domain"
	"odinbook/errs"
)

const issuer = "odinbook"

// Claims are carried by every access token. The subject is the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	key    []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenIssuer(key string, expiry time.Duration) (*TokenIssuer, error) {
	if len(key) < 32 {
		return nil, errors.New("jwt key must be at least 32 bytes long")
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &TokenIssuer{key: []byte(key), expiry: expiry, now: time.Now}, nil
}

// Issue returns a signed access token for the user.
func (ti *TokenIssuer) Issue(user *domain.User) (string, error) {
	now := ti.now()
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   strconv.Itoa(user.ID),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.key)
}

// Parse verifies the token and returns the id of the user it was issued to.
func (ti *TokenIssuer) Parse(tokenString string) (int, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ti.key, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(ti.now))
	if err != nil {
		return 0, errs.Errorf(errs.EUNAUTHENTICATED, "Invalid or expired token.")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, errs.Errorf(errs.EUNAUTHENTICATED, "Invalid token claims.")
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil || id <= 0 {
		return 0, errs.Errorf(errs.EUNAUTHENTICATED, "Invalid token subject.")
	}
	return id, nil
}
