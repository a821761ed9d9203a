// Package auth issues and checks the bearer tokens of the calendar API.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL = 7 * 24 * time.Hour
	issuer          = "lyrahub"
	bearerPrefix    = "Bearer "
)

var (
	ErrEmptySecret  = errors.New("jwt secret is empty")
	ErrInvalidToken = errors.New("invalid token")
)

type Claims struct {
	jwt.RegisteredClaims

	UserID string `json:"uid"`
}

type Status int

const (
	// StatusAbsent means the request carried no credentials at all.
	StatusAbsent Status = iota
	StatusAuthenticated
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusInvalid:
		return "invalid"
	default:
		return "absent"
	}
}

type Outcome struct {
	Status Status
	UserID string
	Err    error
}

// Authorizer is the single place that decides who a request belongs to.
type Authorizer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthorizer(secret string, ttl time.Duration) (*Authorizer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	return &Authorizer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (a *Authorizer) IssueToken(userID string) (string, error) {
	now := a.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify returns the user id carried by a valid HS256 token.
func (a *Authorizer) Verify(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}

	return claims.UserID, nil
}

// Check reads the Authorization header. A missing header is Absent, anything
// that is present but does not verify is Invalid.
func (a *Authorizer) Check(r *http.Request) Outcome {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return Outcome{Status: StatusAbsent}
	}

	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return Outcome{Status: StatusInvalid, Err: fmt.Errorf("%w: not a bearer token", ErrInvalidToken)}
	}

	userID, err := a.Verify(strings.TrimSpace(header[len(bearerPrefix):]))
	if err != nil {
		return Outcome{Status: StatusInvalid, Err: err}
	}

	return Outcome{Status: StatusAuthenticated, UserID: userID}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(hash), nil
}

func CheckPassword(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
