package checkin

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "studiofit-checkin"

var ErrInvalidToken = errors.New("invalid check-in token")

type tokenClaims struct {
	MemberID  int `json:"member_id"`
	SessionID int `json:"session_id"`
	jwt.RegisteredClaims
}

// Resolver mints and resolves opaque check-in tokens. A token binds one
// (member, session) pair and expires on its own, so a leaked QR image stops
// working after the class.
type Resolver struct {
	secret string
	ttl    time.Duration
}

func NewResolver(secret string, ttl time.Duration) *Resolver {
	return &Resolver{secret: secret, ttl: ttl}
}

func (r *Resolver) Mint(memberID, sessionID int) (string, error) {
	if r.secret == "" {
		return "", ErrInvalidToken
	}

	now := time.Now()
	claims := &tokenClaims{
		MemberID:  memberID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(r.secret))
}

// Resolve maps a token back to its (member, session) pair. Any parse,
// signature or expiry failure comes back as ErrInvalidToken; callers surface
// it verbatim as INVALID_QR_CODE.
func (r *Resolver) Resolve(tokenString string) (memberID, sessionID int, err error) {
	if r.secret == "" {
		return 0, 0, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&tokenClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return []byte(r.secret), nil
		},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return 0, 0, ErrInvalidToken
	}

	return claims.MemberID, claims.SessionID, nil
}
