package identity

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken     = stderrors.New("invalid token")
	ErrExpiredToken     = stderrors.New("token has expired")
	ErrInvalidIssuer    = stderrors.New("invalid token issuer")
	ErrMissingSubject   = stderrors.New("token missing subject")
	ErrInvalidSignature = stderrors.New("invalid token signature")
)

type jwtClaims struct {
	jwt.RegisteredClaims
	UID   string `json:"uid,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Admin bool   `json:"admin,omitempty"`
}

// JWTVerifier accepts HS256 tokens signed with a shared secret
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *JWTVerifier) Verify(_ context.Context, rawToken string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(rawToken, &jwtClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return v.secret, nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, ErrInvalidIssuer
	}

	uid := claims.UID
	if uid == "" {
		uid = claims.Subject
	}
	if uid == "" {
		return nil, ErrMissingSubject
	}

	return &Identity{UID: uid, Email: claims.Email, Name: claims.Name, Admin: claims.Admin}, nil
}

// Issue signs a token for id. Used by tooling and tests; the gateway itself
// only verifies.
func (v *JWTVerifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   id.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
		},
		UID:   id.UID,
		Email: id.Email,
		Name:  id.Name,
		Admin: id.Admin,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
