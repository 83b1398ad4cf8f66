package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

var ErrInvalidToken = errors.New("invalid token")

func (a *authImpl) ValidateToken(token string, claims jwt.Claims) error {
	t, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(a.jwtPrivateKey), nil
	})
	if err != nil {
		return err
	}
	if !t.Valid {
		return ErrInvalidToken
	}

	return nil
}

// AccessTokenClaims are issued by the identity provider the admin app signs in with
type AccessTokenClaims struct {
	jwt.StandardClaims

	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

func (a *authImpl) Authenticate(token string) (*Principal, error) {
	var claims AccessTokenClaims
	if err := a.ValidateToken(token, &claims); err != nil {
		return nil, err
	}

	uid := claims.UID
	if uid == "" {
		uid = claims.Subject
	}
	if uid == "" {
		return nil, fmt.Errorf("%w: missing uid", ErrInvalidToken)
	}

	return &Principal{
		UID:   uid,
		Email: claims.Email,
		Role:  ParseRole(claims.Role),
	}, nil
}

func (a *authImpl) GenerateAccessToken(principal Principal) (string, error) {
	now := time.Now()
	token := jwt.New(jwt.SigningMethodHS256)

	token.Claims = AccessTokenClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   principal.UID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(time.Duration(AccessTokenLifespanInHours) * time.Hour).Unix(),
		},
		UID:   principal.UID,
		Email: principal.Email,
		Role:  string(principal.Role),
	}

	str, err := token.SignedString([]byte(a.jwtPrivateKey))
	if err != nil {
		return "", err
	}
	return str, nil
}
