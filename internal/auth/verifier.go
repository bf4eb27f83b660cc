package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "marketchat/pkg/errors"
)

// TokenVerifier is the narrow identity collaborator: given a bearer token it
// returns the authenticated user or rejects. Token issuance, sessions and
// credential storage live in the external identity service.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// JWTVerifier validates HS256 tokens whose subject is the user ID.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.ErrUnauthorized
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, apperrors.ErrUnauthorized
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, apperrors.ErrUnauthorized
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, apperrors.ErrUnauthorized
	}
	return userID, nil
}
