package usecase

import (
	"marmite-orders/internal/domain/user"
	"marmite-orders/internal/pkg/errs"
	"marmite-orders/internal/pkg/jwt"

	"github.com/google/uuid"
)

var ErrUnknownRole = errs.New("unknown role in token")

// TokenValidator provides token validation for middleware
type TokenValidator interface {
	ValidateToken(tokenString string) (uuid.UUID, user.Role, error)
}

type tokenValidatorImpl struct {
	jwtService *jwt.Service
}

func NewTokenValidator(jwtService *jwt.Service) TokenValidator {
	return &tokenValidatorImpl{
		jwtService: jwtService,
	}
}

func (t *tokenValidatorImpl) ValidateToken(tokenString string) (uuid.UUID, user.Role, error) {
	claims, err := t.jwtService.ValidateToken(tokenString)
	if err != nil {
		return uuid.Nil, "", err
	}

	role, ok := user.ParseRole(claims.Role)
	if !ok {
		return uuid.Nil, "", ErrUnknownRole
	}

	return claims.UserID, role, nil
}
