package commands

import (
	"context"

	"github.com/google/uuid"

	"marmite-orders/internal/domain/user"
	reqdto "marmite-orders/internal/handler/dto/request"
	"marmite-orders/internal/pkg/errs"
	"marmite-orders/internal/pkg/jwt"
	"marmite-orders/internal/pkg/password"
	"marmite-orders/internal/usecase/queries"
)

var (
	ErrUserNotFound         = errs.New("user not found")
	ErrInvalidCredentials   = errs.New("invalid credentials")
	ErrUserInactive         = errs.New("user inactive")
	ErrAuthenticationFailed = errs.New("authentication failed")
	ErrTokenGeneration      = errs.New("token generation failed")
)

type LoginResult struct {
	UserID uuid.UUID
	Role   string
	Token  string
}

type AuthCommands interface {
	Login(ctx context.Context, req reqdto.LoginRequest) (*LoginResult, error)
}

type authCommandsImpl struct {
	readStore  queries.UserReadStore
	jwtService *jwt.Service
}

func NewAuthCommands(readStore queries.UserReadStore, jwtService *jwt.Service) AuthCommands {
	return &authCommandsImpl{
		readStore:  readStore,
		jwtService: jwtService,
	}
}

func (a *authCommandsImpl) Login(ctx context.Context, req reqdto.LoginRequest) (*LoginResult, error) {
	userReadModel, err := a.validateUser(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	role, ok := user.ParseRole(userReadModel.Role)
	if !ok {
		return nil, ErrAuthenticationFailed
	}

	token, err := a.jwtService.GenerateToken(userReadModel.ID, role)
	if err != nil {
		return nil, errs.Mark(err, ErrTokenGeneration)
	}

	return &LoginResult{
		UserID: userReadModel.ID,
		Role:   userReadModel.Role,
		Token:  token,
	}, nil
}

func (a *authCommandsImpl) validateUser(ctx context.Context, email, plainPassword string) (*queries.AuthorizedUserView, error) {
	userReadModel, hashedPassword, err := a.readStore.FindByEmail(ctx, email)
	if err != nil {
		// Return same error as password mismatch to prevent user enumeration attacks
		return nil, ErrInvalidCredentials
	}

	if userReadModel == nil {
		return nil, ErrUserNotFound
	}

	if !userReadModel.IsActive {
		return nil, ErrUserInactive
	}

	if err := password.ComparePassword(hashedPassword, plainPassword); err != nil {
		return nil, ErrInvalidCredentials
	}

	return userReadModel, nil
}
