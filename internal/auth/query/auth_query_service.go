package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/middleware"
	"github.com/vivesbank/backend/shared/models"
	"github.com/vivesbank/backend/shared/utils"
)

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", apperrors.ErrUnauthorized)

type UserFinder interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// AuthQueryService handles sign-in. It has no state to mutate.
type AuthQueryService struct {
	users UserFinder
}

func NewAuthQueryService(users UserFinder) *AuthQueryService {
	return &AuthQueryService{users: users}
}

func (s *AuthQueryService) SignIn(ctx context.Context, cmd cqrs.SignInCommand) (string, error) {
	user, err := s.Authenticate(ctx, cmd.Username, cmd.Password)
	if err != nil {
		return "", err
	}
	return middleware.IssueToken(user.GUID, user.Username, user.Roles)
}

// Authenticate checks a username and password pair. Unknown users and wrong
// passwords yield the same ErrUnauthorized.
func (s *AuthQueryService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(password, user.PasswordHash) {
		return nil, errInvalidCredentials
	}
	return user, nil
}
