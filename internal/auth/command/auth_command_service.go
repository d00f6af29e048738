package command

import (
	"context"
	"fmt"
	"time"

	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/middleware"
	"github.com/vivesbank/backend/shared/models"
	"github.com/vivesbank/backend/shared/utils"
)

type UserCreator interface {
	Create(ctx context.Context, user *models.User) error
}

// AuthCommandService registers new users. Every sign-up gets the USER role.
type AuthCommandService struct {
	users UserCreator
}

func NewAuthCommandService(users UserCreator) *AuthCommandService {
	return &AuthCommandService{users: users}
}

// SignUp creates the user and returns a bearer token for it.
func (s *AuthCommandService) SignUp(ctx context.Context, cmd cqrs.SignUpCommand) (string, error) {
	hash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	now := time.Now().UTC()
	user := &models.User{
		GUID:         utils.GenerateID(utils.PrefixUser),
		Username:     cmd.Username,
		PasswordHash: hash,
		Roles:        []models.Role{models.RoleUser},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return "", err
	}
	return middleware.IssueToken(user.GUID, user.Username, user.Roles)
}
