package command

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/models"
	"github.com/vivesbank/backend/shared/utils"
)

var logger = log.With().Str("pkg", "user.command").Logger()

// UserWriter is the write store used by UserCommandService.
type UserWriter interface {
	Create(ctx context.Context, user *models.User) error
	GetByGUID(ctx context.Context, guid string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	SoftDelete(ctx context.Context, guid string) error
}

// UserViewCache keeps the read model in step with writes.
type UserViewCache interface {
	CacheUserView(ctx context.Context, view *models.UserView)
	InvalidateUserView(ctx context.Context, guid string)
}

// UserCommandService writes user state to PostgreSQL and keeps the cached
// read model up to date.
type UserCommandService struct {
	writeRepo UserWriter
	readRepo  UserViewCache
}

func NewUserCommandService(writeRepo UserWriter, readRepo UserViewCache) *UserCommandService {
	return &UserCommandService{writeRepo: writeRepo, readRepo: readRepo}
}

func (s *UserCommandService) CreateUser(ctx context.Context, cmd cqrs.CreateUserCommand) (*models.UserView, error) {
	passwordHash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	roles := cmd.Roles
	if len(roles) == 0 {
		roles = []models.Role{models.RoleUser}
	}
	now := time.Now().UTC()
	user := &models.User{
		GUID:         utils.GenerateID(utils.PrefixUser),
		Username:     cmd.Username,
		PasswordHash: passwordHash,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.writeRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	view := user.View()
	s.readRepo.CacheUserView(ctx, view)
	logger.Info().Str("user", user.GUID).Str("username", user.Username).Msg("user created")
	return view, nil
}

func (s *UserCommandService) UpdateUser(ctx context.Context, cmd cqrs.UpdateUserCommand) (*models.UserView, error) {
	user, err := s.writeRepo.GetByGUID(ctx, cmd.GUID)
	if err != nil {
		return nil, err
	}
	if user.IsDeleted {
		return nil, apperrors.NotFound("user", cmd.GUID)
	}
	if cmd.Username != "" {
		user.Username = cmd.Username
	}
	if cmd.Password != "" {
		hash, err := utils.HashPassword(cmd.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	if len(cmd.Roles) > 0 {
		user.Roles = cmd.Roles
	}
	user.UpdatedAt = time.Now().UTC()
	if err := s.writeRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	view := user.View()
	s.readRepo.CacheUserView(ctx, view)
	return view, nil
}

func (s *UserCommandService) DeleteUser(ctx context.Context, cmd cqrs.DeleteUserCommand) error {
	if err := s.writeRepo.SoftDelete(ctx, cmd.GUID); err != nil {
		return err
	}
	s.readRepo.InvalidateUserView(ctx, cmd.GUID)
	logger.Info().Str("user", cmd.GUID).Msg("user deleted")
	return nil
}
