package query

import (
	"context"

	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/models"
)

type UserReader interface {
	GetByGUID(ctx context.Context, guid string) (*models.UserView, error)
	List(ctx context.Context, q cqrs.ListUsersQuery) ([]models.UserView, int64, error)
}

type UserQueryService struct {
	readRepo UserReader
}

func NewUserQueryService(readRepo UserReader) *UserQueryService {
	return &UserQueryService{readRepo: readRepo}
}

func (s *UserQueryService) GetUser(ctx context.Context, q cqrs.GetUserQuery) (*models.UserView, error) {
	return s.readRepo.GetByGUID(ctx, q.GUID)
}

func (s *UserQueryService) ListUsers(ctx context.Context, q cqrs.ListUsersQuery) (models.Page[models.UserView], error) {
	q.Page = q.Page.Normalize("username", "username", "createdTimestamp", "guid")
	views, total, err := s.readRepo.List(ctx, q)
	if err != nil {
		return models.Page[models.UserView]{}, err
	}
	return models.NewPage(views, total, q.Page), nil
}
