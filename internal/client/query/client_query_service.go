package query

import (
	"context"

	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/models"
)

type ClientReader interface {
	GetByGUID(ctx context.Context, guid string) (*models.ClientView, error)
	GetByUserGUID(ctx context.Context, userGUID string) (*models.ClientView, error)
	GetByDNI(ctx context.Context, dni string) (*models.ClientView, error)
	List(ctx context.Context, q cqrs.ListClientsQuery) ([]models.ClientView, int64, error)
}

type ClientQueryService struct {
	readRepo ClientReader
}

func NewClientQueryService(readRepo ClientReader) *ClientQueryService {
	return &ClientQueryService{readRepo: readRepo}
}

func (s *ClientQueryService) GetClient(ctx context.Context, q cqrs.GetClientQuery) (*models.ClientView, error) {
	return s.readRepo.GetByGUID(ctx, q.GUID)
}

func (s *ClientQueryService) GetClientByDNI(ctx context.Context, q cqrs.GetClientByDNIQuery) (*models.ClientView, error) {
	return s.readRepo.GetByDNI(ctx, q.DNI)
}

func (s *ClientQueryService) GetMyClient(ctx context.Context, q cqrs.GetMyClientQuery) (*models.ClientView, error) {
	return s.readRepo.GetByUserGUID(ctx, q.UserGUID)
}

func (s *ClientQueryService) ListClients(ctx context.Context, q cqrs.ListClientsQuery) (models.Page[models.ClientView], error) {
	q.Page = q.Page.Normalize("name", "dni", "name", "surname", "email", "createdTimestamp")
	views, total, err := s.readRepo.List(ctx, q)
	if err != nil {
		return models.Page[models.ClientView]{}, err
	}
	return models.NewPage(views, total, q.Page), nil
}
