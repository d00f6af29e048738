package query

import (
	"context"

	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/models"
	"github.com/vivesbank/backend/shared/utils"
)

type AccountReader interface {
	GetByGUID(ctx context.Context, guid string) (*models.AccountView, error)
	GetByIBAN(ctx context.Context, iban string) (*models.AccountView, error)
	List(ctx context.Context, q cqrs.ListAccountsQuery) ([]models.AccountView, int64, error)
	ListByClient(ctx context.Context, clientGUID string) ([]models.AccountView, error)
}

type ClientGetter interface {
	GetByGUID(ctx context.Context, guid string) (*models.ClientView, error)
	GetByUserGUID(ctx context.Context, userGUID string) (*models.ClientView, error)
}

type AccountQueryService struct {
	readRepo AccountReader
	clients  ClientGetter
}

func NewAccountQueryService(readRepo AccountReader, clients ClientGetter) *AccountQueryService {
	return &AccountQueryService{readRepo: readRepo, clients: clients}
}

func (s *AccountQueryService) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.AccountView, error) {
	return s.readRepo.GetByGUID(ctx, q.GUID)
}

func (s *AccountQueryService) GetAccountByIBAN(ctx context.Context, q cqrs.GetAccountByIBANQuery) (*models.AccountView, error) {
	return s.readRepo.GetByIBAN(ctx, utils.NormalizeIBAN(q.IBAN))
}

func (s *AccountQueryService) ListAccounts(ctx context.Context, q cqrs.ListAccountsQuery) (models.Page[models.AccountView], error) {
	q.Page = q.Page.Normalize("createdTimestamp", "iban", "balance", "createdTimestamp")
	views, total, err := s.readRepo.List(ctx, q)
	if err != nil {
		return models.Page[models.AccountView]{}, err
	}
	return models.NewPage(views, total, q.Page), nil
}

func (s *AccountQueryService) ListClientAccounts(ctx context.Context, q cqrs.ListClientAccountsQuery) ([]models.AccountView, error) {
	if _, err := s.clients.GetByGUID(ctx, q.ClientGUID); err != nil {
		return nil, err
	}
	return s.list(ctx, q.ClientGUID)
}

func (s *AccountQueryService) ListMyAccounts(ctx context.Context, q cqrs.ListMyAccountsQuery) ([]models.AccountView, error) {
	client, err := s.clients.GetByUserGUID(ctx, q.UserGUID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, client.GUID)
}

func (s *AccountQueryService) list(ctx context.Context, clientGUID string) ([]models.AccountView, error) {
	views, err := s.readRepo.ListByClient(ctx, clientGUID)
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = []models.AccountView{}
	}
	return views, nil
}
