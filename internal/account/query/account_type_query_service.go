package query

import (
	"context"

	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/models"
)

type AccountTypeReader interface {
	GetByGUID(ctx context.Context, guid string) (*models.AccountType, error)
	List(ctx context.Context, q cqrs.ListAccountTypesQuery) ([]models.AccountType, int64, error)
	All(ctx context.Context) ([]models.AccountType, error)
}

type AccountTypeQueryService struct {
	store AccountTypeReader
}

func NewAccountTypeQueryService(store AccountTypeReader) *AccountTypeQueryService {
	return &AccountTypeQueryService{store: store}
}

func (s *AccountTypeQueryService) GetAccountType(ctx context.Context, q cqrs.GetAccountTypeQuery) (*models.AccountType, error) {
	return s.store.GetByGUID(ctx, q.GUID)
}

func (s *AccountTypeQueryService) ListAccountTypes(ctx context.Context, q cqrs.ListAccountTypesQuery) (models.Page[models.AccountType], error) {
	q.Page = q.Page.Normalize("name", "name", "interest", "createdTimestamp")
	types, total, err := s.store.List(ctx, q)
	if err != nil {
		return models.Page[models.AccountType]{}, err
	}
	return models.NewPage(types, total, q.Page), nil
}

// Catalogue lists every account type and card type a client can choose.
func (s *AccountTypeQueryService) Catalogue(ctx context.Context) (*models.Catalogue, error) {
	types, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	if types == nil {
		types = []models.AccountType{}
	}
	return &models.Catalogue{AccountTypes: types, CardTypes: models.CardTypes}, nil
}
