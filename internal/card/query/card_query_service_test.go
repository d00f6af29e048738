package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivesbank/backend/internal/card/repository"
	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/models"
)

type fakeSecrets struct {
	card  *models.Card
	owner *repository.CardOwner
}

func (f *fakeSecrets) GetByGUID(_ context.Context, guid string) (*models.Card, error) {
	if f.card == nil || f.card.GUID != guid {
		return nil, apperrors.NotFound("card", guid)
	}
	return f.card, nil
}
func (f *fakeSecrets) Owner(context.Context, string) (*repository.CardOwner, error) { return f.owner, nil }

type fakeAuth map[string]string

func (f fakeAuth) Authenticate(_ context.Context, username, password string) (*models.User, error) {
	if f[username] != password {
		return nil, fmt.Errorf("invalid credentials: %w", apperrors.ErrUnauthorized)
	}
	return &models.User{GUID: "usr-" + username, Username: username}, nil
}

func TestGetCardPrivate(t *testing.T) {
	card := &models.Card{GUID: "crd-1", Number: "4111111111111111", PIN: "1234", CVV: 321}
	auth := fakeAuth{"ana": "secret1", "bob": "secret2"}
	ctx := context.Background()

	svc := NewCardQueryService(nil, &fakeSecrets{card: card, owner: &repository.CardOwner{UserGUID: "usr-ana", Username: "ana"}}, auth)

	view, err := svc.GetCardPrivate(ctx, cqrs.GetCardPrivateQuery{GUID: "crd-1", UserGUID: "usr-ana", Username: "ana", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "1234", view.PIN)
	assert.Equal(t, 321, view.CVV)

	_, err = svc.GetCardPrivate(ctx, cqrs.GetCardPrivateQuery{GUID: "crd-1", UserGUID: "usr-ana", Username: "ana", Password: "bad"})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = svc.GetCardPrivate(ctx, cqrs.GetCardPrivateQuery{GUID: "crd-1", UserGUID: "usr-ana", Username: "bob", Password: "secret2"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden, "credentials of another user")

	_, err = svc.GetCardPrivate(ctx, cqrs.GetCardPrivateQuery{GUID: "crd-1", UserGUID: "usr-bob", Username: "bob", Password: "secret2"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden, "card owned by someone else")

	unlinked := NewCardQueryService(nil, &fakeSecrets{card: card}, auth)
	_, err = unlinked.GetCardPrivate(ctx, cqrs.GetCardPrivateQuery{GUID: "crd-1", UserGUID: "usr-ana", Username: "ana", Password: "secret1"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}
