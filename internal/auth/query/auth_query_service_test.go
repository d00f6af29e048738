package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/middleware"
	"github.com/vivesbank/backend/shared/models"
	"github.com/vivesbank/backend/shared/utils"
)

type fakeUsers map[string]*models.User

func (f fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	if u, ok := f[username]; ok {
		return u, nil
	}
	return nil, apperrors.NotFound("user", username)
}

func TestSignIn(t *testing.T) {
	middleware.ConfigureJWT("auth-test-secret", time.Hour)
	hash, err := utils.HashPassword("secret1")
	require.NoError(t, err)
	svc := NewAuthQueryService(fakeUsers{"ana": {GUID: "usr-1", Username: "ana", PasswordHash: hash, Roles: []models.Role{models.RoleUser}}})

	token, err := svc.SignIn(context.Background(), cqrs.SignInCommand{Username: "ana", Password: "secret1"})
	require.NoError(t, err)
	claims, err := middleware.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", claims.UserID)
	assert.Equal(t, "ana", claims.Username)

	_, err = svc.SignIn(context.Background(), cqrs.SignInCommand{Username: "ana", Password: "nope"})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = svc.SignIn(context.Background(), cqrs.SignInCommand{Username: "bob", Password: "secret1"})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
