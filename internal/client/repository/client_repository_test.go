package repository

import (
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/models"
)

func TestTranslateClientError(t *testing.T) {
	c := &models.Client{GUID: "cli-1", DNI: "12345678Z", Email: "ana@example.com", Phone: "600000000", UserGUID: "usr-1"}
	tests := []struct {
		constraint string
		field      string
	}{
		{"clients_dni_key", "12345678Z"},
		{"clients_email_key", "ana@example.com"},
		{"clients_phone_key", "600000000"},
		{"clients_user_guid_key", "usr-1"},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			err := translateClientError(&pq.Error{Code: "23505", Constraint: tt.constraint}, c)
			require.ErrorIs(t, err, apperrors.ErrConflict)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	err := translateClientError(errors.New("connection reset"), c)
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrConflict))
}

func TestClientViewSelectColumns(t *testing.T) {
	assert.True(t, strings.HasPrefix(strings.TrimSpace(clientViewSelect), "SELECT c.guid, c.dni,"))
	assert.Contains(t, clientViewSelect, "c.user_guid, c.is_deleted")
	assert.Equal(t, 17, strings.Count(prefixed("c.", clientColumns), "c."))
}
