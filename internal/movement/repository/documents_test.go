package repository

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/vivesbank/backend/shared/models"
)

func TestMovementDocumentRoundTrip(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	in := &models.Movement{
		GUID:       "mov-1",
		ClientGUID: "cli-1",
		Transfer: &models.Transfer{
			OriginIBAN: "ES1", DestinationIBAN: "ES2",
			Amount:                  decimal.RequireFromString("-1234.56"),
			BeneficiaryName:         "Luis",
			DestinationMovementGUID: "mov-2",
		},
		CreatedAt: created,
	}

	raw, err := bson.Marshal(movementToDoc(in))
	require.NoError(t, err)
	var doc movementDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	out := doc.model()

	assert.Equal(t, models.KindTransfer, out.Kind())
	assert.True(t, out.Transfer.Amount.Equal(in.Transfer.Amount), "got %s", out.Transfer.Amount)
	assert.Equal(t, "mov-2", out.Transfer.DestinationMovementGUID)
	assert.True(t, out.CreatedAt.Equal(created))
	assert.Nil(t, out.CardPayment)
}

func TestMovementDocumentOmitsEmptyKinds(t *testing.T) {
	raw, err := bson.Marshal(movementToDoc(&models.Movement{
		GUID:        "mov-1",
		CardPayment: &models.CardPayment{CardNumber: "4111111111111111", Amount: decimal.NewFromInt(10)},
	}))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Contains(t, m, "cardPayment")
	assert.NotContains(t, m, "transfer")
	assert.NotContains(t, m, "directDebit")
	assert.NotContains(t, m, "_id")
}

func TestDirectDebitDocumentKeepsPeriodicity(t *testing.T) {
	last := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	doc := directDebitToDoc(&models.DirectDebit{
		GUID: "dd-1", Amount: decimal.RequireFromString("49.99"), Periodicity: models.PeriodicityMonthly,
		Active: true, LastExecution: last,
	})
	d := doc.model()
	assert.Equal(t, models.PeriodicityMonthly, d.Periodicity)
	assert.True(t, d.Amount.Equal(decimal.RequireFromString("49.99")))
	assert.False(t, d.Due(last.AddDate(0, 0, 20)))
	assert.True(t, d.Due(last.AddDate(0, 1, 2)))
}
