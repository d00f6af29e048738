package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vivesbank/backend/shared/models"
)

// Amounts are stored as Decimal128 so Mongo aggregations keep exact cents.

type directDebitDoc struct {
	GUID            string               `bson:"guid"`
	ClientGUID      string               `bson:"clientGuid"`
	OriginIBAN      string               `bson:"originIban"`
	DestinationIBAN string               `bson:"destinationIban"`
	Amount          primitive.Decimal128 `bson:"amount"`
	CreditorName    string               `bson:"creditorName"`
	StartDate       time.Time            `bson:"startDate"`
	Periodicity     string               `bson:"periodicity"`
	Active          bool                 `bson:"active"`
	LastExecution   time.Time            `bson:"lastExecution"`
}

type payrollDoc struct {
	DestinationIBAN string               `bson:"destinationIban"`
	OriginIBAN      string               `bson:"originIban"`
	Amount          primitive.Decimal128 `bson:"amount"`
	CompanyName     string               `bson:"companyName"`
	CompanyCIF      string               `bson:"companyCif"`
}

type cardPaymentDoc struct {
	CardNumber   string               `bson:"cardNumber"`
	Amount       primitive.Decimal128 `bson:"amount"`
	MerchantName string               `bson:"merchantName"`
}

type transferDoc struct {
	OriginIBAN              string               `bson:"originIban"`
	DestinationIBAN         string               `bson:"destinationIban"`
	Amount                  primitive.Decimal128 `bson:"amount"`
	BeneficiaryName         string               `bson:"beneficiaryName"`
	DestinationMovementGUID string               `bson:"destinationMovementGuid,omitempty"`
}

type movementDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	GUID           string             `bson:"guid"`
	ClientGUID     string             `bson:"clientGuid"`
	DirectDebit    *directDebitDoc    `bson:"directDebit,omitempty"`
	PayrollDeposit *payrollDoc        `bson:"payrollDeposit,omitempty"`
	CardPayment    *cardPaymentDoc    `bson:"cardPayment,omitempty"`
	Transfer       *transferDoc       `bson:"transfer,omitempty"`
	IsDeleted      bool               `bson:"isDeleted"`
	CreatedAt      time.Time          `bson:"createdAt"`
}

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	// amounts fit NUMERIC(15,2), well inside the Decimal128 range
	v, _ := primitive.ParseDecimal128(d.String())
	return v
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func directDebitToDoc(d *models.DirectDebit) *directDebitDoc {
	if d == nil {
		return nil
	}
	return &directDebitDoc{
		GUID:            d.GUID,
		ClientGUID:      d.ClientGUID,
		OriginIBAN:      d.OriginIBAN,
		DestinationIBAN: d.DestinationIBAN,
		Amount:          toDecimal128(d.Amount),
		CreditorName:    d.CreditorName,
		StartDate:       d.StartDate,
		Periodicity:     string(d.Periodicity),
		Active:          d.Active,
		LastExecution:   d.LastExecution,
	}
}

func (d *directDebitDoc) model() *models.DirectDebit {
	if d == nil {
		return nil
	}
	return &models.DirectDebit{
		GUID:            d.GUID,
		ClientGUID:      d.ClientGUID,
		OriginIBAN:      d.OriginIBAN,
		DestinationIBAN: d.DestinationIBAN,
		Amount:          fromDecimal128(d.Amount),
		CreditorName:    d.CreditorName,
		StartDate:       d.StartDate.UTC(),
		Periodicity:     models.Periodicity(d.Periodicity),
		Active:          d.Active,
		LastExecution:   d.LastExecution.UTC(),
	}
}

func movementToDoc(m *models.Movement) *movementDoc {
	doc := &movementDoc{
		GUID:        m.GUID,
		ClientGUID:  m.ClientGUID,
		DirectDebit: directDebitToDoc(m.DirectDebit),
		IsDeleted:   m.IsDeleted,
		CreatedAt:   m.CreatedAt,
	}
	if p := m.PayrollDeposit; p != nil {
		doc.PayrollDeposit = &payrollDoc{
			DestinationIBAN: p.DestinationIBAN,
			OriginIBAN:      p.OriginIBAN,
			Amount:          toDecimal128(p.Amount),
			CompanyName:     p.CompanyName,
			CompanyCIF:      p.CompanyCIF,
		}
	}
	if c := m.CardPayment; c != nil {
		doc.CardPayment = &cardPaymentDoc{
			CardNumber:   c.CardNumber,
			Amount:       toDecimal128(c.Amount),
			MerchantName: c.MerchantName,
		}
	}
	if t := m.Transfer; t != nil {
		doc.Transfer = &transferDoc{
			OriginIBAN:              t.OriginIBAN,
			DestinationIBAN:         t.DestinationIBAN,
			Amount:                  toDecimal128(t.Amount),
			BeneficiaryName:         t.BeneficiaryName,
			DestinationMovementGUID: t.DestinationMovementGUID,
		}
	}
	return doc
}

func (doc *movementDoc) model() *models.Movement {
	m := &models.Movement{
		GUID:        doc.GUID,
		ClientGUID:  doc.ClientGUID,
		DirectDebit: doc.DirectDebit.model(),
		IsDeleted:   doc.IsDeleted,
		CreatedAt:   doc.CreatedAt.UTC(),
	}
	if p := doc.PayrollDeposit; p != nil {
		m.PayrollDeposit = &models.PayrollDeposit{
			DestinationIBAN: p.DestinationIBAN,
			OriginIBAN:      p.OriginIBAN,
			Amount:          fromDecimal128(p.Amount),
			CompanyName:     p.CompanyName,
			CompanyCIF:      p.CompanyCIF,
		}
	}
	if c := doc.CardPayment; c != nil {
		m.CardPayment = &models.CardPayment{
			CardNumber:   c.CardNumber,
			Amount:       fromDecimal128(c.Amount),
			MerchantName: c.MerchantName,
		}
	}
	if t := doc.Transfer; t != nil {
		m.Transfer = &models.Transfer{
			OriginIBAN:              t.OriginIBAN,
			DestinationIBAN:         t.DestinationIBAN,
			Amount:                  fromDecimal128(t.Amount),
			BeneficiaryName:         t.BeneficiaryName,
			DestinationMovementGUID: t.DestinationMovementGUID,
		}
	}
	return m
}
