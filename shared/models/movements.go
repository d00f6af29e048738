package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Periodicity string

const (
	PeriodicityDaily   Periodicity = "DAILY"
	PeriodicityWeekly  Periodicity = "WEEKLY"
	PeriodicityMonthly Periodicity = "MONTHLY"
	PeriodicityYearly  Periodicity = "YEARLY"
)

// Next returns the instant one period after t.
func (p Periodicity) Next(t time.Time) time.Time {
	switch p {
	case PeriodicityDaily:
		return t.AddDate(0, 0, 1)
	case PeriodicityWeekly:
		return t.AddDate(0, 0, 7)
	case PeriodicityYearly:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

type MovementKind string

const (
	KindDirectDebit    MovementKind = "DIRECT_DEBIT"
	KindPayrollDeposit MovementKind = "PAYROLL_DEPOSIT"
	KindCardPayment    MovementKind = "CARD_PAYMENT"
	KindTransfer       MovementKind = "TRANSFER"
)

type DirectDebit struct {
	GUID            string          `json:"guid"`
	ClientGUID      string          `json:"clientGuid"`
	OriginIBAN      string          `json:"originIban"`
	DestinationIBAN string          `json:"destinationIban"`
	Amount          decimal.Decimal `json:"amount"`
	CreditorName    string          `json:"creditorName"`
	StartDate       time.Time       `json:"startDate"`
	Periodicity     Periodicity     `json:"periodicity"`
	Active          bool            `json:"active"`
	LastExecution   time.Time       `json:"lastExecution"`
}

// Due reports whether a full period has elapsed since the last execution.
func (d *DirectDebit) Due(now time.Time) bool {
	return d.Active && d.Periodicity.Next(d.LastExecution).Before(now)
}

type PayrollDeposit struct {
	DestinationIBAN string          `json:"destinationIban"`
	OriginIBAN      string          `json:"originIban"`
	Amount          decimal.Decimal `json:"amount"`
	CompanyName     string          `json:"companyName"`
	CompanyCIF      string          `json:"companyCif"`
}

type CardPayment struct {
	CardNumber   string          `json:"cardNumber"`
	Amount       decimal.Decimal `json:"amount"`
	MerchantName string          `json:"merchantName"`
}

// Transfer is stored twice: once for the beneficiary with a positive amount
// and once for the sender with a negative amount that links to the former.
type Transfer struct {
	OriginIBAN              string          `json:"originIban"`
	DestinationIBAN         string          `json:"destinationIban"`
	Amount                  decimal.Decimal `json:"amount"`
	BeneficiaryName         string          `json:"beneficiaryName"`
	DestinationMovementGUID string          `json:"destinationMovementGuid,omitempty"`
}

// Movement holds exactly one of its detail pointers.
type Movement struct {
	GUID           string          `json:"guid"`
	ClientGUID     string          `json:"clientGuid"`
	DirectDebit    *DirectDebit    `json:"directDebit,omitempty"`
	PayrollDeposit *PayrollDeposit `json:"payrollDeposit,omitempty"`
	CardPayment    *CardPayment    `json:"cardPayment,omitempty"`
	Transfer       *Transfer       `json:"transfer,omitempty"`
	IsDeleted      bool            `json:"isDeleted"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func (m *Movement) Kind() MovementKind {
	switch {
	case m.DirectDebit != nil:
		return KindDirectDebit
	case m.PayrollDeposit != nil:
		return KindPayrollDeposit
	case m.CardPayment != nil:
		return KindCardPayment
	case m.Transfer != nil:
		return KindTransfer
	}
	return ""
}
