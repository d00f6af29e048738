package cqrs

import (
	"io"

	"github.com/shopspring/decimal"

	"github.com/vivesbank/backend/shared/models"
)

// ---------- Auth & user commands ----------

type SignUpCommand struct {
	Username string
	Password string
}

type SignInCommand struct {
	Username string
	Password string
}

type CreateUserCommand struct {
	Username string
	Password string
	Roles    []models.Role
}

// UpdateUserCommand leaves a field unchanged when it is empty.
type UpdateUserCommand struct {
	GUID     string
	Username string
	Password string
	Roles    []models.Role
}

type DeleteUserCommand struct {
	GUID string
}

// ---------- Client commands ----------

type CreateClientCommand struct {
	UserGUID string
	DNI      string
	Name     string
	Surname  string
	Email    string
	Phone    string
	Address  models.Address
}

// UpdateClientCommand identifies the client by GUID, or by UserGUID for self
// service. Fields left empty or nil are unchanged.
type UpdateClientCommand struct {
	GUID     string
	UserGUID string
	Name     string
	Surname  string
	Email    string
	Phone    string
	Address  *models.Address
}

type DeleteClientCommand struct {
	GUID string
}

// ForgetClientCommand removes every trace of the user's client profile.
type ForgetClientCommand struct {
	UserGUID string
}

type PhotoKind string

const (
	PhotoProfile PhotoKind = "profile"
	PhotoDNI     PhotoKind = "dni"
)

type UploadPhotoCommand struct {
	UserGUID string
	Kind     PhotoKind
	Filename string
	Content  io.Reader
}

// ---------- Account type commands ----------

type CreateAccountTypeCommand struct {
	Name     string
	Interest decimal.Decimal
}

type UpdateAccountTypeCommand struct {
	GUID     string
	Name     string
	Interest *decimal.Decimal
}

type DeleteAccountTypeCommand struct {
	GUID string
}

// ---------- Account commands ----------

type CreateAccountCommand struct {
	AccountTypeGUID string
	ClientGUID      string
	CardGUID        string
}

// UpdateAccountCommand leaves a field unchanged when it is empty.
type UpdateAccountCommand struct {
	GUID            string
	AccountTypeGUID string
	ClientGUID      string
	CardGUID        string
}

type DeleteAccountCommand struct {
	GUID string
}

// OpenAccountCommand opens an account for the caller's own client together
// with a freshly issued card.
type OpenAccountCommand struct {
	UserGUID        string
	AccountTypeGUID string
	Card            CreateCardCommand
}

// ---------- Card commands ----------

type CreateCardCommand struct {
	PIN          string
	DailyLimit   decimal.Decimal
	WeeklyLimit  decimal.Decimal
	MonthlyLimit decimal.Decimal
	CardType     models.CardType
}

type UpdateCardCommand struct {
	GUID         string
	PIN          string
	DailyLimit   *decimal.Decimal
	WeeklyLimit  *decimal.Decimal
	MonthlyLimit *decimal.Decimal
}

type DeleteCardCommand struct {
	GUID string
}

// ---------- Movement commands ----------

type CreateDirectDebitCommand struct {
	UserGUID        string
	OriginIBAN      string
	DestinationIBAN string
	Amount          decimal.Decimal
	CreditorName    string
	Periodicity     models.Periodicity
}

type CancelDirectDebitCommand struct {
	UserGUID string
	GUID     string
}

type CreatePayrollDepositCommand struct {
	UserGUID        string
	DestinationIBAN string
	OriginIBAN      string
	Amount          decimal.Decimal
	CompanyName     string
	CompanyCIF      string
}

type CreateCardPaymentCommand struct {
	UserGUID     string
	CardNumber   string
	Amount       decimal.Decimal
	MerchantName string
}

type CreateTransferCommand struct {
	UserGUID        string
	OriginIBAN      string
	DestinationIBAN string
	Amount          decimal.Decimal
	BeneficiaryName string
}

type RevokeTransferCommand struct {
	UserGUID     string
	MovementGUID string
}
