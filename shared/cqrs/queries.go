package cqrs

import (
	"github.com/shopspring/decimal"

	"github.com/vivesbank/backend/shared/models"
)

// ---------- User queries ----------

type GetUserQuery struct {
	GUID string
}

type ListUsersQuery struct {
	Username string
	Role     models.Role
	Page     models.PageRequest
}

// ---------- Client queries ----------

type GetClientQuery struct {
	GUID string
}

type GetClientByDNIQuery struct {
	DNI string
}

// GetMyClientQuery resolves the client profile owned by a user.
type GetMyClientQuery struct {
	UserGUID string
}

type ListClientsQuery struct {
	DNI     string
	Name    string
	Surname string
	Email   string
	Phone   string
	Page    models.PageRequest
}

// ---------- Account type queries ----------

type GetAccountTypeQuery struct {
	GUID string
}

type ListAccountTypesQuery struct {
	Name        string
	MinInterest *decimal.Decimal
	MaxInterest *decimal.Decimal
	Page        models.PageRequest
}

// ---------- Account queries ----------

type GetAccountQuery struct {
	GUID string
}

type GetAccountByIBANQuery struct {
	IBAN string
}

type ListAccountsQuery struct {
	IBAN        string
	MinBalance  *decimal.Decimal
	MaxBalance  *decimal.Decimal
	AccountType string
	Page        models.PageRequest
}

type ListClientAccountsQuery struct {
	ClientGUID string
}

type ListMyAccountsQuery struct {
	UserGUID string
}

// ---------- Card queries ----------

type GetCardQuery struct {
	GUID string
}

type ListCardsQuery struct {
	Number          string
	CardType        models.CardType
	MinDailyLimit   *decimal.Decimal
	MaxDailyLimit   *decimal.Decimal
	MinWeeklyLimit  *decimal.Decimal
	MaxWeeklyLimit  *decimal.Decimal
	MinMonthlyLimit *decimal.Decimal
	MaxMonthlyLimit *decimal.Decimal
	Page            models.PageRequest
}

// GetCardPrivateQuery re-authenticates the caller before exposing PIN and CVV.
type GetCardPrivateQuery struct {
	GUID     string
	UserGUID string
	Username string
	Password string
}

// ---------- Movement queries ----------

type GetMovementQuery struct {
	GUID string
}

type ListMovementsQuery struct {
	Page models.PageRequest
}

type ListClientMovementsQuery struct {
	ClientGUID string
}

type ListMyMovementsQuery struct {
	UserGUID string
}

type ListMyDirectDebitsQuery struct {
	UserGUID string
}
