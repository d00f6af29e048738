package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

type CardType string

const (
	CardTypeCredit CardType = "CREDIT"
	CardTypeDebit  CardType = "DEBIT"
)

// CardTypes lists every card type offered in the catalogue.
var CardTypes = []CardType{CardTypeCredit, CardTypeDebit}

type User struct {
	GUID         string    `json:"guid"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	IsDeleted    bool      `json:"isDeleted"`
	CreatedAt    time.Time `json:"createdTimestamp"`
	UpdatedAt    time.Time `json:"updatedTimestamp"`
}

// HasRole treats SUPER_ADMIN as a superset of ADMIN and ADMIN as a superset of USER.
func (u *User) HasRole(role Role) bool {
	return RolesAllow(u.Roles, role)
}

func RolesAllow(roles []Role, want Role) bool {
	for _, r := range roles {
		if r == want || r == RoleSuperAdmin || (r == RoleAdmin && want == RoleUser) {
			return true
		}
	}
	return false
}

type Address struct {
	Street     string `json:"street" validate:"required,max=100"`
	Number     string `json:"number" validate:"required,max=10"`
	PostalCode string `json:"postalCode" validate:"required,postalcode_es"`
	Floor      string `json:"floor,omitempty" validate:"max=10"`
	Door       string `json:"door,omitempty" validate:"max=10"`
}

type Client struct {
	GUID         string    `json:"guid"`
	DNI          string    `json:"dni"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Address      Address   `json:"address"`
	ProfilePhoto string    `json:"profilePhoto"`
	DNIPhoto     string    `json:"dniPhoto"`
	UserGUID     string    `json:"userGuid"`
	IsDeleted    bool      `json:"isDeleted"`
	CreatedAt    time.Time `json:"createdTimestamp"`
	UpdatedAt    time.Time `json:"updatedTimestamp"`
}

type AccountType struct {
	GUID      string          `json:"guid"`
	Name      string          `json:"name"`
	Interest  decimal.Decimal `json:"interest"`
	CreatedAt time.Time       `json:"createdTimestamp"`
	UpdatedAt time.Time       `json:"updatedTimestamp"`
}

type Card struct {
	GUID         string          `json:"guid"`
	Number       string          `json:"number"`
	ExpiryDate   time.Time       `json:"expiryDate"`
	CVV          int             `json:"-"`
	PIN          string          `json:"-"`
	DailyLimit   decimal.Decimal `json:"dailyLimit"`
	WeeklyLimit  decimal.Decimal `json:"weeklyLimit"`
	MonthlyLimit decimal.Decimal `json:"monthlyLimit"`
	CardType     CardType        `json:"cardType"`
	IsDeleted    bool            `json:"isDeleted"`
	CreatedAt    time.Time       `json:"createdTimestamp"`
	UpdatedAt    time.Time       `json:"updatedTimestamp"`
}

type Account struct {
	GUID            string          `json:"guid"`
	IBAN            string          `json:"iban"`
	Balance         decimal.Decimal `json:"balance"`
	AccountTypeGUID string          `json:"accountTypeGuid"`
	CardGUID        string          `json:"cardGuid,omitempty"`
	ClientGUID      string          `json:"clientGuid"`
	IsDeleted       bool            `json:"isDeleted"`
	CreatedAt       time.Time       `json:"createdTimestamp"`
	UpdatedAt       time.Time       `json:"updatedTimestamp"`
}
