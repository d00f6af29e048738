package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserView is the read-optimised projection of a user.
// It never exposes PasswordHash.
type UserView struct {
	GUID      string    `json:"guid"`
	Username  string    `json:"username"`
	Roles     []Role    `json:"roles"`
	IsDeleted bool      `json:"isDeleted"`
	CreatedAt time.Time `json:"createdTimestamp"`
	UpdatedAt time.Time `json:"updatedTimestamp"`
}

func (u *User) View() *UserView {
	return &UserView{
		GUID:      u.GUID,
		Username:  u.Username,
		Roles:     u.Roles,
		IsDeleted: u.IsDeleted,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ClientView is the cached projection of a client. Username is denormalised so
// notifications can be addressed without another lookup.
type ClientView struct {
	Client
	Username string `json:"username,omitempty"`
}

// AccountView is the read-optimised projection of an account.
// OwnerUserGUID and OwnerUsername are populated for ownership checks and
// notification routing but never serialised to the API response.
type AccountView struct {
	GUID            string          `json:"guid"`
	IBAN            string          `json:"iban"`
	Balance         decimal.Decimal `json:"balance"`
	AccountTypeGUID string          `json:"accountTypeGuid"`
	CardGUID        string          `json:"cardGuid,omitempty"`
	ClientGUID      string          `json:"clientGuid"`
	OwnerUserGUID   string          `json:"-"`
	OwnerUsername   string          `json:"-"`
	IsDeleted       bool            `json:"isDeleted"`
	CreatedAt       time.Time       `json:"createdTimestamp"`
	UpdatedAt       time.Time       `json:"updatedTimestamp"`
}

// CardView omits the PIN and CVV; see CardPrivateView.
type CardView struct {
	GUID         string          `json:"guid"`
	Number       string          `json:"number"`
	ExpiryDate   time.Time       `json:"expiryDate"`
	DailyLimit   decimal.Decimal `json:"dailyLimit"`
	WeeklyLimit  decimal.Decimal `json:"weeklyLimit"`
	MonthlyLimit decimal.Decimal `json:"monthlyLimit"`
	CardType     CardType        `json:"cardType"`
	IsDeleted    bool            `json:"isDeleted"`
	CreatedAt    time.Time       `json:"createdTimestamp"`
	UpdatedAt    time.Time       `json:"updatedTimestamp"`
}

func (c *Card) View() *CardView {
	return &CardView{
		GUID:         c.GUID,
		Number:       c.Number,
		ExpiryDate:   c.ExpiryDate,
		DailyLimit:   c.DailyLimit,
		WeeklyLimit:  c.WeeklyLimit,
		MonthlyLimit: c.MonthlyLimit,
		CardType:     c.CardType,
		IsDeleted:    c.IsDeleted,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

type CardPrivateView struct {
	GUID   string `json:"guid"`
	Number string `json:"number"`
	PIN    string `json:"pin"`
	CVV    int    `json:"cvv"`
}

// Catalogue lists the products a client can sign up for.
type Catalogue struct {
	AccountTypes []AccountType `json:"accountTypes"`
	CardTypes    []CardType    `json:"cardTypes"`
}
