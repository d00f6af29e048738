package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/middleware"
	"github.com/vivesbank/backend/shared/models"
)

type AccountCommander interface {
	CreateAccount(context.Context, cqrs.CreateAccountCommand) (*models.AccountView, error)
	UpdateAccount(context.Context, cqrs.UpdateAccountCommand) (*models.AccountView, error)
	DeleteAccount(context.Context, cqrs.DeleteAccountCommand) error
	OpenAccount(context.Context, cqrs.OpenAccountCommand) (*models.AccountView, error)
}

type AccountQuerier interface {
	GetAccount(context.Context, cqrs.GetAccountQuery) (*models.AccountView, error)
	GetAccountByIBAN(context.Context, cqrs.GetAccountByIBANQuery) (*models.AccountView, error)
	ListAccounts(context.Context, cqrs.ListAccountsQuery) (models.Page[models.AccountView], error)
	ListClientAccounts(context.Context, cqrs.ListClientAccountsQuery) ([]models.AccountView, error)
	ListMyAccounts(context.Context, cqrs.ListMyAccountsQuery) ([]models.AccountView, error)
}

type AccountHandler struct {
	commands AccountCommander
	queries  AccountQuerier
}

type CreateAccountRequest struct {
	AccountTypeGUID string `json:"accountTypeGuid" validate:"required"`
	ClientGUID      string `json:"clientGuid" validate:"required"`
	CardGUID        string `json:"cardGuid"`
}

type UpdateAccountRequest struct {
	AccountTypeGUID string `json:"accountTypeGuid"`
	ClientGUID      string `json:"clientGuid"`
	CardGUID        string `json:"cardGuid"`
}

// OpenAccountRequest carries the card the new account is issued with.
type OpenAccountRequest struct {
	AccountTypeGUID string          `json:"accountTypeGuid" validate:"required"`
	PIN             string          `json:"pin" validate:"omitempty,pin"`
	DailyLimit      decimal.Decimal `json:"dailyLimit" validate:"gt=0"`
	WeeklyLimit     decimal.Decimal `json:"weeklyLimit" validate:"gt=0"`
	MonthlyLimit    decimal.Decimal `json:"monthlyLimit" validate:"gt=0"`
	CardType        string          `json:"cardType" validate:"omitempty,oneof=CREDIT DEBIT"`
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries}
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	q := cqrs.ListAccountsQuery{
		IBAN:        c.Query("iban"),
		AccountType: c.Query("accountType"),
		Page:        middleware.PageRequest(c),
	}
	var err error
	if q.MinBalance, err = middleware.DecimalQuery(c, "minBalance"); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	if q.MaxBalance, err = middleware.DecimalQuery(c, "maxBalance"); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.queries.ListAccounts(c.Request.Context(), q)
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to list accounts")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	view, err := h.queries.GetAccount(c.Request.Context(), cqrs.GetAccountQuery{GUID: c.Param("guid")})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to get account")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) GetAccountByIBAN(c *gin.Context) {
	view, err := h.queries.GetAccountByIBAN(c.Request.Context(), cqrs.GetAccountByIBANQuery{IBAN: c.Param("iban")})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to get account")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) ListClientAccounts(c *gin.Context) {
	views, err := h.queries.ListClientAccounts(c.Request.Context(), cqrs.ListClientAccountsQuery{ClientGUID: c.Param("guid")})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to list client accounts")
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	view, err := h.commands.CreateAccount(c.Request.Context(), cqrs.CreateAccountCommand{
		AccountTypeGUID: req.AccountTypeGUID,
		ClientGUID:      req.ClientGUID,
		CardGUID:        req.CardGUID,
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to create account")
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	var req UpdateAccountRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	view, err := h.commands.UpdateAccount(c.Request.Context(), cqrs.UpdateAccountCommand{
		GUID:            c.Param("guid"),
		AccountTypeGUID: req.AccountTypeGUID,
		ClientGUID:      req.ClientGUID,
		CardGUID:        req.CardGUID,
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to update account")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	if err := h.commands.DeleteAccount(c.Request.Context(), cqrs.DeleteAccountCommand{GUID: c.Param("guid")}); err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to delete account")
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- /v1/me/accounts ----------

func (h *AccountHandler) ListMyAccounts(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	views, err := h.queries.ListMyAccounts(c.Request.Context(), cqrs.ListMyAccountsQuery{UserGUID: userID})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to list accounts")
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *AccountHandler) OpenAccount(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req OpenAccountRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	view, err := h.commands.OpenAccount(c.Request.Context(), cqrs.OpenAccountCommand{
		UserGUID:        userID,
		AccountTypeGUID: req.AccountTypeGUID,
		Card: cqrs.CreateCardCommand{
			PIN:          req.PIN,
			DailyLimit:   req.DailyLimit,
			WeeklyLimit:  req.WeeklyLimit,
			MonthlyLimit: req.MonthlyLimit,
			CardType:     models.CardType(req.CardType),
		},
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to open account")
		return
	}
	c.JSON(http.StatusCreated, view)
}
