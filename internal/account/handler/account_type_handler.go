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

type AccountTypeCommander interface {
	CreateAccountType(context.Context, cqrs.CreateAccountTypeCommand) (*models.AccountType, error)
	UpdateAccountType(context.Context, cqrs.UpdateAccountTypeCommand) (*models.AccountType, error)
	DeleteAccountType(context.Context, cqrs.DeleteAccountTypeCommand) error
}

type AccountTypeQuerier interface {
	GetAccountType(context.Context, cqrs.GetAccountTypeQuery) (*models.AccountType, error)
	ListAccountTypes(context.Context, cqrs.ListAccountTypesQuery) (models.Page[models.AccountType], error)
	Catalogue(context.Context) (*models.Catalogue, error)
}

type AccountTypeHandler struct {
	commands AccountTypeCommander
	queries  AccountTypeQuerier
}

type CreateAccountTypeRequest struct {
	Name     string          `json:"name" validate:"required,max=50"`
	Interest decimal.Decimal `json:"interest" validate:"gte=0,lte=100"`
}

type UpdateAccountTypeRequest struct {
	Name     string           `json:"name" validate:"omitempty,max=50"`
	Interest *decimal.Decimal `json:"interest" validate:"omitempty,gte=0,lte=100"`
}

func NewAccountTypeHandler(commands AccountTypeCommander, queries AccountTypeQuerier) *AccountTypeHandler {
	return &AccountTypeHandler{commands: commands, queries: queries}
}

func (h *AccountTypeHandler) ListAccountTypes(c *gin.Context) {
	q := cqrs.ListAccountTypesQuery{Name: c.Query("name"), Page: middleware.PageRequest(c)}
	var err error
	if q.MinInterest, err = middleware.DecimalQuery(c, "minInterest"); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	if q.MaxInterest, err = middleware.DecimalQuery(c, "maxInterest"); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.queries.ListAccountTypes(c.Request.Context(), q)
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to list account types")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AccountTypeHandler) GetAccountType(c *gin.Context) {
	t, err := h.queries.GetAccountType(c.Request.Context(), cqrs.GetAccountTypeQuery{GUID: c.Param("guid")})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to get account type")
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *AccountTypeHandler) CreateAccountType(c *gin.Context) {
	var req CreateAccountTypeRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	t, err := h.commands.CreateAccountType(c.Request.Context(), cqrs.CreateAccountTypeCommand{
		Name:     req.Name,
		Interest: req.Interest,
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to create account type")
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *AccountTypeHandler) UpdateAccountType(c *gin.Context) {
	var req UpdateAccountTypeRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	t, err := h.commands.UpdateAccountType(c.Request.Context(), cqrs.UpdateAccountTypeCommand{
		GUID:     c.Param("guid"),
		Name:     req.Name,
		Interest: req.Interest,
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to update account type")
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *AccountTypeHandler) DeleteAccountType(c *gin.Context) {
	if err := h.commands.DeleteAccountType(c.Request.Context(), cqrs.DeleteAccountTypeCommand{GUID: c.Param("guid")}); err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to delete account type")
		return
	}
	c.Status(http.StatusNoContent)
}

// Catalogue is public to any authenticated user.
func (h *AccountTypeHandler) Catalogue(c *gin.Context) {
	cat, err := h.queries.Catalogue(c.Request.Context())
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to load catalogue")
		return
	}
	c.JSON(http.StatusOK, cat)
}
