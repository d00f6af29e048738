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

type CardCommander interface {
	CreateCard(context.Context, cqrs.CreateCardCommand) (*models.CardView, error)
	UpdateCard(context.Context, cqrs.UpdateCardCommand) (*models.CardView, error)
	DeleteCard(context.Context, cqrs.DeleteCardCommand) error
}

type CardQuerier interface {
	GetCard(context.Context, cqrs.GetCardQuery) (*models.CardView, error)
	ListCards(context.Context, cqrs.ListCardsQuery) (models.Page[models.CardView], error)
	GetCardPrivate(context.Context, cqrs.GetCardPrivateQuery) (*models.CardPrivateView, error)
}

type CardHandler struct {
	commands CardCommander
	queries  CardQuerier
}

type CreateCardRequest struct {
	PIN          string          `json:"pin" validate:"required,pin"`
	DailyLimit   decimal.Decimal `json:"dailyLimit" validate:"gt=0"`
	WeeklyLimit  decimal.Decimal `json:"weeklyLimit" validate:"gt=0"`
	MonthlyLimit decimal.Decimal `json:"monthlyLimit" validate:"gt=0"`
	CardType     string          `json:"cardType" validate:"required,oneof=CREDIT DEBIT"`
}

type UpdateCardRequest struct {
	PIN          string           `json:"pin" validate:"omitempty,pin"`
	DailyLimit   *decimal.Decimal `json:"dailyLimit" validate:"omitempty,gt=0"`
	WeeklyLimit  *decimal.Decimal `json:"weeklyLimit" validate:"omitempty,gt=0"`
	MonthlyLimit *decimal.Decimal `json:"monthlyLimit" validate:"omitempty,gt=0"`
}

type PrivateCardRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func NewCardHandler(commands CardCommander, queries CardQuerier) *CardHandler {
	return &CardHandler{commands: commands, queries: queries}
}

func (h *CardHandler) ListCards(c *gin.Context) {
	q := cqrs.ListCardsQuery{
		Number:   c.Query("number"),
		CardType: models.CardType(c.Query("cardType")),
		Page:     middleware.PageRequest(c),
	}
	for name, dst := range map[string]**decimal.Decimal{
		"minDailyLimit":   &q.MinDailyLimit,
		"maxDailyLimit":   &q.MaxDailyLimit,
		"minWeeklyLimit":  &q.MinWeeklyLimit,
		"maxWeeklyLimit":  &q.MaxWeeklyLimit,
		"minMonthlyLimit": &q.MinMonthlyLimit,
		"maxMonthlyLimit": &q.MaxMonthlyLimit,
	} {
		v, err := middleware.DecimalQuery(c, name)
		if err != nil {
			middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		*dst = v
	}

	page, err := h.queries.ListCards(c.Request.Context(), q)
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to list cards")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *CardHandler) GetCard(c *gin.Context) {
	view, err := h.queries.GetCard(c.Request.Context(), cqrs.GetCardQuery{GUID: c.Param("guid")})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to get card")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CardHandler) CreateCard(c *gin.Context) {
	var req CreateCardRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	view, err := h.commands.CreateCard(c.Request.Context(), cqrs.CreateCardCommand{
		PIN:          req.PIN,
		DailyLimit:   req.DailyLimit,
		WeeklyLimit:  req.WeeklyLimit,
		MonthlyLimit: req.MonthlyLimit,
		CardType:     models.CardType(req.CardType),
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to create card")
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *CardHandler) UpdateCard(c *gin.Context) {
	var req UpdateCardRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	view, err := h.commands.UpdateCard(c.Request.Context(), cqrs.UpdateCardCommand{
		GUID:         c.Param("guid"),
		PIN:          req.PIN,
		DailyLimit:   req.DailyLimit,
		WeeklyLimit:  req.WeeklyLimit,
		MonthlyLimit: req.MonthlyLimit,
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to update card")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CardHandler) DeleteCard(c *gin.Context) {
	if err := h.commands.DeleteCard(c.Request.Context(), cqrs.DeleteCardCommand{GUID: c.Param("guid")}); err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to delete card")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetCardPrivate answers with PIN and CVV after re-authentication.
func (h *CardHandler) GetCardPrivate(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req PrivateCardRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	view, err := h.queries.GetCardPrivate(c.Request.Context(), cqrs.GetCardPrivateQuery{
		GUID:     c.Param("guid"),
		UserGUID: userID,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to read card data")
		return
	}
	c.JSON(http.StatusOK, view)
}
