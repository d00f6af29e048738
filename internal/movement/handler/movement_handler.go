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

type MovementCommander interface {
	CreateDirectDebit(context.Context, cqrs.CreateDirectDebitCommand) (*models.DirectDebit, error)
	CancelDirectDebit(context.Context, cqrs.CancelDirectDebitCommand) error
	CreatePayrollDeposit(context.Context, cqrs.CreatePayrollDepositCommand) (*models.Movement, error)
	CreateCardPayment(context.Context, cqrs.CreateCardPaymentCommand) (*models.Movement, error)
	CreateTransfer(context.Context, cqrs.CreateTransferCommand) (*models.Movement, error)
	RevokeTransfer(context.Context, cqrs.RevokeTransferCommand) error
}

type MovementQuerier interface {
	GetMovement(context.Context, cqrs.GetMovementQuery) (*models.Movement, error)
	ListMovements(context.Context, cqrs.ListMovementsQuery) (models.Page[models.Movement], error)
	ListClientMovements(context.Context, cqrs.ListClientMovementsQuery) ([]models.Movement, error)
	ListMyMovements(context.Context, cqrs.ListMyMovementsQuery) ([]models.Movement, error)
	ListMyDirectDebits(context.Context, cqrs.ListMyDirectDebitsQuery) ([]models.DirectDebit, error)
}

type MovementHandler struct {
	commands MovementCommander
	queries  MovementQuerier
}

type DirectDebitRequest struct {
	OriginIBAN      string          `json:"originIban" validate:"required,iban"`
	DestinationIBAN string          `json:"destinationIban" validate:"required,iban"`
	Amount          decimal.Decimal `json:"amount" validate:"gte=1,lte=10000"`
	CreditorName    string          `json:"creditorName" validate:"required,max=100"`
	Periodicity     string          `json:"periodicity" validate:"omitempty,oneof=DAILY WEEKLY MONTHLY YEARLY"`
}

type PayrollDepositRequest struct {
	DestinationIBAN string          `json:"destinationIban" validate:"required,iban"`
	OriginIBAN      string          `json:"originIban" validate:"required,iban"`
	Amount          decimal.Decimal `json:"amount" validate:"gte=1,lte=10000"`
	CompanyName     string          `json:"companyName" validate:"required,max=100"`
	CompanyCIF      string          `json:"companyCif" validate:"required,cif"`
}

type CardPaymentRequest struct {
	CardNumber   string          `json:"cardNumber" validate:"required,cardnumber"`
	Amount       decimal.Decimal `json:"amount" validate:"gte=1,lte=10000"`
	MerchantName string          `json:"merchantName" validate:"required,max=100"`
}

type TransferRequest struct {
	OriginIBAN      string          `json:"originIban" validate:"required,iban"`
	DestinationIBAN string          `json:"destinationIban" validate:"required,iban"`
	Amount          decimal.Decimal `json:"amount" validate:"gte=1,lte=10000"`
	BeneficiaryName string          `json:"beneficiaryName" validate:"required,max=100"`
}

func NewMovementHandler(commands MovementCommander, queries MovementQuerier) *MovementHandler {
	return &MovementHandler{commands: commands, queries: queries}
}

// ---------- /v1/movements (admin) ----------

func (h *MovementHandler) ListMovements(c *gin.Context) {
	page, err := h.queries.ListMovements(c.Request.Context(), cqrs.ListMovementsQuery{Page: middleware.PageRequest(c)})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to list movements")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *MovementHandler) GetMovement(c *gin.Context) {
	m, err := h.queries.GetMovement(c.Request.Context(), cqrs.GetMovementQuery{GUID: c.Param("guid")})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to get movement")
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *MovementHandler) ListClientMovements(c *gin.Context) {
	ms, err := h.queries.ListClientMovements(c.Request.Context(), cqrs.ListClientMovementsQuery{ClientGUID: c.Param("guid")})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to list client movements")
		return
	}
	c.JSON(http.StatusOK, ms)
}

// ---------- /v1/me ----------

func (h *MovementHandler) ListMyMovements(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	ms, err := h.queries.ListMyMovements(c.Request.Context(), cqrs.ListMyMovementsQuery{UserGUID: userID})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to list movements")
		return
	}
	c.JSON(http.StatusOK, ms)
}

func (h *MovementHandler) ListMyDirectDebits(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	dds, err := h.queries.ListMyDirectDebits(c.Request.Context(), cqrs.ListMyDirectDebitsQuery{UserGUID: userID})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to list direct debits")
		return
	}
	c.JSON(http.StatusOK, dds)
}

func (h *MovementHandler) CreateDirectDebit(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req DirectDebitRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	dd, err := h.commands.CreateDirectDebit(c.Request.Context(), cqrs.CreateDirectDebitCommand{
		UserGUID:        userID,
		OriginIBAN:      req.OriginIBAN,
		DestinationIBAN: req.DestinationIBAN,
		Amount:          req.Amount,
		CreditorName:    req.CreditorName,
		Periodicity:     models.Periodicity(req.Periodicity),
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to create direct debit")
		return
	}
	c.JSON(http.StatusCreated, dd)
}

func (h *MovementHandler) CancelDirectDebit(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	err := h.commands.CancelDirectDebit(c.Request.Context(), cqrs.CancelDirectDebitCommand{UserGUID: userID, GUID: c.Param("guid")})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to cancel direct debit")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MovementHandler) CreatePayrollDeposit(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req PayrollDepositRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	m, err := h.commands.CreatePayrollDeposit(c.Request.Context(), cqrs.CreatePayrollDepositCommand{
		UserGUID:        userID,
		DestinationIBAN: req.DestinationIBAN,
		OriginIBAN:      req.OriginIBAN,
		Amount:          req.Amount,
		CompanyName:     req.CompanyName,
		CompanyCIF:      req.CompanyCIF,
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to create payroll deposit")
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *MovementHandler) CreateCardPayment(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req CardPaymentRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	m, err := h.commands.CreateCardPayment(c.Request.Context(), cqrs.CreateCardPaymentCommand{
		UserGUID:     userID,
		CardNumber:   req.CardNumber,
		Amount:       req.Amount,
		MerchantName: req.MerchantName,
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to create card payment")
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *MovementHandler) CreateTransfer(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req TransferRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	m, err := h.commands.CreateTransfer(c.Request.Context(), cqrs.CreateTransferCommand{
		UserGUID:        userID,
		OriginIBAN:      req.OriginIBAN,
		DestinationIBAN: req.DestinationIBAN,
		Amount:          req.Amount,
		BeneficiaryName: req.BeneficiaryName,
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to create transfer")
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *MovementHandler) RevokeTransfer(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	err := h.commands.RevokeTransfer(c.Request.Context(), cqrs.RevokeTransferCommand{UserGUID: userID, MovementGUID: c.Param("guid")})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to revoke transfer")
		return
	}
	c.Status(http.StatusNoContent)
}
