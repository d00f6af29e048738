package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/middleware"
	"github.com/vivesbank/backend/shared/models"
)

type ClientCommander interface {
	CreateClient(context.Context, cqrs.CreateClientCommand) (*models.ClientView, error)
	UpdateClient(context.Context, cqrs.UpdateClientCommand) (*models.ClientView, error)
	DeleteClient(context.Context, cqrs.DeleteClientCommand) error
	ForgetClient(context.Context, cqrs.ForgetClientCommand) error
	UploadPhoto(context.Context, cqrs.UploadPhotoCommand) (*models.ClientView, error)
}

type ClientQuerier interface {
	GetClient(context.Context, cqrs.GetClientQuery) (*models.ClientView, error)
	GetClientByDNI(context.Context, cqrs.GetClientByDNIQuery) (*models.ClientView, error)
	GetMyClient(context.Context, cqrs.GetMyClientQuery) (*models.ClientView, error)
	ListClients(context.Context, cqrs.ListClientsQuery) (models.Page[models.ClientView], error)
}

type ClientHandler struct {
	commands ClientCommander
	queries  ClientQuerier
}

type ClientRequest struct {
	DNI     string         `json:"dni" validate:"required,dni"`
	Name    string         `json:"name" validate:"required,max=100"`
	Surname string         `json:"surname" validate:"required,max=100"`
	Email   string         `json:"email" validate:"required,email"`
	Phone   string         `json:"phone" validate:"required,phone_es"`
	Address models.Address `json:"address"`
}

type CreateClientRequest struct {
	ClientRequest
	UserGUID string `json:"userGuid" validate:"required"`
}

type UpdateClientRequest struct {
	Name    string          `json:"name" validate:"omitempty,max=100"`
	Surname string          `json:"surname" validate:"omitempty,max=100"`
	Email   string          `json:"email" validate:"omitempty,email"`
	Phone   string          `json:"phone" validate:"omitempty,phone_es"`
	Address *models.Address `json:"address" validate:"omitempty"`
}

func NewClientHandler(commands ClientCommander, queries ClientQuerier) *ClientHandler {
	return &ClientHandler{commands: commands, queries: queries}
}

func (r ClientRequest) command(userGUID string) cqrs.CreateClientCommand {
	return cqrs.CreateClientCommand{
		UserGUID: userGUID,
		DNI:      r.DNI,
		Name:     r.Name,
		Surname:  r.Surname,
		Email:    r.Email,
		Phone:    r.Phone,
		Address:  r.Address,
	}
}

func (r UpdateClientRequest) command(guid, userGUID string) cqrs.UpdateClientCommand {
	return cqrs.UpdateClientCommand{
		GUID:     guid,
		UserGUID: userGUID,
		Name:     r.Name,
		Surname:  r.Surname,
		Email:    r.Email,
		Phone:    r.Phone,
		Address:  r.Address,
	}
}

// ---------- admin ----------

func (h *ClientHandler) ListClients(c *gin.Context) {
	page, err := h.queries.ListClients(c.Request.Context(), cqrs.ListClientsQuery{
		DNI:     c.Query("dni"),
		Name:    c.Query("name"),
		Surname: c.Query("surname"),
		Email:   c.Query("email"),
		Phone:   c.Query("phone"),
		Page:    middleware.PageRequest(c),
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to list clients")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ClientHandler) GetClient(c *gin.Context) {
	view, err := h.queries.GetClient(c.Request.Context(), cqrs.GetClientQuery{GUID: c.Param("guid")})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to get client")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ClientHandler) GetClientByDNI(c *gin.Context) {
	view, err := h.queries.GetClientByDNI(c.Request.Context(), cqrs.GetClientByDNIQuery{DNI: c.Param("dni")})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to get client")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req CreateClientRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	view, err := h.commands.CreateClient(c.Request.Context(), req.command(req.UserGUID))
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to create client")
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *ClientHandler) UpdateClient(c *gin.Context) {
	var req UpdateClientRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	view, err := h.commands.UpdateClient(c.Request.Context(), req.command(c.Param("guid"), ""))
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to update client")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ClientHandler) DeleteClient(c *gin.Context) {
	if err := h.commands.DeleteClient(c.Request.Context(), cqrs.DeleteClientCommand{GUID: c.Param("guid")}); err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to delete client")
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- /v1/clients/me ----------

func (h *ClientHandler) GetMe(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	view, err := h.queries.GetMyClient(c.Request.Context(), cqrs.GetMyClientQuery{UserGUID: userID})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to get client profile")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ClientHandler) CreateMe(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req ClientRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	view, err := h.commands.CreateClient(c.Request.Context(), req.command(userID))
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to create client profile")
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *ClientHandler) UpdateMe(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req UpdateClientRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	view, err := h.commands.UpdateClient(c.Request.Context(), req.command("", userID))
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to update client profile")
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteMe is the right to be forgotten: nothing of the client survives.
func (h *ClientHandler) DeleteMe(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	if err := h.commands.ForgetClient(c.Request.Context(), cqrs.ForgetClientCommand{UserGUID: userID}); err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to delete client profile")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ClientHandler) UploadProfilePhoto(c *gin.Context) { h.upload(c, cqrs.PhotoProfile) }

func (h *ClientHandler) UploadDNIPhoto(c *gin.Context) { h.upload(c, cqrs.PhotoDNI) }

func (h *ClientHandler) upload(c *gin.Context, kind cqrs.PhotoKind) {
	userID, _ := middleware.GetUserID(c)

	header, err := c.FormFile("file")
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Missing file")
		return
	}
	file, err := header.Open()
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Unreadable file")
		return
	}
	defer file.Close()

	view, err := h.commands.UploadPhoto(c.Request.Context(), cqrs.UploadPhotoCommand{
		UserGUID: userID,
		Kind:     kind,
		Filename: header.Filename,
		Content:  file,
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to store photo")
		return
	}
	c.JSON(http.StatusOK, view)
}
