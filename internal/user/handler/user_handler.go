package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/middleware"
	"github.com/vivesbank/backend/shared/models"
)

// UserCommander defines the write-side operations used by UserHandler.
type UserCommander interface {
	CreateUser(context.Context, cqrs.CreateUserCommand) (*models.UserView, error)
	UpdateUser(context.Context, cqrs.UpdateUserCommand) (*models.UserView, error)
	DeleteUser(context.Context, cqrs.DeleteUserCommand) error
}

// UserQuerier defines the read-side operations used by UserHandler.
type UserQuerier interface {
	GetUser(context.Context, cqrs.GetUserQuery) (*models.UserView, error)
	ListUsers(context.Context, cqrs.ListUsersQuery) (models.Page[models.UserView], error)
}

// UserHandler serves the admin user endpoints.
type UserHandler struct {
	commands UserCommander
	queries  UserQuerier
}

type CreateUserRequest struct {
	Username string   `json:"username" validate:"required,min=3,max=50"`
	Password string   `json:"password" validate:"required,min=5,max=50"`
	Roles    []string `json:"roles" validate:"omitempty,dive,oneof=USER ADMIN SUPER_ADMIN"`
}

type UpdateUserRequest struct {
	Username string   `json:"username" validate:"omitempty,min=3,max=50"`
	Password string   `json:"password" validate:"omitempty,min=5,max=50"`
	Roles    []string `json:"roles" validate:"omitempty,dive,oneof=USER ADMIN SUPER_ADMIN"`
}

func NewUserHandler(commands UserCommander, queries UserQuerier) *UserHandler {
	return &UserHandler{commands: commands, queries: queries}
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	page, err := h.queries.ListUsers(c.Request.Context(), cqrs.ListUsersQuery{
		Username: c.Query("username"),
		Role:     models.Role(c.Query("role")),
		Page:     middleware.PageRequest(c),
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to list users")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	view, err := h.queries.GetUser(c.Request.Context(), cqrs.GetUserQuery{GUID: c.Param("guid")})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to get user")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	view, err := h.commands.CreateUser(c.Request.Context(), cqrs.CreateUserCommand{
		Username: req.Username,
		Password: req.Password,
		Roles:    toRoles(req.Roles),
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to create user")
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	view, err := h.commands.UpdateUser(c.Request.Context(), cqrs.UpdateUserCommand{
		GUID:     c.Param("guid"),
		Username: req.Username,
		Password: req.Password,
		Roles:    toRoles(req.Roles),
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to update user")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.commands.DeleteUser(c.Request.Context(), cqrs.DeleteUserCommand{GUID: c.Param("guid")}); err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to delete user")
		return
	}
	c.Status(http.StatusNoContent)
}

func toRoles(in []string) []models.Role {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.Role, len(in))
	for i, r := range in {
		out[i] = models.Role(r)
	}
	return out
}
