package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/middleware"
)

type AuthCommander interface {
	SignUp(context.Context, cqrs.SignUpCommand) (string, error)
}

type AuthQuerier interface {
	SignIn(context.Context, cqrs.SignInCommand) (string, error)
}

type AuthHandler struct {
	commands AuthCommander
	queries  AuthQuerier
}

type SignUpRequest struct {
	Username      string `json:"username" validate:"required,min=3,max=50"`
	Password      string `json:"password" validate:"required,min=5,max=50"`
	PasswordCheck string `json:"passwordComprobacion" validate:"required,eqfield=Password"`
}

type SignInRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
}

func NewAuthHandler(commands AuthCommander, queries AuthQuerier) *AuthHandler {
	return &AuthHandler{commands: commands, queries: queries}
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	token, err := h.commands.SignUp(c.Request.Context(), cqrs.SignUpCommand{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to sign up")
		return
	}
	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	token, err := h.queries.SignIn(c.Request.Context(), cqrs.SignInCommand{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to sign in")
		return
	}
	c.JSON(http.StatusOK, AuthResponse{Token: token})
}
