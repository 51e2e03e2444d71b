package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/npesaras/wolfie-rag/internal/pkg/errcode"
	appErr "github.com/npesaras/wolfie-rag/internal/pkg/errors"
	"github.com/npesaras/wolfie-rag/internal/pkg/response"
	"github.com/npesaras/wolfie-rag/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type tokenRequest struct {
	Password string `json:"password"`
}

func (h *AuthHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	token, err := h.auth.Login(c.Request.Context(), req.Password)
	if err != nil {
		if errors.Is(err, appErr.ErrUnauthorized) {
			response.Error(c, errcode.ErrUnauthorized, "invalid password")
			return
		}
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"token": token})
}
