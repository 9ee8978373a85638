package handlers

import (
	"net/http"

	"faciliroom/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type AnonymousSignInRequest struct {
	UID string `json:"uid"`
}

// SignInAnonymously godoc
// @Summary      Anonymous sign-in
// @Description  Issues a bearer token for an opaque uid, minting a fresh uid when none is supplied
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body AnonymousSignInRequest false "Existing uid to re-authenticate"
// @Success      200 {object} services.AnonymousIdentity
// @Failure      500 {object} ErrorResponse
// @Router       /auth/anonymous [post]
func (h *AuthHandler) SignInAnonymously(c *gin.Context) {
	var req AnonymousSignInRequest
	_ = c.ShouldBindJSON(&req)

	identity, err := h.authService.SignInAnonymously(req.UID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, identity)
}
