package auth

import (
	"net/http"

	"ordertrack/internal/pkg/response"
	"ordertrack/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service   *Service
	twoFactor *TwoFactor
}

func NewHandler(service *Service, twoFactor *TwoFactor) *Handler {
	return &Handler{service: service, twoFactor: twoFactor}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/2fa/verify", h.VerifyTwoFactor)
	}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	authGroup := protected.Group("/auth")
	{
		authGroup.GET("/me", h.Me)
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/2fa/setup", h.SetupTwoFactor)
		authGroup.POST("/2fa/enable", h.EnableTwoFactor)
		authGroup.POST("/2fa/disable", h.DisableTwoFactor)
	}
}

// Login checks credentials and returns a token or a pending second step.
// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, validator.BindError(err))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// VerifyTwoFactor finishes a login that returned requiresTwoFactor.
// POST /auth/2fa/verify
func (h *Handler) VerifyTwoFactor(c *gin.Context) {
	var req VerifyTwoFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, validator.BindError(err))
		return
	}

	res, err := h.service.CompleteTwoFactorLogin(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.service.Me(c.Request.Context(), MustIdentity(c).UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), MustIdentity(c).UserID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) SetupTwoFactor(c *gin.Context) {
	res, err := h.twoFactor.Setup(c.Request.Context(), MustIdentity(c).UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) EnableTwoFactor(c *gin.Context) {
	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, validator.BindError(err))
		return
	}
	if err := h.twoFactor.Enable(c.Request.Context(), MustIdentity(c).UserID, req.Code); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"two_factor_enabled": true})
}

func (h *Handler) DisableTwoFactor(c *gin.Context) {
	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, validator.BindError(err))
		return
	}
	if err := h.twoFactor.Disable(c.Request.Context(), MustIdentity(c).UserID, req.Code); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"two_factor_enabled": false})
}
