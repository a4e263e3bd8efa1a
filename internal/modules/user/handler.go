package user

import (
	"net/http"
	"strconv"

	"ordertrack/internal/modules/auth"
	"ordertrack/internal/pkg/response"
	"ordertrack/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts /users on an admin-only group.
func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	g := admin.Group("/users")
	{
		g.POST("", h.Register)
		g.GET("", h.List)
		g.GET("/online", h.Online)
		g.PATCH("/:id/active", h.SetActive)
		g.DELETE("/:id", h.Delete)
	}
}

func userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, validator.BindError(err))
		return
	}
	u, err := h.service.Register(c.Request.Context(), auth.MustIdentity(c), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, u)
}

func (h *Handler) List(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.FromError(c, validator.BindError(err))
		return
	}
	users, err := h.service.List(c.Request.Context(), auth.MustIdentity(c), q)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"users": users})
}

func (h *Handler) Online(c *gin.Context) {
	users, err := h.service.Online(c.Request.Context(), auth.MustIdentity(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"users": users, "count": len(users)})
}

func (h *Handler) SetActive(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, validator.BindError(err))
		return
	}
	u, err := h.service.SetActive(c.Request.Context(), auth.MustIdentity(c), id, *req.Active)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, u)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), auth.MustIdentity(c), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}
