package order

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

func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	g := protected.Group("/orders")
	{
		g.GET("", h.List)
		g.POST("", h.Create)
		g.GET("/stats", h.Stats)
		g.GET("/:id", h.Get)
		g.PATCH("/:id/status", h.UpdateStatus)
		g.PATCH("/:id/assign", h.Assign)
		g.POST("/:id/responses", h.Respond)
		g.POST("/:id/notes", h.AddNote)
		g.DELETE("/:id", h.Delete)
	}
}

func orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) List(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.FromError(c, validator.BindError(err))
		return
	}
	res, err := h.service.List(c.Request.Context(), auth.MustIdentity(c), q)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// Create POST /orders
func (h *Handler) Create(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, validator.BindError(err))
		return
	}
	o, err := h.service.Create(c.Request.Context(), auth.MustIdentity(c), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, o)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), auth.MustIdentity(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	o, err := h.service.Get(c.Request.Context(), auth.MustIdentity(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, o)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, validator.BindError(err))
		return
	}
	o, err := h.service.UpdateStatus(c.Request.Context(), auth.MustIdentity(c), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, o)
}

func (h *Handler) Assign(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, validator.BindError(err))
		return
	}
	o, err := h.service.Assign(c.Request.Context(), auth.MustIdentity(c), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, o)
}

func (h *Handler) Respond(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, validator.BindError(err))
		return
	}
	o, err := h.service.Respond(c.Request.Context(), auth.MustIdentity(c), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, o)
}

func (h *Handler) AddNote(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, validator.BindError(err))
		return
	}
	o, err := h.service.AddNote(c.Request.Context(), auth.MustIdentity(c), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, o)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), auth.MustIdentity(c), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}
