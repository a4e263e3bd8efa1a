package notification

import (
	"net/http"
	"strconv"

	"ordertrack/internal/modules/auth"
	"ordertrack/internal/modules/realtime"
	"ordertrack/internal/pkg/response"
	"ordertrack/internal/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	service *Service
	emitter *realtime.Emitter
	log     zerolog.Logger
}

func NewHandler(service *Service, emitter *realtime.Emitter, log zerolog.Logger) *Handler {
	return &Handler{service: service, emitter: emitter, log: log}
}

func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	g := protected.Group("/notifications")
	{
		g.GET("", h.GetNotifications)
		g.GET("/unread-count", h.UnreadCount)
		g.PATCH("/:id/read", h.MarkAsRead)
		g.PATCH("/read-all", h.MarkAllAsRead)
		g.POST("/broadcast", h.Broadcast)
	}
}

// GET /notifications?unread=true&limit=20
func (h *Handler) GetNotifications(c *gin.Context) {
	viewer := auth.MustIdentity(c).Viewer()

	limit := 20
	if s := c.Query("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
			if limit > 100 {
				limit = 100
			}
		}
	}
	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))

	list, err := h.service.List(c.Request.Context(), viewer, ListQuery{UnreadOnly: unreadOnly, Limit: limit})
	if err != nil {
		response.FromError(c, err)
		return
	}
	unread, err := h.service.UnreadCount(c.Request.Context(), viewer)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, ListResponse{Notifications: list, UnreadCount: unread})
}

func (h *Handler) UnreadCount(c *gin.Context) {
	unread, err := h.service.UnreadCount(c.Request.Context(), auth.MustIdentity(c).Viewer())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unread_count": unread})
}

func (h *Handler) MarkAsRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid notification ID")
		return
	}

	identity := auth.MustIdentity(c)
	readAt, err := h.service.MarkRead(c.Request.Context(), identity.Viewer(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	payload := realtime.NotificationReadPayload{NotificationID: id, ReadAt: readAt}
	if err := h.emitter.EmitToUser(c.Request.Context(), identity.UserID, realtime.EventNotificationRead, payload); err != nil {
		h.log.Debug().Err(err).Int64("notification_id", id).Msg("notification-read not emitted")
	}
	response.Success(c, http.StatusOK, gin.H{"status": "read", "read_at": readAt})
}

func (h *Handler) MarkAllAsRead(c *gin.Context) {
	marked, readAt, err := h.service.MarkAllRead(c.Request.Context(), auth.MustIdentity(c).Viewer())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "all_read", "marked": marked, "read_at": readAt})
}

// Broadcast POST /notifications/broadcast (admin)
func (h *Handler) Broadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, validator.BindError(err))
		return
	}

	identity := auth.MustIdentity(c)
	n, err := h.service.Broadcast(c.Request.Context(), identity.Viewer(), identity.Actor(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, n)
}
