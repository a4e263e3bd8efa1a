package response

import (
	"errors"
	"net/http"

	"ordertrack/internal/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// exposeInternal controls whether raw internal error text reaches clients.
// Only development mode turns it on.
var exposeInternal bool

func SetExposeInternal(v bool) { exposeInternal = v }

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FromError writes err as the standard failure envelope. Unknown errors
// become INTERNAL_ERROR and are attached to the gin context for logging.
func FromError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		status := StatusFor(appErr.Kind)
		if status == http.StatusInternalServerError {
			_ = c.Error(err)
		}
		if len(appErr.Fields) > 0 {
			ErrorWithDetails(c, status, appErr.Code, appErr.Message, appErr.Fields)
			return
		}
		Error(c, status, appErr.Code, appErr.Message)
		return
	}

	_ = c.Error(err)
	if exposeInternal {
		ErrorWithDetails(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err.Error())
		return
	}
	Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}
