// Package httpkit holds the gin helpers every handler shares: responses,
// error mapping, auth, tracking and rate limiting.
package httpkit

import (
	"errors"
	"net/http"

	"leadflow_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every non-2xx reply. TrackingID lets an
// operator find the request in the logs.
type ErrorResponse struct {
	Error      string      `json:"error"`
	Details    interface{} `json:"details,omitempty"`
	TrackingID string      `json:"trackingId,omitempty"`
}

func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details, TrackingID: TrackingID(c)})
}

func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// Accepted answers operator triggers that were queued rather than run.
func Accepted(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusAccepted, payload)
}

// HandleError writes err and reports whether there was one. Only the
// Message of an *apperr.Error reaches the client; anything else is a 500.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		if domainErr.Kind == apperr.KindInternal && domainErr.Err != nil {
			_ = c.Error(domainErr.Err)
		}
		Error(c, domainErr.HTTPStatus(), domainErr.Message, nil)
		return true
	}

	_ = c.Error(err)
	Error(c, http.StatusInternalServerError, "internal error", nil)
	return true
}
