package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/apperror"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/middleware"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/model"
	"github.com/gin-gonic/gin"
)

// respondError writes err as a {status:false, message} body with the
// status of its kind.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := apperror.HTTPStatus(err)
	message := err.Error()

	var upstream *apperror.UpstreamError
	if errors.As(err, &upstream) {
		message = upstream.Message
	}

	attrs := []any{
		"request_id", c.GetString(middleware.RequestIDKey),
		"path", c.FullPath(),
		"http_status", status,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	c.JSON(status, model.StatusResponse{Status: false, Message: message})
}
