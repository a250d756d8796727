package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/model"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/service"
	"github.com/gin-gonic/gin"
)

// CallHandler handles the telephony platform webhooks and call origination
type CallHandler struct {
	notificationService *service.NotificationService
	callService         *service.CallService
	logger              *slog.Logger
}

func NewCallHandler(notificationService *service.NotificationService, callService *service.CallService, logger *slog.Logger) *CallHandler {
	return &CallHandler{
		notificationService: notificationService,
		callService:         callService,
		logger:              logger.With("component", "CallHandler"),
	}
}

// Incoming godoc
// @Summary Handle a registration-free incoming call
// @Description Pushes a call notification to the device registered for the dialled number.
// @Tags Calls
// @Accept json
// @Produce json
// @Param body body model.IncomingCallRequest true "Incoming call event"
// @Success 201 {object} model.StatusResponse
// @Failure 400 {object} model.StatusResponse
// @Failure 404 {object} model.StatusResponse
// @Failure 500 {object} model.StatusResponse
// @Router /incoming [post]
func (h *CallHandler) Incoming(c *gin.Context) {
	var req model.IncomingCallRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, model.StatusResponse{Status: false, Message: "Not a valid Cloudonix registration-free message!"})
		return
	}

	if err := h.notificationService.NotifyIncoming(c.Request.Context(), req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, model.StatusResponse{Status: true, Message: "Sent push notification"})
}

// Dial godoc
// @Summary Originate an outbound call
// @Tags Calls
// @Accept json
// @Produce json
// @Param body body model.DialRequest true "Dial request"
// @Success 201 {object} model.DialResponse
// @Failure 400 {object} model.StatusResponse
// @Failure 500 {object} model.StatusResponse
// @Router /dial [post]
func (h *CallHandler) Dial(c *gin.Context) {
	var req model.DialRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, model.StatusResponse{Status: false, Message: "Invalid request: " + err.Error()})
		return
	}

	resp, err := h.callService.Originate(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
