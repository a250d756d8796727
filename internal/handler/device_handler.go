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

// DeviceHandler handles device registration endpoints
type DeviceHandler struct {
	deviceService *service.DeviceService
	logger        *slog.Logger
}

func NewDeviceHandler(deviceService *service.DeviceService, logger *slog.Logger) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
		logger:        logger.With("component", "DeviceHandler"),
	}
}

// List godoc
// @Summary List all registered devices
// @Description Debug helper exposing every push identifier. Do not enable in production.
// @Tags Devices
// @Produce json
// @Success 200 {array} model.Device
// @Router /devices [get]
func (h *DeviceHandler) List(c *gin.Context) {
	devices, err := h.deviceService.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

// Register godoc
// @Summary Register a device push identifier for an msisdn
// @Tags Devices
// @Accept json
// @Produce json
// @Param body body model.RegisterDeviceRequest true "Register device request"
// @Success 200 {object} model.Device
// @Failure 400 {object} model.StatusResponse
// @Router /devices [post]
func (h *DeviceHandler) Register(c *gin.Context) {
	var req model.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, model.StatusResponse{Status: false, Message: "Invalid request: " + err.Error()})
		return
	}

	device, err := h.deviceService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

// Deregister godoc
// @Summary Remove a device by push identifier
// @Tags Devices
// @Produce json
// @Param identifier path string true "Device push identifier"
// @Success 200 {object} model.StatusResponse
// @Router /devices/{identifier} [delete]
func (h *DeviceHandler) Deregister(c *gin.Context) {
	if err := h.deviceService.Deregister(c.Request.Context(), c.Param("identifier")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: true})
}
