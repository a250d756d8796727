package handler

import (
	"net/http"

	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/model"
	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} model.StatusResponse
// @Router / [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.StatusResponse{Status: true})
}
