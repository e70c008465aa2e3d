package api

import (
	"artemis/models"
	"artemis/service"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 100

// GetDevices returns all online devices
func GetDevices(c *gin.Context, p *service.Pipeline) {
	devices := p.Registry().Snapshot()
	c.JSON(http.StatusOK, models.SuccessResponse(models.DeviceList{
		Devices: devices,
		Total:   len(devices),
	}))
}

// GetDevice returns a single device
func GetDevice(c *gin.Context, p *service.Pipeline) {
	device, ok := p.Registry().GetDevice(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse("Device not found"))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(device))
}

// GetDeviceHistory returns the newest history entries of a device, oldest
// first. ?limit=N selects how many.
func GetDeviceHistory(c *gin.Context, p *service.Pipeline) {
	deviceID := c.Param("id")

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("limit must be a positive integer"))
			return
		}
		limit = n
	}
	if retained := p.History().Limit(); limit > retained {
		limit = retained
	}

	_, registered := p.Registry().GetDevice(deviceID)
	if !registered && !p.History().Has(deviceID) {
		c.JSON(http.StatusNotFound, models.ErrorResponse("No history found"))
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse(models.DeviceHistory{
		DeviceID: deviceID,
		History:  p.History().Recent(deviceID, limit),
	}))
}

// ReceiveDeviceData ingests one message posted by a gateway
func ReceiveDeviceData(c *gin.Context, p *service.Pipeline) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMessageSize))
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("No data received"))
		return
	}

	if err := p.IngestJSON(body); err != nil {
		if errors.Is(err, service.ErrInvalidMessage) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse("Data received and broadcasted"))
}
