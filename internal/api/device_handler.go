// Package api exposes a thin gin HTTP surface over the registry: list
// devices, fetch Device Info, and issue YANG GET/SET requests. Every
// handler here does nothing but read its params and delegate to the
// registry (All, Get, or Execute).
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tsnbridge/veloctl/internal/coap"
	"github.com/tsnbridge/veloctl/internal/registry"
)

// DeviceHandler is the read/write device API surface.
type DeviceHandler struct {
	reg     *registry.Registry
	timeout time.Duration
	logger  *zap.Logger
}

// NewDeviceHandler constructs a DeviceHandler bound to reg.
func NewDeviceHandler(reg *registry.Registry, timeout time.Duration, logger *zap.Logger) *DeviceHandler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &DeviceHandler{reg: reg, timeout: timeout, logger: logger}
}

// ListDevices returns every tracked Device Connection's current info.
// @Summary List connected devices
// @Description Returns the current Device Info snapshot for every tracked serial path
// @Tags devices
// @Produce json
// @Success 200 {array} device.Info
// @Router /api/devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	conns := h.reg.All()
	out := make([]any, 0, len(conns))
	for _, conn := range conns {
		out = append(out, conn.Snapshot())
	}
	c.JSON(http.StatusOK, out)
}

// GetDevice returns one device's current info.
// @Summary Get one device's info
// @Tags devices
// @Produce json
// @Param path path string true "serial device path, URL-escaped"
// @Success 200 {object} device.Info
// @Failure 404 {object} map[string]string
// @Router /api/devices/{path} [get]
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	path := c.Param("path")
	conn, err := h.reg.Get(path)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, conn.Snapshot())
}

// YANGGet issues a CORECONF GET against a device's YANG datastore.
// @Summary Read a YANG subtree
// @Tags yang
// @Produce application/cbor,json
// @Param path path string true "serial device path, URL-escaped"
// @Param uri query string true "CORECONF URI, e.g. c?d=a"
// @Success 200 {string} string "raw CBOR response payload from the device"
// @Failure 404 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/devices/{path}/yang [get]
func (h *DeviceHandler) YANGGet(c *gin.Context) {
	h.execute(c, coap.MethodGET, nil)
}

// YANGSet issues a CORECONF iPATCH to merge a YANG subtree.
// @Summary Write a YANG subtree
// @Tags yang
// @Accept application/cbor
// @Produce application/cbor,json
// @Param path path string true "serial device path, URL-escaped"
// @Param uri query string true "CORECONF URI"
// @Success 200 {string} string "raw CBOR response payload from the device"
// @Failure 404 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/devices/{path}/yang [post]
func (h *DeviceHandler) YANGSet(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.execute(c, coap.MethodIPATCH, body)
}

func (h *DeviceHandler) execute(c *gin.Context, method byte, payload []byte) {
	path := c.Param("path")
	uri := c.Query("uri")

	result, err := h.reg.Execute(path, method, uri, payload, h.timeout)
	if err != nil {
		status := http.StatusBadGateway
		if err == registry.ErrDeviceNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/cbor", result)
}
