package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tsnbridge/veloctl/internal/registry"
)

func newTestHandler() (*DeviceHandler, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	reg := registry.New()
	h := NewDeviceHandler(reg, time.Second, nil)

	r := gin.New()
	g := r.Group("/api/devices")
	g.GET("", h.ListDevices)
	g.GET("/:path", h.GetDevice)
	g.GET("/:path/yang", h.YANGGet)
	g.POST("/:path/yang", h.YANGSet)
	return h, r
}

func TestListDevicesOnEmptyRegistryReturnsEmptyArray(t *testing.T) {
	_, r := newTestHandler()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d", rr.Code)
	}
	if body := rr.Body.String(); body != "[]" {
		t.Fatalf("body=%q, want empty array", body)
	}
}

func TestGetDeviceUnknownPathReturns404(t *testing.T) {
	_, r := newTestHandler()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/devices/dev-ttyACM0", nil)
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("code=%d, want 404", rr.Code)
	}
}

func TestYANGGetUnknownPathReturns404(t *testing.T) {
	_, r := newTestHandler()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/devices/dev-ttyACM0/yang?uri=c?d=a", nil)
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("code=%d, want 404", rr.Code)
	}
}

func TestYANGSetUnknownPathReturns404(t *testing.T) {
	_, r := newTestHandler()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/devices/dev-ttyACM0/yang?uri=c?d=a", nil)
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("code=%d, want 404", rr.Code)
	}
}
