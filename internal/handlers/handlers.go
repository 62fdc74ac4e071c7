package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"keyactivate/internal/activation"
	"keyactivate/internal/middleware"
	"keyactivate/internal/telemetry"
	"keyactivate/pkg/protocol"

	"github.com/gin-gonic/gin"
)

// RootMessage is the plain-text liveness reply of GET /.
const RootMessage = "Activation Server Running. Use POST /activate"

// Pinger reports whether the backing store can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

// @Summary Liveness
// @Description Plain-text liveness message
// @Tags system
// @Produce plain
// @Success 200 {string} string
// @Router / [get]
func RootHandler(c *gin.Context) {
	c.String(http.StatusOK, RootMessage)
}

// @Summary Activate device
// @Description Register a hardware key, or refresh its last-seen time, and return the number of registered devices
// @Tags activation
// @Accept json
// @Accept x-www-form-urlencoded
// @Produce json
// @Param body body protocol.ActivateRequest true "hardware key"
// @Success 200 {object} protocol.ActivateResponse
// @Failure 400 {object} protocol.ActivateResponse
// @Failure 500 {object} protocol.ActivateResponse
// @Router /activate [post]
func ActivateHandler(c *gin.Context, svc *activation.Service) {
	var req protocol.ActivateRequest
	if err := c.ShouldBind(&req); err != nil {
		slog.Debug("unreadable activation body", "error", err, "request_id", middleware.RequestID(c))
		req.Key = ""
	}
	key := string(req.Key)
	addr := ClientAddress(c)
	slog.Debug("incoming activation request", "hardware_key", key, "ip", addr)

	res, err := svc.Activate(c.Request.Context(), key, addr)
	switch {
	case errors.Is(err, activation.ErrMissingKey):
		telemetry.ActivationsTotal.WithLabelValues(telemetry.OutcomeRejected).Inc()
		c.JSON(http.StatusBadRequest, protocol.Failure(protocol.MessageNoKey))
		return
	case err != nil:
		telemetry.ActivationsTotal.WithLabelValues(telemetry.OutcomeFailed).Inc()
		slog.Error("activation failed", "error", err, "request_id", middleware.RequestID(c))
		c.JSON(http.StatusInternalServerError, protocol.Failure(protocol.MessageInternalError))
		return
	}

	outcome := telemetry.OutcomeExisting
	if res.Created {
		outcome = telemetry.OutcomeCreated
	}
	telemetry.ActivationsTotal.WithLabelValues(outcome).Inc()
	telemetry.RegisteredDevices.Set(float64(res.TotalUsers))

	c.JSON(http.StatusOK, protocol.Success(res.TotalUsers))
}

// @Summary Readiness
// @Description Reports whether the registration database is reachable and bootstrapped
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /readyz [get]
func ReadyHandler(c *gin.Context, db Pinger) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		slog.Warn("readiness check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ClientAddress returns X-Forwarded-For when present, otherwise the peer
// host. It is recorded for auditing only.
func ClientAddress(c *gin.Context) string {
	if fwd := strings.TrimSpace(c.GetHeader("X-Forwarded-For")); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}
