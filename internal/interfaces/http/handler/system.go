package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jerseyarena/storefront/internal/infrastructure/sessionstore"
)

// SystemHandler serves liveness and readiness probes
type SystemHandler struct {
	BaseHandler
	appName string
	env     string
	store   sessionstore.Store
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(appName, env string, store sessionstore.Store) *SystemHandler {
	return &SystemHandler{appName: appName, env: env, store: store}
}

// Health reports process liveness
func (h *SystemHandler) Health(c *gin.Context) {
	h.Success(c, gin.H{
		"status": "ok",
		"app":    h.appName,
		"env":    h.env,
	})
}

// Ready reports whether the session store is reachable. The probe does a
// full write/read/delete round trip under a reserved session id.
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	const probeSID = "healthcheck"
	value := time.Now().Format(time.RFC3339Nano)
	if err := h.store.Set(ctx, probeSID, "probe", value); err != nil {
		h.Error(c, 503, "ERR_NOT_READY", "session store unavailable")
		return
	}
	got, found, err := h.store.Get(ctx, probeSID, "probe")
	if err != nil || !found || got != value {
		h.Error(c, 503, "ERR_NOT_READY", "session store read mismatch")
		return
	}
	_ = h.store.Delete(ctx, probeSID, "probe")

	h.Success(c, gin.H{"status": "ready"})
}
