package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/jira-auditor/api/transport"
	"github.com/fastygo/jira-auditor/internal/infrastructure/monitor"
	"github.com/fastygo/jira-auditor/pkg/httpcontext"
)

// StatusSource exposes the outcome of the most recent audit run.
type StatusSource interface {
	GetStatus() monitor.Status
}

type HealthHandler struct {
	baseHandler
	status StatusSource
}

func NewHealthHandler(status StatusSource, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		status:      status,
	}
}

// Check reports 200 until an audit run fails and 503 until the next one succeeds.
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.status.GetStatus()
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"audit":     status,
	}

	if status.Healthy() {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "last audit run failed", payload))
}
