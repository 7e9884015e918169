package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/jira-auditor/api/transport"
	"github.com/fastygo/jira-auditor/domain"
	"github.com/fastygo/jira-auditor/pkg/httpcontext"
)

// ResultSource returns the last completed audit, or nil before the first one.
type ResultSource interface {
	LastResult() *domain.AuditResult
}

var errNoAuditYet = domain.NewError(domain.ErrCodeNotFound, "no audit run has completed yet")

type AuditHandler struct {
	baseHandler
	results ResultSource
}

func NewAuditHandler(results ResultSource, adapter *httpcontext.Adapter, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		baseHandler: newBaseHandler(adapter, logger),
		results:     results,
	}
}

func (h *AuditHandler) Last(ctx *fasthttp.RequestCtx) {
	reqCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result := h.results.LastResult()
	if result == nil {
		h.respondError(ctx, errNoAuditYet)
		return
	}
	h.log(reqCtx).Debug("serving last audit", zap.String("audit_run_id", result.RunID))
	h.respondSuccess(ctx, http.StatusOK, transport.NewAuditSummary(result))
}
