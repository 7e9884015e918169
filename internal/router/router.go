package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/jira-auditor/api/handler"
)

type Handlers struct {
	Health *apiHandler.HealthHandler
	Audit  *apiHandler.AuditHandler
}

// New builds the status server routes. Audit routes go through authMiddleware.
func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	r.GET("/api/v1/audit/last", authMiddleware(handlers.Audit.Last))

	return r
}
