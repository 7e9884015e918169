package httpcontext

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	appLogger "github.com/fastygo/jira-auditor/pkg/logger"
)

func TestAttachKeepsIncomingRequestID(t *testing.T) {
	var rc fasthttp.RequestCtx
	rc.Request.Header.Set(HeaderRequestID, "abc-123")

	ctx, cancel := NewAdapter(time.Second).Attach(&rc)
	defer cancel()

	_, hasDeadline := ctx.Deadline()
	assert.True(t, hasDeadline)
	assert.Equal(t, "abc-123", string(rc.Response.Header.Peek(HeaderRequestID)))

	core, logs := observer.New(zap.InfoLevel)
	appLogger.WithRunID(ctx, zap.New(core)).Info("served")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "abc-123", logs.All()[0].ContextMap()["request_id"])
}

func TestAttachGeneratesRequestID(t *testing.T) {
	var rc fasthttp.RequestCtx
	_, cancel := NewAdapter(0).Attach(&rc)
	defer cancel()

	_, err := uuid.Parse(string(rc.Response.Header.Peek(HeaderRequestID)))
	assert.NoError(t, err)
}
