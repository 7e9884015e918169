package monitor

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/jira-auditor/domain"
)

// Tracker keeps the outcome of the most recent audit run for the status server.
type Tracker struct {
	mu     sync.RWMutex
	status Status
	last   *domain.AuditResult
	now    func() time.Time
	logger *zap.Logger
}

func New(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{now: time.Now, logger: logger}
}

// Record stores a run outcome. result may be nil when the run aborted early.
func (t *Tracker) Record(result *domain.AuditResult, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := Status{
		Runs:     t.status.Runs + 1,
		Failures: t.status.Failures,
	}
	if result != nil {
		st.LastRunID = result.RunID
		st.LastStartedAt = result.StartedAt
		st.LastFinishedAt = result.FinishedAt
		st.ActiveUsers = result.ActiveUsers
		st.Inactive = len(result.Inactive)
		st.Undetermined = len(result.Undetermined)
		st.Deactivated = result.Deactivated
		st.DeactivationFailures = result.DeactivationFailures
		t.last = result
	}
	if st.LastFinishedAt.IsZero() {
		st.LastFinishedAt = t.now()
	}
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
		t.logger.Warn("audit run recorded as failed", zap.Int("failures", st.Failures), zap.Error(err))
	} else {
		st.LastSuccess = true
	}
	t.status = st
}

func (t *Tracker) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *Tracker) IsHealthy() bool {
	return t.GetStatus().Healthy()
}

// LastResult returns the most recent completed result, or nil.
func (t *Tracker) LastResult() *domain.AuditResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}
