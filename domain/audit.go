package domain

import (
	"strings"
	"time"
)

// AuditMode selects what happens to inactive accounts.
type AuditMode string

const (
	ModeReport     AuditMode = "report"
	ModeDeactivate AuditMode = "deactivate"
)

// ParseAuditMode normalises a configured mode string.
func ParseAuditMode(raw string) (AuditMode, error) {
	switch mode := AuditMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case ModeReport, ModeDeactivate:
		return mode, nil
	case "":
		return ModeReport, nil
	default:
		return "", ErrInvalidMode
	}
}

// InactivityRecord is the per-account outcome of classification.
// DaysInactive is only meaningful when LastLoginTime is set.
type InactivityRecord struct {
	Username      string     `json:"username"`
	LastLoginTime *time.Time `json:"last_login_time"`
	DaysInactive  int        `json:"days_inactive"`
}

// AuditResult summarises one run of the auditor.
type AuditResult struct {
	RunID                string             `json:"run_id"`
	Mode                 AuditMode          `json:"mode"`
	DaysThreshold        int                `json:"days_threshold"`
	Cutoff               time.Time          `json:"cutoff"`
	StartedAt            time.Time          `json:"started_at"`
	FinishedAt           time.Time          `json:"finished_at"`
	ActiveUsers          int                `json:"active_users"`
	Excluded             int                `json:"excluded"`
	Inactive             []InactivityRecord `json:"inactive"`
	Undetermined         []string           `json:"undetermined"`
	Deactivated          int                `json:"deactivated"`
	DeactivationFailures int                `json:"deactivation_failures"`
}

// Duration returns how long the run took.
func (r *AuditResult) Duration() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
