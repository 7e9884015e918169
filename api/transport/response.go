package transport

import (
	"encoding/json"
	"time"

	"github.com/fastygo/jira-auditor/domain"
)

// Envelope wraps every status server payload.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{Status: "success", Data: data, Meta: meta}
}

func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{Status: "error", Code: code, Error: err, Meta: meta}
}

// AuditSummary is the public view of an audit run.
type AuditSummary struct {
	RunID                string         `json:"run_id"`
	Mode                 string         `json:"mode"`
	DaysThreshold        int            `json:"days_threshold"`
	Cutoff               string         `json:"cutoff"`
	StartedAt            string         `json:"started_at"`
	FinishedAt           string         `json:"finished_at"`
	DurationMS           int64          `json:"duration_ms"`
	ActiveUsers          int            `json:"active_users"`
	Excluded             int            `json:"excluded"`
	Inactive             []InactiveUser `json:"inactive"`
	Undetermined         []string       `json:"undetermined"`
	Deactivated          int            `json:"deactivated"`
	DeactivationFailures int            `json:"deactivation_failures"`
}

type InactiveUser struct {
	Username      string `json:"username"`
	LastLoginTime string `json:"last_login_time"`
	DaysInactive  int    `json:"days_inactive"`
}

// String returns the JSON form for logging.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// NewAuditSummary converts a run result into its wire form.
func NewAuditSummary(r *domain.AuditResult) AuditSummary {
	s := AuditSummary{
		RunID:                r.RunID,
		Mode:                 string(r.Mode),
		DaysThreshold:        r.DaysThreshold,
		Cutoff:               formatTime(r.Cutoff),
		StartedAt:            formatTime(r.StartedAt),
		FinishedAt:           formatTime(r.FinishedAt),
		DurationMS:           r.Duration().Milliseconds(),
		ActiveUsers:          r.ActiveUsers,
		Excluded:             r.Excluded,
		Inactive:             make([]InactiveUser, 0, len(r.Inactive)),
		Undetermined:         append([]string{}, r.Undetermined...),
		Deactivated:          r.Deactivated,
		DeactivationFailures: r.DeactivationFailures,
	}
	for _, rec := range r.Inactive {
		u := InactiveUser{Username: rec.Username, DaysInactive: rec.DaysInactive}
		if rec.LastLoginTime != nil {
			u.LastLoginTime = formatTime(*rec.LastLoginTime)
		}
		s.Inactive = append(s.Inactive, u)
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
