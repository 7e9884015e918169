package monitor

import "time"

type Status struct {
	Runs                 int       `json:"runs"`
	Failures             int       `json:"failures"`
	LastRunID            string    `json:"last_run_id,omitempty"`
	LastStartedAt        time.Time `json:"last_started_at,omitempty"`
	LastFinishedAt       time.Time `json:"last_finished_at,omitempty"`
	LastSuccess          bool      `json:"last_success"`
	LastError            string    `json:"last_error,omitempty"`
	ActiveUsers          int       `json:"active_users"`
	Inactive             int       `json:"inactive"`
	Undetermined         int       `json:"undetermined"`
	Deactivated          int       `json:"deactivated"`
	DeactivationFailures int       `json:"deactivation_failures"`
}

// Healthy is true until a run fails, and again after the next successful run.
func (s Status) Healthy() bool {
	return s.Runs == 0 || s.LastSuccess
}
