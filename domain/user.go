package domain

import "time"

// UserAccount is an account as reported by the remote user directory.
type UserAccount struct {
	Username      string     `json:"username"`
	Key           string     `json:"key,omitempty"`
	DisplayName   string     `json:"display_name,omitempty"`
	Email         string     `json:"email,omitempty"`
	Active        bool       `json:"active"`
	LastLoginTime *time.Time `json:"last_login_time,omitempty"`
}

func (u *UserAccount) IsActive() bool {
	return u != nil && u.Active
}

// HasKnownLogin reports whether the directory exposed a last-login time.
func (u *UserAccount) HasKnownLogin() bool {
	return u != nil && u.LastLoginTime != nil
}
