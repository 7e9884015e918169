package jira

import (
	"fmt"
	"strings"
	"time"

	"github.com/fastygo/jira-auditor/domain"
)

// Jira emits fractional seconds with a numeric offset, with or without a colon.
var loginLayouts = []string{
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-0700",
	time.RFC3339Nano,
}

// ParseLoginTime parses a lastLoginTime value. Unknown formats return ErrInvalidTimestamp.
func ParseLoginTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range loginLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q: %w", raw, domain.ErrInvalidTimestamp)
}
