package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFatal(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"configuration", NewError(ErrCodeConfiguration, "JIRA_URL is required"), true},
		{"remote", WrapError(ErrCodeRemoteService, "list users", errors.New("boom")), true},
		{"unauthorized", ErrUnauthorized, true},
		{"lookup", WrapError(ErrCodeLookup, "get user", errors.New("timeout")), false},
		{"deactivation", NewError(ErrCodeDeactivation, "deactivate"), false},
		{"plain error", errors.New("context canceled"), true},
		{"wrapped lookup", fmt.Errorf("alice: %w", ErrInvalidTimestamp), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsFatal(tc.err))
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(ErrCodeRemoteService, "list users", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "list users: connection refused", err.Error())
	assert.True(t, IsDomainError(fmt.Errorf("run: %w", err), ErrCodeRemoteService))
	assert.Equal(t, ErrCodeInternal, CodeOf(cause))
}

func TestSentinelMatchesByValue(t *testing.T) {
	copyOf := NewError(ErrCodeUnauthorized, ErrUnauthorized.Message)
	assert.ErrorIs(t, copyOf, ErrUnauthorized)
	assert.NotErrorIs(t, ErrUserNotFound, ErrUnauthorized)
}

func TestParseAuditMode(t *testing.T) {
	mode, err := ParseAuditMode(" Deactivate ")
	require.NoError(t, err)
	assert.Equal(t, ModeDeactivate, mode)

	mode, err = ParseAuditMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeReport, mode)

	_, err = ParseAuditMode("purge")
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.True(t, IsFatal(err))
}
