package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/jira-auditor/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"JIRA_URL", "JIRA_EMAIL", "JIRA_API_TOKEN", "JIRA_PERSONAL_ACCESS_TOKEN",
		"JIRA_REQUEST_TIMEOUT", "JIRA_MAX_RESULTS",
		"AUDIT_DAYS_THRESHOLD", "AUDIT_MODE", "AUDIT_CONCURRENCY", "AUDIT_EXCLUDE", "AUDIT_RUN_TIMEOUT",
		"LOG_LEVEL", "LOG_ENCODING", "SCHEDULE_CRON", "STATUS_ADDR", "STATUS_JWT_SECRET", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JIRA_URL", "https://jira.example.com/")
	t.Setenv("JIRA_EMAIL", "admin@example.com")
	t.Setenv("JIRA_API_TOKEN", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://jira.example.com", cfg.Jira.URL)
	assert.Equal(t, 60, cfg.Audit.DaysThreshold)
	assert.Equal(t, domain.ModeReport, cfg.Audit.ParsedMode())
	assert.Equal(t, 4, cfg.Audit.Concurrency)
	assert.Equal(t, 30*time.Minute, cfg.Audit.RunTimeout)
	assert.Equal(t, 30*time.Second, cfg.Jira.RequestTimeout)
	assert.Equal(t, 1000, cfg.Jira.MaxResults)
	assert.Equal(t, "console", cfg.Logger.Encoding)
	assert.Equal(t, "@daily", cfg.Schedule.Cron)
	assert.Empty(t, cfg.Audit.Exclude)

	scheme, err := cfg.Jira.Scheme()
	require.NoError(t, err)
	assert.Equal(t, AuthBasic, scheme)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JIRA_URL", "https://jira.example.com")
	t.Setenv("JIRA_PERSONAL_ACCESS_TOKEN", "pat")
	t.Setenv("AUDIT_DAYS_THRESHOLD", "0")
	t.Setenv("AUDIT_MODE", "deactivate")
	t.Setenv("AUDIT_EXCLUDE", "svc-ci, ,admin")
	t.Setenv("JIRA_REQUEST_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0, cfg.Audit.DaysThreshold)
	assert.Equal(t, domain.ModeDeactivate, cfg.Audit.ParsedMode())
	assert.Equal(t, []string{"svc-ci", "admin"}, cfg.Audit.Exclude)
	assert.Equal(t, 5*time.Second, cfg.Jira.RequestTimeout)

	scheme, err := cfg.Jira.Scheme()
	require.NoError(t, err)
	assert.Equal(t, AuthBearer, scheme)
}

func TestLoadRejectsMalformedNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUDIT_DAYS_THRESHOLD", "sixty")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeConfiguration))
}

func TestValidateNamesMissingVariable(t *testing.T) {
	base := func() *Config {
		return &Config{
			Jira:   JiraConfig{URL: "https://jira.example.com", Email: "a@example.com", APIToken: "t", RequestTimeout: time.Second, MaxResults: 10},
			Audit:  AuditConfig{DaysThreshold: 60, Mode: "report", Concurrency: 1, RunTimeout: time.Minute},
			Logger: LoggerConfig{Level: "info", Encoding: "console"},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"url", func(c *Config) { c.Jira.URL = "" }, "JIRA_URL"},
		{"email", func(c *Config) { c.Jira.Email = "" }, "JIRA_EMAIL"},
		{"token", func(c *Config) { c.Jira.APIToken = "" }, "JIRA_API_TOKEN"},
		{"no credentials", func(c *Config) { c.Jira.Email, c.Jira.APIToken = "", "" }, "JIRA_PERSONAL_ACCESS_TOKEN"},
		{"both schemes", func(c *Config) { c.Jira.PersonalAccessToken = "pat" }, "cannot be combined"},
		{"mode", func(c *Config) { c.Audit.Mode = "purge" }, "AUDIT_MODE"},
		{"negative days", func(c *Config) { c.Audit.DaysThreshold = -1 }, "AUDIT_DAYS_THRESHOLD"},
		{"concurrency", func(c *Config) { c.Audit.Concurrency = 0 }, "AUDIT_CONCURRENCY"},
		{"bad url", func(c *Config) { c.Jira.URL = "not a url" }, "JIRA_URL"},
		{"encoding", func(c *Config) { c.Logger.Encoding = "xml" }, "LOG_ENCODING"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, domain.IsDomainError(err, domain.ErrCodeConfiguration))
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	require.NoError(t, base().Validate())
}
