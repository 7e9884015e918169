package cli

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"

	"github.com/fastygo/jira-auditor/domain"
	"github.com/fastygo/jira-auditor/internal/config"
)

type fakeDirectory struct {
	mu          sync.Mutex
	users       []domain.UserAccount
	logins      map[string]*time.Time
	listErr     error
	failDisable map[string]bool
	disabled    []string
	closed      bool
}

func (f *fakeDirectory) Authenticate(context.Context) error { return nil }

func (f *fakeDirectory) ListUsers(context.Context) ([]domain.UserAccount, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.UserAccount(nil), f.users...), nil
}

func (f *fakeDirectory) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	return &domain.UserAccount{Username: username, Active: true, LastLoginTime: f.logins[username]}, nil
}

func (f *fakeDirectory) DeactivateUser(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDisable[username] {
		return errors.New("forbidden")
	}
	f.disabled = append(f.disabled, username)
	return nil
}

func (f *fakeDirectory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func daysAgo(n int) *time.Time {
	t := time.Now().Add(-time.Duration(n)*24*time.Hour - time.Hour)
	return &t
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users: []domain.UserAccount{
			{Username: "alice", Active: true},
			{Username: "bob", Active: true},
			{Username: "carol", Active: true},
		},
		logins: map[string]*time.Time{
			"alice": daysAgo(10),
			"bob":   daysAgo(90),
		},
	}
}

func validConfig() *config.Config {
	return &config.Config{
		Jira: config.JiraConfig{
			URL:            "https://jira.example.com",
			Email:          "admin@example.com",
			APIToken:       "token",
			RequestTimeout: 30 * time.Second,
			MaxResults:     1000,
		},
		Audit: config.AuditConfig{
			DaysThreshold: 60,
			Mode:          "report",
			Concurrency:   2,
			RunTimeout:    time.Minute,
		},
		Logger:   config.LoggerConfig{Level: "info", Encoding: "json"},
		Schedule: config.ScheduleConfig{Cron: "@daily", StatusAddr: ":0"},
		Context:  config.ContextConfig{ShutdownTimeout: time.Second},
	}
}

type harness struct {
	dir    *fakeDirectory
	cfg    *config.Config
	builds int
	logs   bytes.Buffer
	stderr bytes.Buffer
	listen func(string) (net.Listener, error)
	mu     sync.Mutex
}

func newHarness() *harness {
	return &harness{dir: newFakeDirectory(), cfg: validConfig()}
}

func (h *harness) deps() Dependencies {
	return Dependencies{
		NewDirectory: func(config.JiraConfig, *zap.Logger) (Directory, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.builds++
			return h.dir, nil
		},
		LoadConfig: func() (*config.Config, error) { return h.cfg, nil },
		Listen:     h.listen,
		LogOutput:  &h.logs,
		ErrOutput:  &h.stderr,
	}
}

func (h *harness) run(args ...string) int {
	return Execute(context.Background(), h.deps(), args)
}

func TestMissingConfigurationAbortsBeforeRemoteCalls(t *testing.T) {
	h := newHarness()
	h.cfg.Jira.URL = ""

	assert.Equal(t, ExitFatal, h.run())
	assert.Zero(t, h.builds)
	assert.Contains(t, h.stderr.String(), "JIRA_URL")
}

func TestConflictingCredentialsAreRejected(t *testing.T) {
	h := newHarness()
	h.cfg.Jira.PersonalAccessToken = "pat"

	assert.Equal(t, ExitFatal, h.run("run"))
	assert.Zero(t, h.builds)
	assert.Contains(t, h.stderr.String(), "JIRA_PERSONAL_ACCESS_TOKEN")
}

func TestLoadErrorIsFatal(t *testing.T) {
	h := newHarness()
	deps := h.deps()
	deps.LoadConfig = func() (*config.Config, error) {
		return nil, domain.NewError(domain.ErrCodeConfiguration, "read environment")
	}
	assert.Equal(t, ExitFatal, Execute(context.Background(), deps, nil))
	assert.Zero(t, h.builds)
}

func TestRunReportsInactiveUsers(t *testing.T) {
	h := newHarness()

	require.Equal(t, ExitOK, h.run("run"))
	assert.Equal(t, 1, h.builds)
	assert.True(t, h.dir.closed)
	assert.Empty(t, h.dir.disabled)

	logs := h.logs.String()
	assert.Contains(t, logs, `"msg":"inactive user","run_id"`)
	assert.Contains(t, logs, `"user":"bob"`)
	assert.Contains(t, logs, `"days_inactive":90`)
	assert.NotContains(t, logs, `"user":"alice"`)
	assert.Contains(t, logs, "carol")
}

func TestFlagsOverrideConfiguration(t *testing.T) {
	h := newHarness()

	require.Equal(t, ExitOK, h.run("--days", "5", "--exclude", "BOB"))
	logs := h.logs.String()
	assert.Contains(t, logs, `"user":"alice"`)
	assert.Contains(t, logs, "user excluded from audit")
	assert.Equal(t, 5, h.cfg.Audit.DaysThreshold)
}

func TestInvalidFlagValueNamesVariable(t *testing.T) {
	h := newHarness()

	assert.Equal(t, ExitFatal, h.run("run", "--concurrency", "0"))
	assert.Zero(t, h.builds)
	assert.Contains(t, h.stderr.String(), "AUDIT_CONCURRENCY")

	h = newHarness()
	assert.Equal(t, ExitFatal, h.run("--mode", "purge"))
	assert.Contains(t, h.stderr.String(), "AUDIT_MODE")
}

func TestDeactivateModeExitCodes(t *testing.T) {
	h := newHarness()
	require.Equal(t, ExitOK, h.run("run", "--mode", "deactivate"))
	assert.Equal(t, []string{"bob"}, h.dir.disabled)

	h = newHarness()
	h.dir.failDisable = map[string]bool{"bob": true}
	assert.Equal(t, ExitPartialFailure, h.run("run", "--mode", "deactivate"))
	assert.Contains(t, h.stderr.String(), "1 of 1")
	assert.True(t, h.dir.closed)
}

func TestListingFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.dir.listErr = errors.New("connection reset")

	assert.Equal(t, ExitFatal, h.run())
	assert.NotContains(t, h.logs.String(), "inactivity report")
	assert.Contains(t, h.stderr.String(), "list active users")
	assert.True(t, h.dir.closed, "the client is released on failure exits")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFatal, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitPartialFailure, ExitCode(outcome(&domain.AuditResult{Deactivated: 2, DeactivationFailures: 1})))
	assert.NoError(t, outcome(&domain.AuditResult{Deactivated: 2}))
}

func TestScheduleServesStatusUntilCancelled(t *testing.T) {
	h := newHarness()
	ln := fasthttputil.NewInmemoryListener()
	var gotAddr string
	h.listen = func(addr string) (net.Listener, error) {
		gotAddr = addr
		return ln, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan int, 1)
	go func() {
		done <- Execute(ctx, h.deps(), []string{"schedule", "--cron", "0 3 * * *", "--status-addr", "127.0.0.1:9999"})
	}()

	client := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	get := func(path string) int {
		status, _, err := client.GetTimeout(nil, "http://status"+path, 2*time.Second)
		require.NoError(t, err)
		return status
	}
	assert.Equal(t, fasthttp.StatusOK, get("/health"))
	assert.Equal(t, fasthttp.StatusNotFound, get("/api/v1/audit/last"))

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, ExitOK, code)
	case <-time.After(5 * time.Second):
		t.Fatal("schedule did not stop after cancellation")
	}
	assert.Equal(t, "127.0.0.1:9999", gotAddr)
	assert.True(t, h.dir.closed)
}

func TestScheduleRejectsInvalidCron(t *testing.T) {
	h := newHarness()
	h.listen = func(string) (net.Listener, error) {
		t.Fatal("listener opened for an invalid schedule")
		return nil, nil
	}

	assert.Equal(t, ExitFatal, h.run("schedule", "--cron", "whenever"))
	assert.Contains(t, h.stderr.String(), "SCHEDULE_CRON")
	assert.True(t, h.dir.closed)
}
