package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ReleaseFunc frees a resource acquired for the lifetime of the process.
type ReleaseFunc func(ctx context.Context) error

type resource struct {
	name    string
	release ReleaseFunc
}

// Manager releases acquired resources in reverse order on exit and turns OS
// termination signals into context cancellation.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu        sync.Mutex
	resources []resource
	closed    bool
}

// New creates a lifecycle manager whose Close is bounded by timeout.
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Acquire registers a resource to be released by Close.
func (m *Manager) Acquire(name string, release ReleaseFunc) {
	if release == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = append(m.resources, resource{name: name, release: release})
}

// Close releases every resource once, newest first, and joins their errors.
func (m *Manager) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var result error
	for i := len(m.resources) - 1; i >= 0; i-- {
		r := m.resources[i]
		if err := r.release(ctx); err != nil {
			m.logger.Error("release failed", zap.String("resource", r.name), zap.Error(err))
			result = errors.Join(result, err)
			continue
		}
		m.logger.Debug("resource released", zap.String("resource", r.name))
	}
	m.resources = nil
	return result
}

// NotifyContext derives a context cancelled on SIGINT or SIGTERM.
func (m *Manager) NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
