package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/jira-auditor/domain"
	"github.com/fastygo/jira-auditor/internal/config"
	"github.com/fastygo/jira-auditor/internal/services/lifecycle"
	"github.com/fastygo/jira-auditor/pkg/logger"
	"github.com/fastygo/jira-auditor/usecase/audit"
)

func newRunCommand(deps Dependencies, flags *auditFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Runs a single audit and exits",
		Long: `Runs a single audit and exits.

Exit status is 0 on success, 1 on a fatal error and 2 when a deactivate run
could not deactivate every inactive account.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, deps, flags)
		},
	}
}

// app holds the process-wide resources shared by run and schedule.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	manager   *lifecycle.Manager
	directory Directory
	ctx       context.Context
	stop      context.CancelFunc
}

// bootstrap loads and validates configuration before any remote client is built.
func bootstrap(cmd *cobra.Command, deps Dependencies, flags *auditFlags) (*app, error) {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, err
	}
	flags.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Output:   deps.LogOutput,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeConfiguration, "build logger", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  zapLogger,
		manager: lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger),
	}
	a.ctx, a.stop = a.manager.NotifyContext(cmd.Context())

	if deps.NewDirectory == nil {
		a.close()
		return nil, domain.NewError(domain.ErrCodeConfiguration, "no user directory configured")
	}
	directory, err := deps.NewDirectory(cfg.Jira, zapLogger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.directory = directory
	a.manager.Acquire("jira_client", func(context.Context) error {
		return directory.Close()
	})
	return a, nil
}

func (a *app) auditor() *audit.UseCase {
	return audit.New(a.directory, a.logger, audit.Options{
		DaysThreshold: a.cfg.Audit.DaysThreshold,
		Mode:          a.cfg.Audit.ParsedMode(),
		Concurrency:   a.cfg.Audit.Concurrency,
		Exclude:       a.cfg.Audit.Exclude,
	})
}

// close releases resources newest first. It runs on failure exits too.
func (a *app) close() {
	if a.stop != nil {
		a.stop()
	}
	if err := a.manager.Close(context.Background()); err != nil {
		a.logger.Error("shutdown error", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func runAudit(cmd *cobra.Command, deps Dependencies, flags *auditFlags) error {
	a, err := bootstrap(cmd, deps, flags)
	if err != nil {
		return err
	}
	defer a.close()

	runCtx, cancel := context.WithTimeout(a.ctx, a.cfg.Audit.RunTimeout)
	defer cancel()

	result, err := a.auditor().Run(runCtx)
	if err != nil {
		return err
	}
	return outcome(result)
}

func outcome(result *domain.AuditResult) error {
	if result == nil || result.DeactivationFailures == 0 {
		return nil
	}
	attempted := result.Deactivated + result.DeactivationFailures
	return fmt.Errorf("%d of %d: %w", result.DeactivationFailures, attempted, errPartialDeactivation)
}
