package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/jira-auditor/api/handler"
	"github.com/fastygo/jira-auditor/domain"
	"github.com/fastygo/jira-auditor/internal/config"
	"github.com/fastygo/jira-auditor/internal/infrastructure/monitor"
	"github.com/fastygo/jira-auditor/internal/middleware"
	"github.com/fastygo/jira-auditor/internal/router"
	"github.com/fastygo/jira-auditor/internal/services"
	"github.com/fastygo/jira-auditor/pkg/httpcontext"
)

const statusRequestTimeout = 5 * time.Second

type scheduleFlags struct {
	cron       string
	statusAddr string
}

func newScheduleCommand(deps Dependencies, flags *auditFlags) *cobra.Command {
	sf := &scheduleFlags{}
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Runs audits on a cron schedule and serves their status over HTTP",
		Long: `Runs audits on a cron schedule (SCHEDULE_CRON, default @daily) and serves
GET /health and GET /api/v1/audit/last on STATUS_ADDR until interrupted.
A run still in progress when the next one is due is not overlapped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, deps, flags, sf)
		},
	}
	cmd.Flags().StringVar(&sf.cron, "cron", "", "cron expression for audit runs (SCHEDULE_CRON)")
	cmd.Flags().StringVar(&sf.statusAddr, "status-addr", "", "status server listen address (STATUS_ADDR)")
	return cmd
}

func runSchedule(cmd *cobra.Command, deps Dependencies, flags *auditFlags, sf *scheduleFlags) error {
	wrapped := deps
	wrapped.LoadConfig = func() (*config.Config, error) {
		cfg, err := deps.LoadConfig()
		if err != nil {
			return nil, err
		}
		if cmd.Flags().Changed("cron") {
			cfg.Schedule.Cron = sf.cron
		}
		if cmd.Flags().Changed("status-addr") {
			cfg.Schedule.StatusAddr = sf.statusAddr
		}
		return cfg, nil
	}

	a, err := bootstrap(cmd, wrapped, flags)
	if err != nil {
		return err
	}
	defer a.close()

	tracker := monitor.New(a.logger)
	scheduler, err := services.NewScheduler(a.auditor(), tracker, a.logger, services.SchedulerConfig{
		Spec:       a.cfg.Schedule.Cron,
		RunTimeout: a.cfg.Audit.RunTimeout,
	})
	if err != nil {
		return err
	}

	ln, err := deps.Listen(a.cfg.Schedule.StatusAddr)
	if err != nil {
		return domain.WrapError(domain.ErrCodeConfiguration, "listen on STATUS_ADDR", err)
	}

	scheduler.Start(a.ctx)
	a.manager.Acquire("scheduler", func(ctx context.Context) error {
		scheduler.Stop(ctx)
		return nil
	})

	ctxAdapter := httpcontext.NewAdapter(statusRequestTimeout)
	r := router.New(router.Handlers{
		Health: apiHandler.NewHealthHandler(tracker, ctxAdapter, a.logger),
		Audit:  apiHandler.NewAuditHandler(tracker, ctxAdapter, a.logger),
	}, middleware.JWTAuth(a.cfg.Schedule.StatusSecret, a.logger))

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  time.Minute,
		Name:         "jira-auditor",
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("status server started", zap.String("address", ln.Addr().String()))
		serveErr <- server.Serve(ln)
	}()
	a.manager.Acquire("status_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	select {
	case <-a.ctx.Done():
		a.logger.Info("shutting down")
		return nil
	case err := <-serveErr:
		return domain.WrapError(domain.ErrCodeInternal, "status server", err)
	}
}
