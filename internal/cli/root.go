package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/jira-auditor/domain"
	"github.com/fastygo/jira-auditor/internal/config"
	"github.com/fastygo/jira-auditor/repository"
)

const (
	ExitOK             = 0
	ExitFatal          = 1
	ExitPartialFailure = 2
)

// Directory is a user directory holding a connection that must be released.
type Directory interface {
	repository.UserDirectory
	Close() error
}

// Dependencies lets callers swap the remote client and process I/O.
type Dependencies struct {
	NewDirectory func(cfg config.JiraConfig, logger *zap.Logger) (Directory, error)
	LoadConfig   func() (*config.Config, error)
	Listen       func(addr string) (net.Listener, error)
	LogOutput    io.Writer
	ErrOutput    io.Writer
}

func (d Dependencies) withDefaults() Dependencies {
	if d.LoadConfig == nil {
		d.LoadConfig = config.Load
	}
	if d.Listen == nil {
		d.Listen = func(addr string) (net.Listener, error) { return net.Listen("tcp", addr) }
	}
	if d.ErrOutput == nil {
		d.ErrOutput = os.Stderr
	}
	return d
}

// NewRootCommand builds the jira-auditor command tree. Running the root
// command performs a single audit, like the run subcommand.
func NewRootCommand(deps Dependencies) *cobra.Command {
	deps = deps.withDefaults()
	flags := &auditFlags{}

	root := &cobra.Command{
		Use:   "jira-auditor",
		Short: "Reports or deactivates Jira accounts that have not logged in recently",
		Long: `Lists active Jira users, looks up each account's last login and reports the
accounts inactive for longer than the threshold. In deactivate mode those
accounts are deactivated instead.

Configuration comes from the environment (and an optional .env file); flags
override it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, deps, flags)
		},
	}
	root.SetErr(deps.ErrOutput)
	flags.register(root)

	root.AddCommand(newRunCommand(deps, flags), newScheduleCommand(deps, flags))
	return root
}

// Execute runs the command tree and maps the outcome to a process exit code.
func Execute(ctx context.Context, deps Dependencies, args []string) int {
	deps = deps.withDefaults()
	cmd := NewRootCommand(deps)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	code := ExitCode(err)
	if err != nil {
		fmt.Fprintf(deps.ErrOutput, "jira-auditor: %v\n", err)
	}
	return code
}

// errPartialDeactivation marks a deactivate run that finished with failures.
var errPartialDeactivation = domain.NewError(domain.ErrCodeDeactivation, "some deactivations failed")

// ExitCode maps a run error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errPartialDeactivation):
		return ExitPartialFailure
	default:
		return ExitFatal
	}
}

// auditFlags override the matching environment settings when set.
type auditFlags struct {
	mode        string
	days        int
	concurrency int
	exclude     []string
}

func (f *auditFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.mode, "mode", "", "audit mode: report or deactivate (AUDIT_MODE)")
	pf.IntVar(&f.days, "days", 0, "inactivity threshold in days (AUDIT_DAYS_THRESHOLD)")
	pf.IntVar(&f.concurrency, "concurrency", 0, "parallel last-login lookups (AUDIT_CONCURRENCY)")
	pf.StringSliceVar(&f.exclude, "exclude", nil, "usernames never audited (AUDIT_EXCLUDE)")
}

func (f *auditFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Audit.Mode = f.mode
	}
	if flags.Changed("days") {
		cfg.Audit.DaysThreshold = f.days
	}
	if flags.Changed("concurrency") {
		cfg.Audit.Concurrency = f.concurrency
	}
	if flags.Changed("exclude") {
		cfg.Audit.Exclude = f.exclude
	}
}
