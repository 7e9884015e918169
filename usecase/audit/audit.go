package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/jira-auditor/domain"
	"github.com/fastygo/jira-auditor/pkg/logger"
	"github.com/fastygo/jira-auditor/repository"
)

const defaultDaysThreshold = 60

// Options configures an audit run.
type Options struct {
	DaysThreshold int
	Mode          domain.AuditMode
	// Concurrency bounds parallel last-login lookups. 1 means sequential.
	Concurrency int
	Exclude     []string
	Now         func() time.Time
}

// UseCase is the inactivity auditor.
type UseCase struct {
	directory repository.UserDirectory
	logger    *zap.Logger
	opts      Options
	exclude   map[string]struct{}
}

func New(directory repository.UserDirectory, logger *zap.Logger, opts Options) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DaysThreshold < 0 {
		opts.DaysThreshold = defaultDaysThreshold
	}
	if opts.Mode == "" {
		opts.Mode = domain.ModeReport
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, name := range opts.Exclude {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			exclude[name] = struct{}{}
		}
	}
	return &UseCase{
		directory: directory,
		logger:    logger,
		opts:      opts,
		exclude:   exclude,
	}
}

// Run executes one full audit pass. Authentication and listing failures abort
// the run with a REMOTE_SERVICE error; per-user failures only degrade that user.
func (uc *UseCase) Run(ctx context.Context) (*domain.AuditResult, error) {
	runID := logger.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logger.ContextWithRunID(ctx, runID)
	}
	log := logger.WithRunID(ctx, uc.logger)

	now := uc.opts.Now()
	cutoff := Cutoff(now, uc.opts.DaysThreshold)
	result := &domain.AuditResult{
		RunID:         runID,
		Mode:          uc.opts.Mode,
		DaysThreshold: uc.opts.DaysThreshold,
		Cutoff:        cutoff,
		StartedAt:     now,
	}
	log.Info("audit started",
		zap.String("mode", string(uc.opts.Mode)),
		zap.Int("days_threshold", uc.opts.DaysThreshold),
		zap.Time("cutoff", cutoff),
	)

	if err := uc.directory.Authenticate(ctx); err != nil {
		err = domain.WrapError(domain.ErrCodeRemoteService, "authenticate", err)
		log.Error("audit aborted", zap.Error(err))
		return nil, err
	}

	users, err := uc.ListActiveUsers(ctx)
	if err != nil {
		log.Error("audit aborted", zap.Error(err))
		return nil, err
	}
	users, result.Excluded = uc.filterExcluded(log, users)
	result.ActiveUsers = len(users)

	if err := uc.collectLastLogins(ctx, log, users); err != nil {
		err = domain.WrapError(domain.ErrCodeInternal, "collect last logins", err)
		log.Error("audit aborted", zap.Error(err))
		return nil, err
	}

	inactive, undetermined := Classify(users, cutoff, now)
	SortByInactivity(inactive)
	result.Inactive = inactive
	result.Undetermined = make([]string, 0, len(undetermined))
	for _, u := range undetermined {
		result.Undetermined = append(result.Undetermined, u.Username)
	}

	switch uc.opts.Mode {
	case domain.ModeDeactivate:
		uc.Summarize(ctx, result)
		result.Deactivated, result.DeactivationFailures = uc.Deactivate(ctx, inactive)
	default:
		uc.Report(ctx, result)
	}

	result.FinishedAt = uc.opts.Now()
	if err := ctx.Err(); err != nil {
		return result, domain.WrapError(domain.ErrCodeInternal, "audit interrupted", err)
	}
	log.Info("audit finished", zap.Duration("took", result.Duration()))
	return result, nil
}

// ListActiveUsers returns every user the directory reports as active.
func (uc *UseCase) ListActiveUsers(ctx context.Context) ([]domain.UserAccount, error) {
	users, err := uc.directory.ListUsers(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeRemoteService, "list active users", err)
	}
	active := make([]domain.UserAccount, 0, len(users))
	for _, u := range users {
		if u.IsActive() {
			active = append(active, u)
		}
	}
	logger.WithRunID(ctx, uc.logger).Info("found active users", zap.Int("count", len(active)))
	return active, nil
}

// LastLogin fetches the last login time of one user. A nil time with a nil
// error means the directory has no record. Errors carry the LOOKUP code.
func (uc *UseCase) LastLogin(ctx context.Context, username string) (*time.Time, error) {
	user, err := uc.directory.GetUser(ctx, username)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeLookup, "last login for "+username, err)
	}
	if user == nil {
		return nil, nil
	}
	return user.LastLoginTime, nil
}

// Summarize logs the run counts, including accounts whose last login is
// unknown. It is logged in both modes.
func (uc *UseCase) Summarize(ctx context.Context, result *domain.AuditResult) {
	if result == nil {
		return
	}
	log := logger.WithRunID(ctx, uc.logger)
	log.Info("inactivity report",
		zap.String("mode", string(result.Mode)),
		zap.Int("active_users", result.ActiveUsers),
		zap.Int("inactive", len(result.Inactive)),
		zap.Int("undetermined", len(result.Undetermined)),
		zap.Int("excluded", result.Excluded),
		zap.Int("days_threshold", result.DaysThreshold),
	)
	if len(result.Undetermined) > 0 {
		log.Warn("last login undetermined", zap.Strings("users", result.Undetermined))
	}
}

// Report logs the summary and the inactive accounts in result order.
func (uc *UseCase) Report(ctx context.Context, result *domain.AuditResult) {
	if result == nil {
		return
	}
	uc.Summarize(ctx, result)
	log := logger.WithRunID(ctx, uc.logger)
	for _, rec := range result.Inactive {
		fields := []zap.Field{zap.String("user", rec.Username), zap.Int("days_inactive", rec.DaysInactive)}
		if rec.LastLoginTime != nil {
			fields = append(fields, zap.Time("last_login", *rec.LastLoginTime))
		}
		log.Info("inactive user", fields...)
	}
}

// Deactivate deactivates each record in order and returns how many calls
// succeeded and how many failed. A failure never stops the batch; a cancelled
// context does.
func (uc *UseCase) Deactivate(ctx context.Context, records []domain.InactivityRecord) (deactivated, failed int) {
	log := logger.WithRunID(ctx, uc.logger)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			log.Warn("deactivation interrupted", zap.Int("remaining", len(records)-deactivated-failed), zap.Error(err))
			break
		}
		log.Info("deactivating user", zap.String("user", rec.Username), zap.Int("days_inactive", rec.DaysInactive))
		if err := uc.directory.DeactivateUser(ctx, rec.Username); err != nil {
			err = domain.WrapError(domain.ErrCodeDeactivation, "deactivate "+rec.Username, err)
			log.Error("deactivation failed", zap.String("user", rec.Username), zap.Error(err))
			failed++
			continue
		}
		deactivated++
		log.Info("user deactivated", zap.String("user", rec.Username))
	}
	log.Info("deactivation complete",
		zap.Int("deactivated", deactivated),
		zap.Int("failed", failed),
		zap.Int("attempted", deactivated+failed),
	)
	return deactivated, failed
}

func (uc *UseCase) filterExcluded(log *zap.Logger, users []domain.UserAccount) ([]domain.UserAccount, int) {
	if len(uc.exclude) == 0 {
		return users, 0
	}
	kept := users[:0:0]
	excluded := 0
	for _, u := range users {
		if _, skip := uc.exclude[strings.ToLower(u.Username)]; skip {
			log.Info("user excluded from audit", zap.String("user", u.Username))
			excluded++
			continue
		}
		kept = append(kept, u)
	}
	return kept, excluded
}

// collectLastLogins fills LastLoginTime for every user using a bounded pool.
// Each worker writes only its own index, so the input order is preserved.
func (uc *UseCase) collectLastLogins(ctx context.Context, log *zap.Logger, users []domain.UserAccount) error {
	var g errgroup.Group
	g.SetLimit(uc.opts.Concurrency)

	for i := range users {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			name := users[i].Username
			ts, err := uc.LastLogin(ctx, name)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn("could not determine last login", zap.String("user", name), zap.Error(err))
				users[i].LastLoginTime = nil
				return nil
			}
			if ts == nil {
				log.Warn("last login not recorded", zap.String("user", name))
			}
			users[i].LastLoginTime = ts
			return nil
		})
	}
	return g.Wait()
}
