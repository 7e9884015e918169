package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/fastygo/jira-auditor/domain"
)

// Config aggregates all runtime settings required by the auditor.
type Config struct {
	Jira     JiraConfig
	Audit    AuditConfig
	Logger   LoggerConfig
	Schedule ScheduleConfig
	Context  ContextConfig
}

// JiraConfig holds the remote endpoint and exactly one credential scheme.
type JiraConfig struct {
	URL                 string        `envconfig:"JIRA_URL" validate:"omitempty,url"`
	Email               string        `envconfig:"JIRA_EMAIL"`
	APIToken            string        `envconfig:"JIRA_API_TOKEN"`
	PersonalAccessToken string        `envconfig:"JIRA_PERSONAL_ACCESS_TOKEN"`
	RequestTimeout      time.Duration `envconfig:"JIRA_REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
	MaxResults          int           `envconfig:"JIRA_MAX_RESULTS" default:"1000" validate:"min=1"`
}

type AuditConfig struct {
	DaysThreshold int           `envconfig:"AUDIT_DAYS_THRESHOLD" default:"60" validate:"min=0"`
	Mode          string        `envconfig:"AUDIT_MODE" default:"report" validate:"oneof=report deactivate"`
	Concurrency   int           `envconfig:"AUDIT_CONCURRENCY" default:"4" validate:"min=1,max=64"`
	Exclude       []string      `envconfig:"AUDIT_EXCLUDE"`
	RunTimeout    time.Duration `envconfig:"AUDIT_RUN_TIMEOUT" default:"30m" validate:"gt=0"`
}

type LoggerConfig struct {
	Level    string `envconfig:"LOG_LEVEL" default:"info"`
	Encoding string `envconfig:"LOG_ENCODING" default:"console" validate:"oneof=console json"`
}

type ScheduleConfig struct {
	Cron         string `envconfig:"SCHEDULE_CRON" default:"@daily"`
	StatusAddr   string `envconfig:"STATUS_ADDR" default:":8080"`
	StatusSecret string `envconfig:"STATUS_JWT_SECRET"`
}

type ContextConfig struct {
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// AuthScheme names the credential scheme selected by configuration.
type AuthScheme string

const (
	AuthBasic  AuthScheme = "basic"
	AuthBearer AuthScheme = "bearer"
)

// Load reads configuration from environment variables (optionally .env).
// It does not validate; callers apply flag overrides first and then call Validate.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	for _, part := range []any{&cfg.Jira, &cfg.Audit, &cfg.Logger, &cfg.Schedule, &cfg.Context} {
		if err := envconfig.Process("", part); err != nil {
			return nil, domain.WrapError(domain.ErrCodeConfiguration, "read environment", err)
		}
	}
	cfg.Jira.URL = strings.TrimRight(strings.TrimSpace(cfg.Jira.URL), "/")
	cfg.Audit.Exclude = normalizeList(cfg.Audit.Exclude)
	return &cfg, nil
}

var validate = validator.New()

// Validate checks required values and ranges. Every failure is a CONFIGURATION
// error naming the offending environment variable.
func (c *Config) Validate() error {
	if c == nil {
		return domain.NewError(domain.ErrCodeConfiguration, "configuration is missing")
	}
	if c.Jira.URL == "" {
		return missing("JIRA_URL")
	}
	if _, err := c.Jira.Scheme(); err != nil {
		return err
	}
	if _, err := domain.ParseAuditMode(c.Audit.Mode); err != nil {
		return domain.WrapError(domain.ErrCodeConfiguration, "AUDIT_MODE", err)
	}

	for _, part := range []any{c.Jira, c.Audit, c.Logger} {
		if err := validate.Struct(part); err != nil {
			return describeValidation(err)
		}
	}
	return nil
}

// Scheme resolves which credential scheme is configured.
// Basic (email + API token) and bearer (personal access token) are mutually exclusive.
func (j JiraConfig) Scheme() (AuthScheme, error) {
	hasBasic := j.Email != "" || j.APIToken != ""
	hasBearer := j.PersonalAccessToken != ""

	switch {
	case hasBasic && hasBearer:
		return "", domain.NewError(domain.ErrCodeConfiguration,
			"JIRA_PERSONAL_ACCESS_TOKEN cannot be combined with JIRA_EMAIL/JIRA_API_TOKEN")
	case hasBearer:
		return AuthBearer, nil
	case j.Email == "" && j.APIToken == "":
		return "", missing("JIRA_EMAIL and JIRA_API_TOKEN, or JIRA_PERSONAL_ACCESS_TOKEN")
	case j.Email == "":
		return "", missing("JIRA_EMAIL")
	case j.APIToken == "":
		return "", missing("JIRA_API_TOKEN")
	}
	return AuthBasic, nil
}

// ParsedMode returns the audit mode, defaulting to report.
func (a AuditConfig) ParsedMode() domain.AuditMode {
	mode, err := domain.ParseAuditMode(a.Mode)
	if err != nil {
		return domain.ModeReport
	}
	return mode
}

func missing(name string) error {
	return domain.NewError(domain.ErrCodeConfiguration, fmt.Sprintf("missing required configuration: %s", name))
}

var envNames = map[string]string{
	"URL":            "JIRA_URL",
	"RequestTimeout": "JIRA_REQUEST_TIMEOUT",
	"MaxResults":     "JIRA_MAX_RESULTS",
	"DaysThreshold":  "AUDIT_DAYS_THRESHOLD",
	"Mode":           "AUDIT_MODE",
	"Concurrency":    "AUDIT_CONCURRENCY",
	"RunTimeout":     "AUDIT_RUN_TIMEOUT",
	"Encoding":       "LOG_ENCODING",
}

func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.WrapError(domain.ErrCodeConfiguration, "invalid configuration", err)
	}
	fe := fieldErrs[0]
	name := envNames[fe.Field()]
	if name == "" {
		name = fe.Field()
	}
	return domain.NewError(domain.ErrCodeConfiguration,
		fmt.Sprintf("invalid configuration: %s=%v fails %q", name, fe.Value(), fe.ActualTag()))
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
