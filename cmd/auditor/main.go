package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/fastygo/jira-auditor/internal/cli"
	"github.com/fastygo/jira-auditor/internal/config"
	"github.com/fastygo/jira-auditor/internal/infrastructure/jira"
)

func main() {
	deps := cli.Dependencies{
		NewDirectory: func(cfg config.JiraConfig, logger *zap.Logger) (cli.Directory, error) {
			return jira.NewClient(cfg, logger)
		},
	}
	os.Exit(cli.Execute(context.Background(), deps, os.Args[1:]))
}
