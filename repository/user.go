package repository

import (
	"context"

	"github.com/fastygo/jira-auditor/domain"
)

// UserDirectory is the remote user-management API the auditor works against.
type UserDirectory interface {
	Authenticate(ctx context.Context) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	DeactivateUser(ctx context.Context, username string) error
}
