package repository

import (
	"context"

	"chatsync/internal/domain/entity"
)

// SessionRepository persists the authenticated identity across restarts.
// Save is called once at authentication time; Load at startup.
type SessionRepository interface {
	Load(ctx context.Context) (*entity.User, error)
	Save(ctx context.Context, user *entity.User) error
}
