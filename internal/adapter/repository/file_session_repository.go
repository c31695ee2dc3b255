package repository

import (
	"context"
	"encoding/json"
	"os"

	"chatsync/internal/domain/entity"
	"chatsync/internal/domain/repository"
	"chatsync/pkg/errors"
)

type fileSessionRepository struct {
	path string
}

func NewFileSessionRepository(path string) repository.SessionRepository {
	return &fileSessionRepository{
		path: path,
	}
}

func (r *fileSessionRepository) Load(ctx context.Context) (*entity.User, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("Session", err)
		}
		return nil, errors.Internal("Failed to read session file", err)
	}

	var user entity.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, errors.Internal("Failed to parse session file", err)
	}

	if user.ID == "" || user.Token == "" {
		return nil, errors.NotFound("Session", nil)
	}

	return &user, nil
}

func (r *fileSessionRepository) Save(ctx context.Context, user *entity.User) error {
	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return errors.Internal("Failed to encode session", err)
	}

	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return errors.Internal("Failed to write session file", err)
	}

	return nil
}
