package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"chatsync/internal/domain/entity"
	"chatsync/internal/domain/repository"
	"chatsync/pkg/errors"
	"chatsync/pkg/logger"
)

// AuthUseCase owns the session identity: restored from persisted storage at
// startup, minted once on first authentication, never mutated afterwards.
type AuthUseCase struct {
	sessionRepo repository.SessionRepository
	jwtSecret   string
}

func NewAuthUseCase(sessionRepo repository.SessionRepository, jwtSecret string) *AuthUseCase {
	return &AuthUseCase{
		sessionRepo: sessionRepo,
		jwtSecret:   jwtSecret,
	}
}

// Restore loads the persisted identity; NOT_FOUND means no prior session.
func (uc *AuthUseCase) Restore(ctx context.Context) (*entity.User, error) {
	return uc.sessionRepo.Load(ctx)
}

// Authenticate mints a fresh identity with a locally signed credential and
// persists it. The credential is opaque to the rest of the engine; the
// server is the only party that inspects it.
func (uc *AuthUseCase) Authenticate(ctx context.Context, name string) (*entity.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.BadRequest("Display name is required", nil)
	}

	id := "user_" + uuid.New().String()
	token, err := uc.mintToken(id, name)
	if err != nil {
		return nil, errors.Internal("Failed to mint credential", err)
	}

	user := &entity.User{
		ID:    id,
		Name:  name,
		Token: token,
	}

	if err := uc.sessionRepo.Save(ctx, user); err != nil {
		return nil, err
	}

	logger.Info("Auth: Created session for %s (%s)", name, id)
	return user, nil
}

func (uc *AuthUseCase) mintToken(id, name string) (string, error) {
	claims := jwt.MapClaims{
		"uid":  id,
		"name": name,
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(uc.jwtSecret))
}
