package usecase

import (
	"context"

	"chatsync/internal/adapter/dispatcher"
	"chatsync/internal/domain/entity"
	ws "chatsync/internal/infrastructure/websocket"
	"chatsync/pkg/config"
)

// Session is the controller for one authenticated session. It owns the
// connection, the store and every timer; replacing a session means Close on
// the old one and NewSession for the new, so no stale callback can mutate
// state across the boundary.
type Session struct {
	User     *entity.User
	Client   *ws.Client
	Chats    *ChatUseCase
	Pipeline *MessagePipeline
	Typing   *TypingTracker
}

func NewSession(cfg *config.Config, user *entity.User) *Session {
	client := ws.NewClient(cfg.ServerURL, user, ws.Options{
		MaxReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay,
	})

	chats := NewChatUseCase(user, client, cfg.TypingRemoteTTL)
	typing := NewTypingTracker(user, chats, client, cfg.TypingDebounce)
	pipeline := NewMessagePipeline(user, chats, typing, client, cfg.AckTimeout)

	dispatcher.NewDispatcher(client, chats).Bind()

	return &Session{
		User:     user,
		Client:   client,
		Chats:    chats,
		Pipeline: pipeline,
		Typing:   typing,
	}
}

func (s *Session) Start(ctx context.Context) error {
	return s.Client.Connect(ctx)
}

// Close releases everything tied to the session's connection: the typing
// timer, all event handlers and any pending acknowledgments.
func (s *Session) Close() {
	s.Typing.Stop()
	s.Client.Close()
}
