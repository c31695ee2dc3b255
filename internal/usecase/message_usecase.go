package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatsync/internal/domain/entity"
	ws "chatsync/internal/infrastructure/websocket"
	"chatsync/pkg/errors"
	"chatsync/pkg/logger"
)

// MessagePipeline performs the optimistic send: the message appears in local
// state with a provisional status before the network round trip, and the
// acknowledgment later resolves it to sent or failed through the same status
// reducer that serves inbound events.
type MessagePipeline struct {
	current    *entity.User
	chats      *ChatUseCase
	typing     *TypingTracker
	emitter    EventEmitter
	ackTimeout time.Duration
}

func NewMessagePipeline(current *entity.User, chats *ChatUseCase, typing *TypingTracker, emitter EventEmitter, ackTimeout time.Duration) *MessagePipeline {
	return &MessagePipeline{
		current:    current,
		chats:      chats,
		typing:     typing,
		emitter:    emitter,
		ackTimeout: ackTimeout,
	}
}

// Send dispatches text to the active chat. It returns synchronously once the
// provisional message is visible locally; it never waits for the
// acknowledgment. A failed message is not retried; a new Send mints a new id.
func (p *MessagePipeline) Send(text string) (*entity.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, errors.BadRequest("Message text is empty", nil)
	}
	if p.current == nil || p.current.ID == "" {
		return nil, errors.BadRequest("No authenticated user", nil)
	}
	chatID := p.chats.ActiveChat()
	if chatID == "" {
		return nil, errors.BadRequest("No active chat", nil)
	}

	msg := &entity.Message{
		ID:         entity.LocalIDPrefix + uuid.New().String(),
		ChatID:     chatID,
		SenderID:   p.current.ID,
		SenderName: p.current.Name,
		Text:       trimmed,
		Ts:         time.Now().UnixMilli(),
		Status:     entity.MessageStatusSending,
	}

	p.chats.AppendLocal(msg)
	if p.typing != nil {
		p.typing.Flush()
	}

	go p.resolve(*msg)

	return msg, nil
}

func (p *MessagePipeline) resolve(msg entity.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.ackTimeout)
	defer cancel()

	ok, err := p.emitter.EmitWithAck(ctx, ws.EventChatMessage, &msg)

	status := entity.MessageStatusSent
	if err != nil || !ok {
		status = entity.MessageStatusFailed
		logger.Warn("Message: Send of %s not acknowledged (ok=%v): %v", msg.ID, ok, err)
	}
	p.chats.ApplyStatus(msg.ID, status)
}
