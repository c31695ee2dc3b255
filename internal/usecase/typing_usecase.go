package usecase

import (
	"strings"
	"sync"
	"time"

	"chatsync/internal/domain/entity"
	ws "chatsync/internal/infrastructure/websocket"
	"chatsync/pkg/logger"
)

// TypingTracker owns the compose buffer and debounces the local typing
// signal: one "typing" per continuous burst, "stopTyping" after the quiet
// period. The timer is a single cancellable task; every keystroke within the
// window is a cancel-and-reschedule, not a re-emit.
type TypingTracker struct {
	current  *entity.User
	chats    *ChatUseCase
	emitter  EventEmitter
	debounce time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	typing bool
	chatID string
	buffer string
}

func NewTypingTracker(current *entity.User, chats *ChatUseCase, emitter EventEmitter, debounce time.Duration) *TypingTracker {
	return &TypingTracker{
		current:  current,
		chats:    chats,
		emitter:  emitter,
		debounce: debounce,
	}
}

// InputChanged records the new compose buffer content. A blank buffer ends
// the burst immediately with an explicit stopTyping.
func (t *TypingTracker) InputChanged(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buffer = text
	if strings.TrimSpace(text) == "" {
		t.endBurst(true)
		return
	}

	active := t.chats.ActiveChat()
	if active == "" {
		return
	}

	if !t.typing {
		t.typing = true
		t.chatID = active
		t.emitSignal(ws.EventTyping, active)
	}

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.debounce, t.expire)
}

func (t *TypingTracker) expire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endBurst(true)
}

// Flush clears the compose buffer and ends the burst; the pipeline calls it
// when a message is sent.
func (t *TypingTracker) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buffer = ""
	t.endBurst(true)
}

// Stop cancels the timer without signaling; used at session teardown so a
// stale timer cannot fire into a replaced connection.
func (t *TypingTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endBurst(false)
}

func (t *TypingTracker) Buffer() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buffer
}

func (t *TypingTracker) endBurst(signal bool) {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if !t.typing {
		return
	}
	t.typing = false
	if signal {
		t.emitSignal(ws.EventStopTyping, t.chatID)
	}
}

func (t *TypingTracker) emitSignal(event, chatID string) {
	err := t.emitter.Emit(event, ws.TypingPayload{
		ChatID:   chatID,
		UserName: t.current.Name,
	})
	if err != nil {
		logger.Debug("Typing: Failed to emit %s for chat %s: %v", event, chatID, err)
	}
}
