package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsync/internal/domain/entity"
	ws "chatsync/internal/infrastructure/websocket"
	apperrors "chatsync/pkg/errors"
)

type fakeEvent struct {
	name string
	data interface{}
}

// fakeEmitter records outbound events. EmitWithAck answers with the
// configured result, optionally only after gate is closed.
type fakeEmitter struct {
	mu     sync.Mutex
	events []fakeEvent
	ackOK  bool
	ackErr error
	gate   chan struct{}
}

func (f *fakeEmitter) Emit(event string, data interface{}) error {
	f.record(event, data)
	return nil
}

func (f *fakeEmitter) EmitWithAck(ctx context.Context, event string, data interface{}) (bool, error) {
	f.record(event, data)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return f.ackOK, f.ackErr
}

func (f *fakeEmitter) record(event string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fakeEvent{name: event, data: data})
}

func (f *fakeEmitter) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.name == event {
			n++
		}
	}
	return n
}

func testUser() *entity.User {
	return &entity.User{ID: "user_me", Name: "Me", Token: "tok"}
}

func newStore(emitter *fakeEmitter) *ChatUseCase {
	return NewChatUseCase(testUser(), emitter, 0)
}

func chatFixture(id string) *entity.Chat {
	return &entity.Chat{
		ID:           id,
		Name:         "Chat " + id,
		Type:         entity.ChatTypeGroup,
		Participants: []string{"user_me", "user_other"},
	}
}

func messageFixture(id, chatID, sender string, ts int64) *entity.Message {
	return &entity.Message{
		ID:         id,
		ChatID:     chatID,
		SenderID:   sender,
		SenderName: "Other",
		Text:       "hello",
		Ts:         ts,
		Status:     entity.MessageStatusSent,
	}
}

func TestApplyIncomingDeduplicatesAndCountsUnreadOnce(t *testing.T) {
	emitter := &fakeEmitter{}
	store := newStore(emitter)
	store.SetInitialChats([]*entity.Chat{chatFixture("c2")})

	msg := messageFixture("m1", "c2", "user_other", 100)
	store.ApplyIncoming(msg)
	store.ApplyIncoming(messageFixture("m1", "c2", "user_other", 100))

	assert.Len(t, store.Messages("c2"), 1)
	assert.Equal(t, 1, store.Chat("c2").UnreadCount)
	assert.Equal(t, "m1", store.Chat("c2").LastMessage.ID)
}

func TestApplyIncomingKeepsTimestampOrder(t *testing.T) {
	store := newStore(&fakeEmitter{})
	store.SetInitialChats([]*entity.Chat{chatFixture("c1")})

	store.ApplyIncoming(messageFixture("m3", "c1", "user_other", 300))
	store.ApplyIncoming(messageFixture("m1", "c1", "user_other", 100))
	store.ApplyIncoming(messageFixture("m2", "c1", "user_other", 200))

	msgs := store.Messages("c1")
	require.Len(t, msgs, 3)
	assert.Equal(t, []int64{100, 200, 300}, []int64{msgs[0].Ts, msgs[1].Ts, msgs[2].Ts})
}

func TestApplyIncomingForcesStatusSent(t *testing.T) {
	store := newStore(&fakeEmitter{})
	store.SetInitialChats([]*entity.Chat{chatFixture("c1")})

	msg := messageFixture("m1", "c1", "user_other", 100)
	msg.Status = entity.MessageStatusSending
	store.ApplyIncoming(msg)

	assert.Equal(t, entity.MessageStatusSent, store.Messages("c1")[0].Status)
}

func TestUnreadAccounting(t *testing.T) {
	store := newStore(&fakeEmitter{})
	store.SetInitialChats([]*entity.Chat{chatFixture("c1"), chatFixture("c2")})

	require.NoError(t, store.OpenChat("c1"))

	// Inbound volume on the active chat never bumps the counter.
	store.ApplyIncoming(messageFixture("m1", "c1", "user_other", 100))
	store.ApplyIncoming(messageFixture("m2", "c1", "user_other", 200))
	assert.Equal(t, 0, store.Chat("c1").UnreadCount)

	// Own messages on an inactive chat do not count either.
	store.ApplyIncoming(messageFixture("m3", "c2", "user_me", 300))
	assert.Equal(t, 0, store.Chat("c2").UnreadCount)

	store.ApplyIncoming(messageFixture("m4", "c2", "user_other", 400))
	store.ApplyIncoming(messageFixture("m5", "c2", "user_other", 500))
	assert.Equal(t, 2, store.Chat("c2").UnreadCount)

	// Opening the chat resets it.
	require.NoError(t, store.OpenChat("c2"))
	assert.Equal(t, 0, store.Chat("c2").UnreadCount)
}

func TestApplyStatusForwardOnly(t *testing.T) {
	store := newStore(&fakeEmitter{})
	store.SetInitialChats([]*entity.Chat{chatFixture("c1")})

	local := messageFixture("local-abc", "c1", "user_me", 100)
	local.Status = entity.MessageStatusSending
	store.AppendLocal(local)

	store.ApplyStatus("local-abc", entity.MessageStatusSent)
	assert.Equal(t, entity.MessageStatusSent, store.Messages("c1")[0].Status)

	// sent never regresses to failed
	store.ApplyStatus("local-abc", entity.MessageStatusFailed)
	assert.Equal(t, entity.MessageStatusSent, store.Messages("c1")[0].Status)

	// unknown ids and non-terminal targets are no-ops
	store.ApplyStatus("missing", entity.MessageStatusSent)
	store.ApplyStatus("local-abc", entity.MessageStatusSending)
	assert.Equal(t, entity.MessageStatusSent, store.Messages("c1")[0].Status)
}

func TestSetHistoryReplacesSorted(t *testing.T) {
	store := newStore(&fakeEmitter{})
	store.SetInitialChats([]*entity.Chat{chatFixture("c1")})
	store.ApplyIncoming(messageFixture("stale", "c1", "user_other", 50))

	store.SetHistory("c1", []*entity.Message{
		messageFixture("h2", "c1", "user_other", 200),
		messageFixture("h1", "c1", "user_other", 100),
	})

	msgs := store.Messages("c1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "h1", msgs[0].ID)
	assert.Equal(t, "h2", msgs[1].ID)
}

func TestHandleInviteAddsOnceButAlwaysJoins(t *testing.T) {
	emitter := &fakeEmitter{}
	store := newStore(emitter)

	store.HandleInvite(chatFixture("c9"))
	store.HandleInvite(chatFixture("c9"))

	assert.Len(t, store.Chats(), 1)
	assert.Equal(t, 2, emitter.count(ws.EventJoinChat))
}

func TestOpenChatJoinsUntilHistoryFetched(t *testing.T) {
	emitter := &fakeEmitter{}
	store := newStore(emitter)
	store.SetInitialChats([]*entity.Chat{chatFixture("c1")})

	require.NoError(t, store.OpenChat("c1"))
	assert.Equal(t, 1, emitter.count(ws.EventJoinChat))

	store.SetHistory("c1", nil)
	require.NoError(t, store.OpenChat("c1"))
	assert.Equal(t, 1, emitter.count(ws.EventJoinChat))
}

func TestOpenChatUnknown(t *testing.T) {
	store := newStore(&fakeEmitter{})
	err := store.OpenChat("nope")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, "NOT_FOUND"))
}

func TestSetOnlineUsersExcludesSelf(t *testing.T) {
	store := newStore(&fakeEmitter{})
	store.SetOnlineUsers([]entity.OnlineUser{
		{ID: "user_me", Name: "Me"},
		{ID: "user_a", Name: "Alice"},
	})

	online := store.OnlineUsers()
	require.Len(t, online, 1)
	assert.Equal(t, "user_a", online[0].ID)
}

func TestTypersAddRemove(t *testing.T) {
	store := newStore(&fakeEmitter{})

	store.AddTyper("c1", "Alice")
	store.AddTyper("c1", "Alice")
	assert.Equal(t, []string{"Alice"}, store.Typers("c1"))

	store.RemoveTyper("c1", "Alice")
	assert.Empty(t, store.Typers("c1"))

	// removing an absent typer is a no-op
	store.RemoveTyper("c1", "Bob")
	assert.Empty(t, store.Typers("c1"))
}

func TestTypersRemoteTTL(t *testing.T) {
	store := NewChatUseCase(testUser(), &fakeEmitter{}, 20*time.Millisecond)

	store.AddTyper("c1", "Alice")
	assert.Equal(t, []string{"Alice"}, store.Typers("c1"))

	assert.Eventually(t, func() bool {
		return len(store.Typers("c1")) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestAccessorSnapshotsAreDetached(t *testing.T) {
	store := newStore(&fakeEmitter{})
	store.SetInitialChats([]*entity.Chat{chatFixture("c1")})

	before := store.Chat("c1")
	store.ApplyIncoming(messageFixture("m1", "c1", "user_other", 100))

	// the snapshot predates the message and never sees it
	assert.Equal(t, 0, before.UnreadCount)
	assert.Nil(t, before.LastMessage)
	assert.Equal(t, 1, store.Chat("c1").UnreadCount)

	local := messageFixture("local-x", "c1", "user_me", 200)
	local.Status = entity.MessageStatusSending
	store.AppendLocal(local)

	snap := store.Messages("c1")
	store.ApplyStatus("local-x", entity.MessageStatusSent)
	for _, m := range snap {
		if m.ID == "local-x" {
			assert.Equal(t, entity.MessageStatusSending, m.Status)
		}
	}

	// writes to a snapshot never reach the store
	before.UnreadCount = 99
	local.Status = entity.MessageStatusFailed
	assert.Equal(t, 1, store.Chat("c1").UnreadCount)
	for _, m := range store.Messages("c1") {
		if m.ID == "local-x" {
			assert.Equal(t, entity.MessageStatusSent, m.Status)
		}
	}
}

func TestConcurrentReadersDuringReconciliation(t *testing.T) {
	store := newStore(&fakeEmitter{})
	store.SetInitialChats([]*entity.Chat{chatFixture("c1")})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			store.ApplyIncoming(messageFixture(fmt.Sprintf("m%d", i), "c1", "user_other", int64(i)))
		}
	}()

	// read the fields the writer mutates, continuously, until it finishes
	for {
		if chat := store.Chat("c1"); chat != nil {
			_ = chat.UnreadCount
			_ = chat.LastMessage
		}
		for _, m := range store.Messages("c1") {
			_ = m.Status
		}
		select {
		case <-done:
			assert.Equal(t, 500, store.Chat("c1").UnreadCount)
			assert.Len(t, store.Messages("c1"), 500)
			return
		default:
		}
	}
}

func TestCreateChatValidation(t *testing.T) {
	store := newStore(&fakeEmitter{})

	_, err := store.CreateChat(CreateChatInput{Name: "", Type: entity.ChatTypeGroup, ParticipantIDs: []string{"u1"}})
	assert.True(t, apperrors.Is(err, "BAD_REQUEST"))

	_, err = store.CreateChat(CreateChatInput{Name: "x", Type: "channel", ParticipantIDs: []string{"u1"}})
	assert.True(t, apperrors.Is(err, "BAD_REQUEST"))

	_, err = store.CreateChat(CreateChatInput{Name: "x", Type: entity.ChatTypeGroup, ParticipantIDs: nil})
	assert.True(t, apperrors.Is(err, "BAD_REQUEST"))

	_, err = store.CreateChat(CreateChatInput{Name: "x", Type: entity.ChatTypeDirect, ParticipantIDs: []string{"u1", "u2"}})
	assert.True(t, apperrors.Is(err, "BAD_REQUEST"))

	assert.Empty(t, store.Chats())
}

func TestCreateChatOptimisticAndAnnounced(t *testing.T) {
	emitter := &fakeEmitter{}
	store := newStore(emitter)
	store.SetOnlineUsers([]entity.OnlineUser{{ID: "user_a", Name: "Alice"}})

	chat, err := store.CreateChat(CreateChatInput{
		Name:           "pair",
		Type:           entity.ChatTypeDirect,
		ParticipantIDs: []string{"user_a"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"user_me", "user_a"}, chat.Participants)
	assert.Equal(t, []string{"Me", "Alice"}, chat.ParticipantNames)
	assert.Equal(t, chat.ID, store.ActiveChat())
	assert.Len(t, store.Chats(), 1)
	assert.Equal(t, 1, emitter.count(ws.EventCreateChat))
	assert.Equal(t, 1, emitter.count(ws.EventJoinChat))
}

func TestCreateChatUnknownParticipantName(t *testing.T) {
	store := newStore(&fakeEmitter{})

	chat, err := store.CreateChat(CreateChatInput{
		Name:           "group",
		Type:           entity.ChatTypeGroup,
		ParticipantIDs: []string{"user_offline"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Me", "unknown"}, chat.ParticipantNames)
}
