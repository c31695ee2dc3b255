package dispatcher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsync/internal/domain/entity"
	ws "chatsync/internal/infrastructure/websocket"
)

// fakeSource captures the handler registrations so tests can inject events.
type fakeSource struct {
	handlers map[string]ws.Handler
}

func (f *fakeSource) On(event string, handler ws.Handler) {
	f.handlers[event] = handler
}

func (f *fakeSource) deliver(t *testing.T, event string, payload string) {
	t.Helper()
	handler, ok := f.handlers[event]
	require.True(t, ok, "no handler bound for %s", event)
	handler(json.RawMessage(payload))
}

// recordingStore records which reducer ran and with what arguments.
type recordingStore struct {
	calls    []string
	online   []entity.OnlineUser
	chats    []*entity.Chat
	invited  *entity.Chat
	history  []*entity.Message
	incoming *entity.Message
	statusID string
	status   entity.MessageStatus
	typer    [2]string
}

func (s *recordingStore) SetOnlineUsers(users []entity.OnlineUser) {
	s.calls = append(s.calls, "onlineUsers")
	s.online = users
}

func (s *recordingStore) SetInitialChats(chats []*entity.Chat) {
	s.calls = append(s.calls, "initialChats")
	s.chats = chats
}

func (s *recordingStore) HandleInvite(chat *entity.Chat) {
	s.calls = append(s.calls, "invite")
	s.invited = chat
}

func (s *recordingStore) SetHistory(chatID string, msgs []*entity.Message) {
	s.calls = append(s.calls, "history")
	s.history = msgs
}

func (s *recordingStore) ApplyIncoming(msg *entity.Message) {
	s.calls = append(s.calls, "incoming")
	s.incoming = msg
}

func (s *recordingStore) ApplyStatus(messageID string, status entity.MessageStatus) {
	s.calls = append(s.calls, "status")
	s.statusID = messageID
	s.status = status
}

func (s *recordingStore) AddTyper(chatID, userName string) {
	s.calls = append(s.calls, "addTyper")
	s.typer = [2]string{chatID, userName}
}

func (s *recordingStore) RemoveTyper(chatID, userName string) {
	s.calls = append(s.calls, "removeTyper")
	s.typer = [2]string{chatID, userName}
}

func bind() (*fakeSource, *recordingStore) {
	source := &fakeSource{handlers: make(map[string]ws.Handler)}
	store := &recordingStore{}
	NewDispatcher(source, store).Bind()
	return source, store
}

func TestBindCoversAllInboundEvents(t *testing.T) {
	source, _ := bind()

	for _, event := range []string{
		ws.EventOnlineUsers, ws.EventInitialChats, ws.EventChatInvite,
		ws.EventChatHistory, ws.EventChatMessage, ws.EventMessageStatus,
		ws.EventTyping, ws.EventStopTyping,
	} {
		assert.Contains(t, source.handlers, event)
	}
}

func TestInboundEventsReachTheStore(t *testing.T) {
	source, store := bind()

	source.deliver(t, ws.EventOnlineUsers, `[{"id":"u1","name":"Alice"}]`)
	require.Len(t, store.online, 1)
	assert.Equal(t, "Alice", store.online[0].Name)

	source.deliver(t, ws.EventInitialChats, `[{"id":"c1","name":"general","type":"group"}]`)
	require.Len(t, store.chats, 1)

	source.deliver(t, ws.EventChatInvite, `{"id":"c2","name":"pair","type":"direct"}`)
	require.NotNil(t, store.invited)
	assert.Equal(t, "c2", store.invited.ID)

	source.deliver(t, ws.EventChatHistory, `{"chatId":"c1","messages":[{"id":"m1","chatId":"c1","ts":10}]}`)
	require.Len(t, store.history, 1)

	source.deliver(t, ws.EventChatMessage, `{"id":"m2","chatId":"c1","sender":"u1","text":"hi","ts":20}`)
	require.NotNil(t, store.incoming)
	assert.Equal(t, "m2", store.incoming.ID)

	source.deliver(t, ws.EventMessageStatus, `{"messageId":"m2","status":"sent"}`)
	assert.Equal(t, "m2", store.statusID)
	assert.Equal(t, entity.MessageStatusSent, store.status)

	source.deliver(t, ws.EventTyping, `{"chatId":"c1","userName":"Alice"}`)
	assert.Equal(t, [2]string{"c1", "Alice"}, store.typer)

	source.deliver(t, ws.EventStopTyping, `{"chatId":"c1","userName":"Alice"}`)
	assert.Equal(t, "removeTyper", store.calls[len(store.calls)-1])
}

func TestMalformedPayloadsAreDropped(t *testing.T) {
	source, store := bind()

	source.deliver(t, ws.EventOnlineUsers, `{"not":"a list"}`)
	source.deliver(t, ws.EventChatMessage, `"just a string"`)
	source.deliver(t, ws.EventChatHistory, `42`)
	source.deliver(t, ws.EventMessageStatus, `[1,2,3]`)

	assert.Empty(t, store.calls)
}
