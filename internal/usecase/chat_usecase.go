package usecase

import (
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"chatsync/internal/domain/entity"
	ws "chatsync/internal/infrastructure/websocket"
	"chatsync/pkg/errors"
	"chatsync/pkg/logger"
)

// ChatUseCase is the authoritative local state of the session: the set of
// chats, per-chat ordered message lists, unread counters, online users and
// remote typers. All mutation is serialized through its mutex; inbound
// protocol events and user intents are the only writers.
type ChatUseCase struct {
	current  *entity.User
	emitter  EventEmitter
	validate *validator.Validate

	// remoteTTL bounds how long a remote typing entry survives without an
	// explicit stopTyping. 0 keeps entries until stopTyping arrives, which
	// is what the wire protocol itself guarantees.
	remoteTTL time.Duration

	mu         sync.Mutex
	chats      []*entity.Chat
	messages   map[string][]*entity.Message
	online     []entity.OnlineUser
	typers     map[string][]typerEntry
	activeChat string
	fetched    map[string]bool
}

type typerEntry struct {
	name     string
	deadline time.Time
}

func NewChatUseCase(current *entity.User, emitter EventEmitter, remoteTTL time.Duration) *ChatUseCase {
	return &ChatUseCase{
		current:   current,
		emitter:   emitter,
		validate:  validator.New(),
		remoteTTL: remoteTTL,
		messages:  make(map[string][]*entity.Message),
		typers:    make(map[string][]typerEntry),
		fetched:   make(map[string]bool),
	}
}

// SetOnlineUsers replaces the online-user set wholesale, excluding the
// current user's own id.
func (uc *ChatUseCase) SetOnlineUsers(users []entity.OnlineUser) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	online := make([]entity.OnlineUser, 0, len(users))
	for _, u := range users {
		if u.ID == uc.current.ID {
			continue
		}
		online = append(online, u)
	}
	uc.online = online
}

// SetInitialChats replaces the full chat set with the server's one-time
// snapshot.
func (uc *ChatUseCase) SetInitialChats(chats []*entity.Chat) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.chats = chats
}

// HandleInvite adds the chat if it is not already known, then issues a join
// request either way; the join is idempotent on the server.
func (uc *ChatUseCase) HandleInvite(chat *entity.Chat) {
	if chat == nil || chat.ID == "" {
		logger.Warn("Chat: Dropping invite without chat id")
		return
	}

	uc.mu.Lock()
	if uc.findChat(chat.ID) == nil {
		uc.chats = append(uc.chats, chat)
	}
	uc.mu.Unlock()

	uc.emitJoin(chat.ID)
}

// SetHistory replaces a chat's message list with the server snapshot, sorted
// ascending by timestamp, and marks that chat's history as fetched.
func (uc *ChatUseCase) SetHistory(chatID string, msgs []*entity.Message) {
	if chatID == "" {
		logger.Warn("Chat: Dropping history without chat id")
		return
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	list := make([]*entity.Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil || m.ID == "" {
			continue
		}
		list = append(list, m)
	}
	sortByTs(list)
	uc.messages[chatID] = list
	uc.fetched[chatID] = true
}

// ApplyIncoming reconciles one live message. Redelivery of an id already in
// the chat's list is a no-op. Accepted messages are stored as sent and the
// list is kept sorted by timestamp. A message for an inactive chat from
// another user bumps that chat's unread counter and last message.
func (uc *ChatUseCase) ApplyIncoming(msg *entity.Message) {
	if msg == nil || msg.ID == "" || msg.ChatID == "" {
		logger.Warn("Chat: Dropping message without id or chat id")
		return
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	list := uc.messages[msg.ChatID]
	for _, m := range list {
		if m.ID == msg.ID {
			return
		}
	}

	msg.Status = entity.MessageStatusSent
	list = append(list, msg)
	sortByTs(list)
	uc.messages[msg.ChatID] = list

	if msg.ChatID == uc.activeChat || msg.SenderID == uc.current.ID {
		return
	}

	chat := uc.findChat(msg.ChatID)
	if chat == nil {
		logger.Warn("Chat: Message %s for unknown chat %s", msg.ID, msg.ChatID)
		return
	}
	chat.UnreadCount++
	chat.LastMessage = msg
}

// AppendLocal inserts a locally-minted provisional message. The store keeps
// its own copy so the caller's message never aliases store state. Unread
// bookkeeping never applies to the sender's own messages.
func (uc *ChatUseCase) AppendLocal(msg *entity.Message) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	list := append(uc.messages[msg.ChatID], cloneMessage(msg))
	sortByTs(list)
	uc.messages[msg.ChatID] = list
}

// ApplyStatus resolves a provisional message by id. Status only moves
// forward: anything but sending -> sent or sending -> failed is a no-op, as
// is an unknown id.
func (uc *ChatUseCase) ApplyStatus(messageID string, status entity.MessageStatus) {
	if status != entity.MessageStatusSent && status != entity.MessageStatusFailed {
		logger.Warn("Chat: Ignoring status '%s' for message %s", status, messageID)
		return
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	for _, list := range uc.messages {
		for _, m := range list {
			if m.ID != messageID {
				continue
			}
			if m.Status != entity.MessageStatusSending {
				return
			}
			m.Status = status
			return
		}
	}
}

// OpenChat makes a chat the active one and zeroes its unread counter. The
// first open of a chat whose history was never fetched this session issues a
// join request, which the server answers with chatHistory.
func (uc *ChatUseCase) OpenChat(chatID string) error {
	uc.mu.Lock()
	chat := uc.findChat(chatID)
	if chat == nil {
		uc.mu.Unlock()
		return errors.NotFound("Chat", nil)
	}
	uc.activeChat = chatID
	chat.UnreadCount = 0
	needJoin := !uc.fetched[chatID]
	uc.mu.Unlock()

	if needJoin {
		uc.emitJoin(chatID)
	}
	return nil
}

type CreateChatInput struct {
	Name           string   `validate:"required"`
	Type           string   `validate:"required,oneof=direct group"`
	ParticipantIDs []string `validate:"required,min=1,dive,required"`
}

// CreateChat creates a chat locally, announces it to the server and makes it
// active. The current user is always the first participant.
func (uc *ChatUseCase) CreateChat(input CreateChatInput) (*entity.Chat, error) {
	if err := uc.validate.Struct(input); err != nil {
		return nil, errors.BadRequest("Invalid chat input", err)
	}
	if input.Type == entity.ChatTypeDirect && len(input.ParticipantIDs) != 1 {
		return nil, errors.BadRequest("A direct chat needs exactly one other participant", nil)
	}

	uc.mu.Lock()
	participants := append([]string{uc.current.ID}, input.ParticipantIDs...)
	names := []string{uc.current.Name}
	for _, id := range input.ParticipantIDs {
		names = append(names, uc.onlineName(id))
	}

	chat := &entity.Chat{
		ID:               "chat_" + uuid.New().String(),
		Name:             input.Name,
		Type:             input.Type,
		Participants:     participants,
		ParticipantNames: names,
	}
	uc.chats = append(uc.chats, chat)
	uc.activeChat = chat.ID
	uc.mu.Unlock()

	if err := uc.emitter.Emit(ws.EventCreateChat, chat); err != nil {
		logger.Warn("Chat: Failed to announce chat %s: %v", chat.ID, err)
	}
	uc.emitJoin(chat.ID)

	return chat, nil
}

// AddTyper records that a remote user is typing in a chat; duplicates are
// ignored. With a remote TTL configured the entry also carries a deadline.
func (uc *ChatUseCase) AddTyper(chatID, userName string) {
	if chatID == "" || userName == "" {
		return
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	var deadline time.Time
	if uc.remoteTTL > 0 {
		deadline = time.Now().Add(uc.remoteTTL)
	}

	entries := uc.typers[chatID]
	for i, e := range entries {
		if e.name == userName {
			entries[i].deadline = deadline
			return
		}
	}
	uc.typers[chatID] = append(entries, typerEntry{name: userName, deadline: deadline})
}

func (uc *ChatUseCase) RemoveTyper(chatID, userName string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	entries := uc.typers[chatID]
	for i, e := range entries {
		if e.name == userName {
			uc.typers[chatID] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// Accessors return detached snapshots. The store keeps mutating its own
// structs (unread counters, message status) after a read returns, so no
// pointer it holds may leak to a caller.

func (uc *ChatUseCase) Chats() []*entity.Chat {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	out := make([]*entity.Chat, len(uc.chats))
	for i, c := range uc.chats {
		out[i] = cloneChat(c)
	}
	return out
}

func (uc *ChatUseCase) Chat(chatID string) *entity.Chat {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return cloneChat(uc.findChat(chatID))
}

func (uc *ChatUseCase) Messages(chatID string) []*entity.Message {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	list := uc.messages[chatID]
	out := make([]*entity.Message, len(list))
	for i, m := range list {
		out[i] = cloneMessage(m)
	}
	return out
}

func (uc *ChatUseCase) OnlineUsers() []entity.OnlineUser {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	out := make([]entity.OnlineUser, len(uc.online))
	copy(out, uc.online)
	return out
}

func (uc *ChatUseCase) Typers(chatID string) []string {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	now := time.Now()
	kept := uc.typers[chatID][:0]
	names := make([]string, 0, len(uc.typers[chatID]))
	for _, e := range uc.typers[chatID] {
		if !e.deadline.IsZero() && now.After(e.deadline) {
			continue
		}
		kept = append(kept, e)
		names = append(names, e.name)
	}
	uc.typers[chatID] = kept
	return names
}

func (uc *ChatUseCase) ActiveChat() string {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.activeChat
}

func (uc *ChatUseCase) findChat(chatID string) *entity.Chat {
	for _, c := range uc.chats {
		if c.ID == chatID {
			return c
		}
	}
	return nil
}

func (uc *ChatUseCase) onlineName(userID string) string {
	for _, u := range uc.online {
		if u.ID == userID {
			return u.Name
		}
	}
	return "unknown"
}

func (uc *ChatUseCase) emitJoin(chatID string) {
	err := uc.emitter.Emit(ws.EventJoinChat, ws.JoinChatPayload{
		ChatID: chatID,
		UserID: uc.current.ID,
	})
	if err != nil {
		logger.Warn("Chat: Failed to join chat %s: %v", chatID, err)
	}
}

func cloneMessage(m *entity.Message) *entity.Message {
	if m == nil {
		return nil
	}
	out := *m
	return &out
}

func cloneChat(c *entity.Chat) *entity.Chat {
	if c == nil {
		return nil
	}
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	out.ParticipantNames = append([]string(nil), c.ParticipantNames...)
	out.LastMessage = cloneMessage(c.LastMessage)
	return &out
}

func sortByTs(list []*entity.Message) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Ts < list[j].Ts
	})
}
