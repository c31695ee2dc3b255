package dispatcher

import (
	"encoding/json"

	"chatsync/internal/domain/entity"
	ws "chatsync/internal/infrastructure/websocket"
	"chatsync/pkg/logger"
)

// Store is the mutation surface the inbound protocol maps onto.
type Store interface {
	SetOnlineUsers(users []entity.OnlineUser)
	SetInitialChats(chats []*entity.Chat)
	HandleInvite(chat *entity.Chat)
	SetHistory(chatID string, msgs []*entity.Message)
	ApplyIncoming(msg *entity.Message)
	ApplyStatus(messageID string, status entity.MessageStatus)
	AddTyper(chatID, userName string)
	RemoveTyper(chatID, userName string)
}

// EventSource is the handler registry of the connection; the websocket
// client satisfies it.
type EventSource interface {
	On(event string, handler ws.Handler)
}

// Dispatcher binds each named inbound event to exactly one store reducer. A
// payload that fails to decode is logged and dropped; a single bad event
// must never corrupt the rest of the store.
type Dispatcher struct {
	source EventSource
	store  Store
}

func NewDispatcher(source EventSource, store Store) *Dispatcher {
	return &Dispatcher{
		source: source,
		store:  store,
	}
}

func (d *Dispatcher) Bind() {
	d.source.On(ws.EventOnlineUsers, d.handleOnlineUsers)
	d.source.On(ws.EventInitialChats, d.handleInitialChats)
	d.source.On(ws.EventChatInvite, d.handleChatInvite)
	d.source.On(ws.EventChatHistory, d.handleChatHistory)
	d.source.On(ws.EventChatMessage, d.handleChatMessage)
	d.source.On(ws.EventMessageStatus, d.handleMessageStatus)
	d.source.On(ws.EventTyping, d.handleTyping)
	d.source.On(ws.EventStopTyping, d.handleStopTyping)
}

func (d *Dispatcher) handleOnlineUsers(data json.RawMessage) {
	var users []entity.OnlineUser
	if err := json.Unmarshal(data, &users); err != nil {
		logger.Warn("Dispatcher: Bad onlineUsers payload: %v", err)
		return
	}
	d.store.SetOnlineUsers(users)
}

func (d *Dispatcher) handleInitialChats(data json.RawMessage) {
	var chats []*entity.Chat
	if err := json.Unmarshal(data, &chats); err != nil {
		logger.Warn("Dispatcher: Bad initialChats payload: %v", err)
		return
	}
	d.store.SetInitialChats(chats)
}

func (d *Dispatcher) handleChatInvite(data json.RawMessage) {
	var chat entity.Chat
	if err := json.Unmarshal(data, &chat); err != nil {
		logger.Warn("Dispatcher: Bad chatInvite payload: %v", err)
		return
	}
	d.store.HandleInvite(&chat)
}

func (d *Dispatcher) handleChatHistory(data json.RawMessage) {
	var payload ws.ChatHistoryPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warn("Dispatcher: Bad chatHistory payload: %v", err)
		return
	}
	d.store.SetHistory(payload.ChatID, payload.Messages)
}

func (d *Dispatcher) handleChatMessage(data json.RawMessage) {
	var msg entity.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Warn("Dispatcher: Bad chatMessage payload: %v", err)
		return
	}
	d.store.ApplyIncoming(&msg)
}

func (d *Dispatcher) handleMessageStatus(data json.RawMessage) {
	var payload ws.MessageStatusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warn("Dispatcher: Bad messageStatus payload: %v", err)
		return
	}
	d.store.ApplyStatus(payload.MessageID, payload.Status)
}

func (d *Dispatcher) handleTyping(data json.RawMessage) {
	var payload ws.TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warn("Dispatcher: Bad typing payload: %v", err)
		return
	}
	d.store.AddTyper(payload.ChatID, payload.UserName)
}

func (d *Dispatcher) handleStopTyping(data json.RawMessage) {
	var payload ws.TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warn("Dispatcher: Bad stopTyping payload: %v", err)
		return
	}
	d.store.RemoveTyper(payload.ChatID, payload.UserName)
}
