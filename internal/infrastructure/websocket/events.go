package websocket

import (
	"encoding/json"

	"chatsync/internal/domain/entity"
)

// Wire protocol event names
const (
	EventRegisterUser  = "registerUser"
	EventOnlineUsers   = "onlineUsers"
	EventInitialChats  = "initialChats"
	EventChatInvite    = "chatInvite"
	EventJoinChat      = "joinChat"
	EventChatHistory   = "chatHistory"
	EventChatMessage   = "chatMessage"
	EventMessageStatus = "messageStatus"
	EventTyping        = "typing"
	EventStopTyping    = "stopTyping"
	EventCreateChat    = "createChat"
	EventAck           = "ack"
)

// Envelope is the frame exchanged with the server. AckID is non-zero when
// the sender expects an acknowledgment for this frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID uint64          `json:"ackId,omitempty"`
}

// Event payload types

type RegisterUserPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type JoinChatPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

type ChatHistoryPayload struct {
	ChatID   string            `json:"chatId"`
	Messages []*entity.Message `json:"messages"`
}

type MessageStatusPayload struct {
	MessageID string               `json:"messageId"`
	Status    entity.MessageStatus `json:"status"`
}

type TypingPayload struct {
	ChatID   string `json:"chatId"`
	UserName string `json:"userName"`
}

// AckResult is the data carried by an "ack" envelope, echoing the AckID of
// the frame it answers.
type AckResult struct {
	Success bool `json:"success"`
}
