package entity

import "strings"

type MessageStatus string

const (
	MessageStatusSending MessageStatus = "sending"
	MessageStatusSent    MessageStatus = "sent"
	MessageStatusFailed  MessageStatus = "failed"
)

// LocalIDPrefix namespaces client-minted message ids so they can never
// collide with server-assigned ids.
const LocalIDPrefix = "local-"

// Message is a single chat message. Ts is a millisecond epoch timestamp.
// Status only ever moves forward: sending -> sent or sending -> failed.
type Message struct {
	ID         string        `json:"id"`
	ChatID     string        `json:"chatId"`
	SenderID   string        `json:"sender"`
	SenderName string        `json:"senderName"`
	Text       string        `json:"text"`
	Ts         int64         `json:"ts"`
	Status     MessageStatus `json:"status"`
}

// IsLocalMessageID reports whether id was minted by this client rather than
// assigned by the server.
func IsLocalMessageID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}
