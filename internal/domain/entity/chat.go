package entity

const (
	ChatTypeDirect = "direct"
	ChatTypeGroup  = "group"
)

type Chat struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Type             string   `json:"type"` // "direct", "group"
	Participants     []string `json:"participants"`
	ParticipantNames []string `json:"participantNames"`
	UnreadCount      int      `json:"unreadCount"`
	LastMessage      *Message `json:"lastMessage,omitempty"`
}
