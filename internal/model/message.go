package model

import "time"

type MessageType string

const MessageTypeSMS MessageType = "sms"

func (t MessageType) String() string { return string(t) }

// Message is one stored inbound SMS, as served to the companion client.
type Message struct {
	ID        string      `json:"id"` // provider MessageSid
	Type      MessageType `json:"type"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Body      string      `json:"body"`
	Timestamp time.Time   `json:"timestamp"` // ingestion time, not provider time
	Read      bool        `json:"read"`
	Replied   bool        `json:"replied"`
}

// MarkRead flags the message as read.
func (m *Message) MarkRead() { m.Read = true }

// MarkReplied flags the message as replied; a replied message is always read.
func (m *Message) MarkReplied() {
	m.Replied = true
	m.Read = true
}
