package model

import "time"

// ---- Inbound provider callbacks (form-encoded) ----

type InboundSMS struct {
	From       string `form:"From"`
	To         string `form:"To"`
	Body       string `form:"Body"`
	MessageSid string `form:"MessageSid"`
	NumMedia   int    `form:"NumMedia"`
}

type InboundCall struct {
	From       string `form:"From"`
	To         string `form:"To"`
	CallSid    string `form:"CallSid"`
	CallStatus string `form:"CallStatus"`
	Direction  string `form:"Direction"`
}

type CallStatusUpdate struct {
	CallSid      string `form:"CallSid"`
	CallStatus   string `form:"CallStatus"`
	From         string `form:"From"`
	To           string `form:"To"`
	CallDuration int    `form:"CallDuration"`
	RecordingURL string `form:"RecordingUrl"`
}

// ---- Outbound webhook payloads ----

type EventType string

const (
	EventSMS        EventType = "sms"
	EventCall       EventType = "call"
	EventCallStatus EventType = "call_status"
)

func (t EventType) String() string { return string(t) }

const (
	ActionIncomingCall  = "incoming_call"
	ActionCallCompleted = "call_completed"
)

type SMSEvent struct {
	Type        EventType `json:"type"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Body        string    `json:"body"`
	MessageSid  string    `json:"messageSid"`
	NumMedia    int       `json:"numMedia"`
	Timestamp   time.Time `json:"timestamp"`
	ForwardedTo string    `json:"forwardedTo"`
}

type CallEvent struct {
	Type        EventType `json:"type"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	CallSid     string    `json:"callSid"`
	CallStatus  string    `json:"callStatus"`
	Direction   string    `json:"direction"`
	Timestamp   time.Time `json:"timestamp"`
	ForwardedTo string    `json:"forwardedTo"`
	Action      string    `json:"action"`
}

type CallStatusEvent struct {
	Type         EventType `json:"type"`
	CallSid      string    `json:"callSid"`
	CallStatus   string    `json:"callStatus"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	CallDuration int       `json:"callDuration"`
	RecordingURL *string   `json:"recordingUrl"` // null when the call was not recorded
	Timestamp    time.Time `json:"timestamp"`
	Action       string    `json:"action"`
}
