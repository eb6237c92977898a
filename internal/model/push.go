package model

// Notification is what the service wants shown on every registered device.
type Notification struct {
	Title string
	Body  string
	Data  map[string]any
}

// PushMessage is one entry of a batched push-service request.
type PushMessage struct {
	To       string         `json:"to"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Sound    string         `json:"sound"`
	Priority string         `json:"priority"`
	Data     map[string]any `json:"data,omitempty"`
}

const (
	TicketStatusOK    = "ok"
	TicketStatusError = "error"

	// ErrDeviceNotRegistered marks a token the push service will never deliver to again.
	ErrDeviceNotRegistered = "DeviceNotRegistered"
)

// PushTicket is the push service's per-message result, aligned with the request by position.
type PushTicket struct {
	Status  string         `json:"status"`
	ID      string         `json:"id,omitempty"`
	Message string         `json:"message,omitempty"`
	Details *TicketDetails `json:"details,omitempty"`
}

type TicketDetails struct {
	Error string `json:"error,omitempty"`
}

// DeviceGone reports whether the ticket is a permanent invalid-destination error.
func (t PushTicket) DeviceGone() bool {
	return t.Status == TicketStatusError && t.Details != nil && t.Details.Error == ErrDeviceNotRegistered
}
