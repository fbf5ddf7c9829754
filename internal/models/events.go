package models

import "time"

// WebSocket event types pushed to subscribers.
const (
	EventAlertCreated    = "alert.created"
	EventAlertAck        = "alert.ack"
	EventAlertUpdated    = "alert.updated"
	EventLocationUpdated = "location.updated"
)

// Event is the envelope for every server-pushed message.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// AlertEvent is the payload for alert lifecycle events. UpdateType names
// the transition ("acknowledged", "resolved", "cancelled") on
// alert.updated events.
type AlertEvent struct {
	Alert      Alert  `json:"alert"`
	UpdateType string `json:"update_type,omitempty"`
}

// LocationEvent relays a live location ping from a requester to the
// monitor group.
type LocationEvent struct {
	UserID   string   `json:"user_id"`
	Location Location `json:"location"`
}
