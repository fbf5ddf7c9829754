package models

import (
	"time"

	"github.com/google/uuid"
)

type AlertStatus string

const (
	StatusPending      AlertStatus = "pending"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
	StatusCancelled    AlertStatus = "cancelled"
)

type AlertPriority string

const (
	PriorityLow      AlertPriority = "low"
	PriorityMedium   AlertPriority = "medium"
	PriorityHigh     AlertPriority = "high"
	PriorityCritical AlertPriority = "critical"
)

// Location is a point reported by the requester's device.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Delivery channels and per-attempt outcomes recorded in the report.
const (
	ChannelSMS       = "sms"
	ChannelEmail     = "email"
	ChannelDashboard = "dashboard"
	ChannelTelegram  = "telegram"

	DeliveryPending   = "pending"
	DeliverySucceeded = "succeeded"
	DeliveryFailed    = "failed"

	DeliveryEventAlert    = "alert"
	DeliveryEventResolved = "resolved"
)

// DeliveryEntry is the outcome of one channel-target attempt.
type DeliveryEntry struct {
	Channel string     `json:"channel"`
	Target  string     `json:"target"`
	Event   string     `json:"event"`
	Status  string     `json:"status"`
	Error   string     `json:"error,omitempty"`
	SentAt  *time.Time `json:"sent_at,omitempty"`
}

// DeliveryReport aggregates all attempts for an alert. Append-only: a
// re-fan-out on resolution adds entries, it never rewrites earlier ones.
type DeliveryReport []DeliveryEntry

// Alert is one distress event with its lifecycle status, the emergency
// contacts snapshotted at creation time, and the delivery report attached
// after fan-out settles.
type Alert struct {
	ID              uuid.UUID          `json:"id"`
	RequesterID     string             `json:"requester_id"`
	RequesterName   string             `json:"requester_name,omitempty"`
	Location        Location           `json:"location"`
	Status          AlertStatus        `json:"status"`
	Priority        AlertPriority      `json:"priority"`
	Description     string             `json:"description,omitempty"`
	Contacts        []EmergencyContact `json:"contacts,omitempty"`
	DeliveryReport  DeliveryReport     `json:"delivery_report,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	ResolvedAt      *time.Time         `json:"resolved_at,omitempty"`
	ResolvedBy      string             `json:"resolved_by,omitempty"`
	ResolutionNotes string             `json:"resolution_notes,omitempty"`
}

// AlertCreate is the submission payload from the field client.
type AlertCreate struct {
	RequesterID   string             `json:"requester_id" binding:"required"`
	RequesterName string             `json:"requester_name"`
	Location      Location           `json:"location" binding:"required"`
	Priority      AlertPriority      `json:"priority"`
	Description   string             `json:"description"`
	Contacts      []EmergencyContact `json:"contacts"`
}

// AlertStatusUpdate transitions an alert through its state machine.
type AlertStatusUpdate struct {
	Status AlertStatus `json:"status" binding:"required"`
	Actor  string      `json:"actor"`
	Notes  string      `json:"notes"`
}

var validTransitions = map[AlertStatus][]AlertStatus{
	StatusPending:      {StatusAcknowledged, StatusResolved, StatusCancelled},
	StatusAcknowledged: {StatusResolved, StatusCancelled},
	StatusResolved:     {},
	StatusCancelled:    {},
}

// CanTransition reports whether from -> to is a legal status transition.
// Resolved and cancelled are terminal.
func CanTransition(from, to AlertStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func Terminal(s AlertStatus) bool {
	return len(validTransitions[s]) == 0
}

// ValidStatus reports whether s is one of the four canonical statuses.
func ValidStatus(s AlertStatus) bool {
	_, ok := validTransitions[s]
	return ok
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p AlertPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}
