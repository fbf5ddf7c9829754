package hub

import (
	"encoding/json"
	"sync"
	"time"

	"alert-service/internal/logging"
	"alert-service/internal/models"
)

// Hub routes alert-lifecycle events to subscriber groups: the singleton
// monitor group and one group per requester. Membership is process-local
// and ephemeral; a member that disconnects before delivery never receives
// the event. A session belongs to at most one group.
//
// All membership changes and publishes run under one mutex, so events for
// a single alert reach each group in publish order.
type Hub struct {
	logger *logging.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	monitors map[string]*Session
	users    map[string]map[string]*Session
}

func New(logger *logging.Logger) *Hub {
	return &Hub{
		logger:   logger,
		sessions: make(map[string]*Session),
		monitors: make(map[string]*Session),
		users:    make(map[string]map[string]*Session),
	}
}

// JoinMonitor registers a session into the monitor group.
func (h *Hub) JoinMonitor(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s.role = roleMonitor
	h.sessions[s.ID] = s
	h.monitors[s.ID] = s
	h.logger.Infof("Session %s joined monitor group (%d monitors)", s.ID, len(h.monitors))
}

// JoinUser registers a session into the requester's own group.
func (h *Hub) JoinUser(s *Session, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s.role = roleUser
	s.UserID = userID
	h.sessions[s.ID] = s
	if h.users[userID] == nil {
		h.users[userID] = make(map[string]*Session)
	}
	h.users[userID][s.ID] = s
	h.logger.Infof("Session %s joined user group %s", s.ID, userID)
}

// Leave removes a session from its group. Idempotent: unknown sessions
// are a no-op.
func (h *Hub) Leave(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sessionID)
}

func (h *Hub) removeLocked(sessionID string) {
	s, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(h.sessions, sessionID)
	delete(h.monitors, sessionID)
	if s.UserID != "" {
		if group, ok := h.users[s.UserID]; ok {
			delete(group, sessionID)
			if len(group) == 0 {
				delete(h.users, s.UserID)
			}
		}
	}
	s.close()
	h.logger.Infof("Session %s left", sessionID)
}

// PublishNewAlert pushes alert.created to every monitor and an alert.ack
// acknowledgment to the requester's own group.
func (h *Hub) PublishNewAlert(alert models.Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(h.monitors, models.EventAlertCreated, models.AlertEvent{Alert: alert})
	h.broadcastLocked(h.users[alert.RequesterID], models.EventAlertAck, models.AlertEvent{Alert: alert})
}

// PublishStatusChange pushes alert.updated to monitors and the
// status-specific message to the requester's group.
func (h *Hub) PublishStatusChange(alert models.Alert, updateType string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	payload := models.AlertEvent{Alert: alert, UpdateType: updateType}
	h.broadcastLocked(h.monitors, models.EventAlertUpdated, payload)
	h.broadcastLocked(h.users[alert.RequesterID], models.EventAlertUpdated, payload)
}

// PublishLocationUpdate relays a requester's live location ping to the
// monitor group only; other requesters never see it.
func (h *Hub) PublishLocationUpdate(userID string, loc models.Location) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(h.monitors, models.EventLocationUpdated, models.LocationEvent{
		UserID:   userID,
		Location: loc,
	})
}

// MonitorCount returns the current monitor-group size.
func (h *Hub) MonitorCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.monitors)
}

// Close disconnects every session.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.sessions {
		h.removeLocked(id)
	}
}

func (h *Hub) broadcastLocked(group map[string]*Session, eventType string, data interface{}) {
	if len(group) == 0 {
		return
	}
	payload, err := json.Marshal(models.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.logger.Errorf("Failed to marshal %s event: %v", eventType, err)
		return
	}
	for id, s := range group {
		if !s.enqueue(payload) {
			// Slow consumer; drop the session rather than block publishes.
			h.logger.Warnf("Session %s send buffer full, dropping", id)
			h.removeLocked(id)
		}
	}
}
