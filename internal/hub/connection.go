package hub

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"alert-service/internal/logging"
	"alert-service/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientFrame is what a connected client may send upstream. Requester
// connections ping their live location; everything else is ignored.
type clientFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ServeWS upgrades the request and attaches the connection to its group.
// Monitor consoles connect with ?role=monitor; requester apps with
// ?user_id=<id>. A connection belongs to exactly one group.
func ServeWS(h *Hub, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.Query("role")
		userID := c.Query("user_id")
		if role != roleMonitor && userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role=monitor or user_id required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Errorf("WebSocket upgrade failed: %v", err)
			return
		}

		s := NewSession(conn)
		if role == roleMonitor {
			h.JoinMonitor(s)
		} else {
			h.JoinUser(s, userID)
		}

		go writePump(s, logger)
		go readPump(h, s, logger)
	}
}

func readPump(h *Hub, s *Session, logger *logging.Logger) {
	defer func() {
		h.Leave(s.ID)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("Session %s read error: %v", s.ID, err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Debugf("Session %s sent malformed frame: %v", s.ID, err)
			continue
		}

		// Live location pings relay from a requester to monitors only.
		if frame.Type == "location" && s.role == roleUser {
			var loc models.Location
			if err := json.Unmarshal(frame.Data, &loc); err != nil {
				logger.Debugf("Session %s sent malformed location: %v", s.ID, err)
				continue
			}
			h.PublishLocationUpdate(s.UserID, loc)
		}
	}
}

func writePump(s *Session, logger *logging.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debugf("Session %s write error: %v", s.ID, err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
