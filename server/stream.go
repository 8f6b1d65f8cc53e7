package server

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mindpex/sanctum/pkg/log"
	"github.com/mindpex/sanctum/stores"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The widget is served from arbitrary origins.
		return true
	},
}

// wsWriter serializes writes to one websocket connection.
type wsWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsWriter) writeJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

type streamInbound struct {
	Message string `json:"message"`
}

// Stream upgrades to a websocket and runs send cycles for inbound
// messages, emitting the reply as word chunks followed by the full turn.
func (h *ChatHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	writer := &wsWriter{conn: conn}
	sess := h.sessionFor(c.Param("username"))

	for {
		var inbound streamInbound
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("WebSocket read error for %s: %v", sess.Username(), err)
			}
			return
		}
		if strings.TrimSpace(inbound.Message) == "" {
			continue
		}

		if err := sess.SendMessage(c.Request.Context(), inbound.Message); err != nil {
			chatErr := sess.Err()
			if chatErr == nil {
				_ = writer.writeJSON(gin.H{"type": "error", "error": "reply service unavailable"})
				continue
			}
			_ = writer.writeJSON(gin.H{
				"type":    "error",
				"kind":    string(chatErr.Kind),
				"empathy": chatErr.Empathy,
			})
			continue
		}

		msgs := sess.Messages()
		if len(msgs) == 0 {
			continue
		}
		last := msgs[len(msgs)-1]
		if last.Role != stores.RoleAssistant {
			continue
		}

		// Emit the reply word by word, then the complete turn.
		for _, word := range strings.Fields(last.Content) {
			if err := writer.writeJSON(gin.H{"type": "chunk", "content": word + " "}); err != nil {
				return
			}
		}
		if err := writer.writeJSON(gin.H{"type": "done", "message": last}); err != nil {
			return
		}
	}
}
