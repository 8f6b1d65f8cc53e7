// Package server assembles the HTTP surface: auth routes plus the chat
// endpoints backed by per-username chat sessions.
package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/mindpex/sanctum/pkg/log"
	"github.com/mindpex/sanctum/reply"
	"github.com/mindpex/sanctum/session"
	"github.com/mindpex/sanctum/stores"
)

// ChatHandler exposes chat sessions over HTTP. One session is kept per
// username so overlapping requests for the same user queue instead of
// racing the whole-log store. Sessions are never evicted; the map grows
// with the number of distinct usernames seen since startup, which is
// acceptable at this service's user counts. Evicting would need a
// safe-point handshake with the session's operation lock.
type ChatHandler struct {
	store   stores.MessageStore
	replyer reply.Client

	mu       sync.Mutex
	sessions map[string]*session.ChatSession
}

// NewChatHandler creates the chat handler layer.
func NewChatHandler(store stores.MessageStore, replyer reply.Client) *ChatHandler {
	return &ChatHandler{
		store:    store,
		replyer:  replyer,
		sessions: make(map[string]*session.ChatSession),
	}
}

// RegisterRoutes mounts the chat endpoints on a router group.
func (h *ChatHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/chat/:username/history", h.History)
	r.POST("/chat/:username/messages", h.Send)
	r.PUT("/chat/:username/messages/:id", h.Edit)
	r.PUT("/chat/:username/messages/:id/version", h.SwitchVersion)
	r.POST("/chat/:username/messages/:id/regenerate", h.Regenerate)
	r.POST("/chat/:username/local", h.AddLocal)
	r.POST("/chat/:username/retry", h.Retry)
	r.DELETE("/chat/:username", h.Clear)
	r.GET("/chat/:username/stream", h.Stream)
}

// sessionFor returns the chat session owning a username's log, creating
// and loading it on first use.
func (h *ChatHandler) sessionFor(username string) *session.ChatSession {
	// The raw username goes to the session so it can tell a real identity
	// from a blank one; only the map key is normalized.
	key := stores.Normalize(username)

	h.mu.Lock()
	defer h.mu.Unlock()
	if sess, ok := h.sessions[key]; ok {
		return sess
	}

	sess := session.NewChatSession(username, h.store, h.replyer)
	if err := sess.Load(); err != nil {
		log.Warnf("Failed to load conversation log for %s: %v", key, err)
	}
	h.sessions[key] = sess
	return sess
}

type sendRequest struct {
	Message string `json:"message"`
}

type editRequest struct {
	Content string `json:"content"`
}

type versionRequest struct {
	Index int `json:"index"`
}

type localRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// History returns the full conversation log for a username.
func (h *ChatHandler) History(c *gin.Context) {
	sess := h.sessionFor(c.Param("username"))
	c.JSON(http.StatusOK, gin.H{"messages": sess.Messages()})
}

// Send runs one send cycle and returns the resulting assistant turn.
func (h *ChatHandler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	sess := h.sessionFor(c.Param("username"))
	if err := sess.SendMessage(c.Request.Context(), req.Message); err != nil {
		h.writeChatError(c, sess)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": sess.Messages()})
}

// Edit rewrites a user turn and returns the reconstructed log.
func (h *ChatHandler) Edit(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	sess := h.sessionFor(c.Param("username"))
	if err := sess.EditMessage(c.Request.Context(), c.Param("id"), req.Content); err != nil {
		h.writeChatError(c, sess)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": sess.Messages()})
}

// SwitchVersion points a turn at one of its retained versions.
func (h *ChatHandler) SwitchVersion(c *gin.Context) {
	var req versionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index is required"})
		return
	}

	sess := h.sessionFor(c.Param("username"))
	if err := sess.SwitchVersion(c.Param("id"), req.Index); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": sess.Messages()})
}

// Regenerate produces a new version of an assistant turn.
func (h *ChatHandler) Regenerate(c *gin.Context) {
	sess := h.sessionFor(c.Param("username"))
	if err := sess.RegenerateMessage(c.Request.Context(), c.Param("id")); err != nil {
		h.writeChatError(c, sess)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": sess.Messages()})
}

// AddLocal appends a synthetic turn without a reply-service call.
func (h *ChatHandler) AddLocal(c *gin.Context) {
	var req localRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	role := req.Role
	if role == "" {
		role = stores.RoleAssistant
	}
	msg := stores.NewMessage(role, req.Content)
	msg.Type = req.Type

	sess := h.sessionFor(c.Param("username"))
	if err := sess.AddLocalMessage(msg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// Retry re-submits the most recent user turn.
func (h *ChatHandler) Retry(c *gin.Context) {
	sess := h.sessionFor(c.Param("username"))
	if err := sess.RetryLastMessage(c.Request.Context()); err != nil {
		h.writeChatError(c, sess)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": sess.Messages()})
}

// Clear deletes the conversation for a username.
func (h *ChatHandler) Clear(c *gin.Context) {
	sess := h.sessionFor(c.Param("username"))
	if err := sess.ClearMessages(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// writeChatError surfaces the session's structured error state. The raw
// failure detail stays server-side; clients get the kind and the fixed
// empathetic string.
func (h *ChatHandler) writeChatError(c *gin.Context, sess *session.ChatSession) {
	chatErr := sess.Err()
	if chatErr == nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "reply service unavailable"})
		return
	}
	log.Warnf("Chat failure for %s (%s): %s", sess.Username(), chatErr.Kind, chatErr.Message)
	c.JSON(http.StatusBadGateway, gin.H{
		"error":   gin.H{"kind": string(chatErr.Kind), "empathy": chatErr.Empathy},
		"success": false,
	})
}
