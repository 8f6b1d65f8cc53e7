// Package session mediates between callers, the message store, and the
// remote reply service. A ChatSession owns the authoritative in-memory
// conversation log for one username.
package session

import (
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mindpex/sanctum/memory"
	"github.com/mindpex/sanctum/reply"
	"github.com/mindpex/sanctum/stores"
)

// DefaultPacing is the short artificial delay between the optimistic user
// append and the loading state. It is pacing, not a network wait.
const DefaultPacing = 400 * time.Millisecond

// ChatError is the structured failure state a reply attempt leaves behind.
type ChatError struct {
	Kind    reply.Kind
	Message string // underlying failure detail
	Empathy string // fixed user-facing string for this kind
}

// ChatSession orchestrates send/edit/regenerate cycles for one username.
// Mutating operations are serialized; overlapping calls queue rather than
// racing the whole-log store.
type ChatSession struct {
	Pacing   time.Duration
	Logger   *log.Logger
	OnStream func(text string) // optional, observes the in-flight reply text

	username string // store key, blank mapped to the anonymous owner
	identity string // raw identity sent to the reply service, may be blank
	store    stores.MessageStore
	replyer  reply.Client

	opMu sync.Mutex // serializes send/edit/regenerate/clear cycles

	stateMu   sync.Mutex
	messages  []stores.Message
	streaming string
	loading   bool
	lastErr   *ChatError
}

// NewChatSession creates a session for a username. The username is fixed
// for the session's lifetime; switching identities means a new session.
// A blank username still reads and writes the anonymous log, but any
// reply-service operation fails until a real identity exists.
func NewChatSession(username string, store stores.MessageStore, replyer reply.Client) *ChatSession {
	return &ChatSession{
		Pacing:   DefaultPacing,
		Logger:   log.New(os.Stdout, "[session] ", log.LstdFlags),
		username: stores.Normalize(username),
		identity: strings.TrimSpace(username),
		store:    store,
		replyer:  replyer,
	}
}

// Username returns the identity this session reads and writes under.
func (s *ChatSession) Username() string {
	return s.username
}

// Messages returns a copy of the in-memory conversation log.
func (s *ChatSession) Messages() []stores.Message {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	out := make([]stores.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// StreamingMessage returns the accumulating text of the in-flight reply.
func (s *ChatSession) StreamingMessage() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.streaming
}

// IsLoading reports whether a reply cycle is in flight.
func (s *ChatSession) IsLoading() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.loading
}

// Err returns the failure state of the last reply cycle, if any.
func (s *ChatSession) Err() *ChatError {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastErr
}

// Load pulls the full persisted log into memory and rolls the day's
// session marker. On the first load of a new day, a continuity greeting
// built from recent emotional memories is appended as a welcome turn.
// No reply-service call.
func (s *ChatSession) Load() error {
	msgs, err := s.store.LoadAll(s.username)
	if err != nil {
		s.Logger.Printf("Error loading conversation log: %v", err)
		msgs = []stores.Message{}
	}
	s.stateMu.Lock()
	s.messages = msgs
	s.stateMu.Unlock()

	marker, err := s.store.TodaySession(s.username)
	if err != nil {
		s.Logger.Printf("Error rolling session marker: %v", err)
		return nil
	}
	// A zero count means the marker was just created, so this is the
	// first session of the day.
	if marker.MessageCount == 0 {
		s.greetWithContinuity()
	}
	return nil
}

// greetWithContinuity appends a welcome turn referencing the most recent
// emotional memory, when one is fresh enough to bring up.
func (s *ChatSession) greetWithContinuity() {
	mems, err := s.store.RecentMemories(s.username, stores.MaxEmotionalMemories)
	if err != nil {
		s.Logger.Printf("Error loading emotional memories: %v", err)
		return
	}

	text := memory.ContinuityMessage(memory.RecentWithin(mems, time.Now()))
	if text == "" {
		return
	}

	welcome := stores.NewMessage(stores.RoleAssistant, text)
	welcome.Type = stores.TypeWelcome
	s.appendState(welcome)
	if err := s.store.Append(s.username, welcome); err != nil {
		s.Logger.Printf("Error saving continuity message: %v", err)
	}
}

// SendMessage appends a user turn, asks the reply service for an assistant
// turn, and persists both. Blank input is ignored. On failure the error
// state is set and no assistant turn is appended.
func (s *ChatSession) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.send(ctx, text)
}

// send runs one full send cycle. Callers hold opMu.
func (s *ChatSession) send(ctx context.Context, text string) error {
	s.setError(nil)

	userMsg := stores.NewMessage(stores.RoleUser, text)
	s.appendState(userMsg)
	if err := s.store.Append(s.username, userMsg); err != nil {
		s.Logger.Printf("Error saving user message: %v", err)
	}

	if s.identity == "" {
		err := errNoIdentity()
		s.failWith(err)
		return err
	}

	s.pace(ctx)
	return s.requestReply(ctx, userMsg.Content)
}

// EditMessage rewrites a user turn as a new version, discards everything
// after it, and asks for a fresh reply with the edited turn as sole context.
// An unknown id or a non-user turn is a no-op.
func (s *ChatSession) EditMessage(ctx context.Context, id, newContent string) error {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return nil
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMu.Lock()
	idx := indexOf(s.messages, id)
	if idx < 0 || s.messages[idx].Role != stores.RoleUser {
		s.stateMu.Unlock()
		return nil
	}

	now := time.Now()
	msg := s.messages[idx]
	msg.Versions = append(msg.Versions, stores.Version{Content: newContent, Timestamp: now})
	msg.CurrentVersionIndex = len(msg.Versions) - 1
	msg.Content = newContent
	msg.Timestamp = now
	s.messages[idx] = msg

	// Truncate-on-edit: everything after the edited turn is discarded,
	// prior assistant replies included.
	s.messages = s.messages[:idx+1]
	snapshot := make([]stores.Message, len(s.messages))
	copy(snapshot, s.messages)
	s.stateMu.Unlock()

	if err := s.store.Overwrite(s.username, snapshot); err != nil {
		s.Logger.Printf("Error persisting edited log: %v", err)
	}

	s.setError(nil)
	return s.requestReply(ctx, newContent)
}

// SwitchVersion points a turn at one of its retained versions. It never
// changes how many versions exist and makes no network call.
func (s *ChatSession) SwitchVersion(id string, versionIndex int) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMu.Lock()
	idx := indexOf(s.messages, id)
	if idx < 0 {
		s.stateMu.Unlock()
		return nil
	}
	msg := s.messages[idx]
	if versionIndex < 0 || versionIndex >= len(msg.Versions) {
		s.stateMu.Unlock()
		return nil
	}

	version := msg.Versions[versionIndex]
	msg.CurrentVersionIndex = versionIndex
	msg.Content = version.Content
	msg.Timestamp = version.Timestamp
	s.messages[idx] = msg
	snapshot := make([]stores.Message, len(s.messages))
	copy(snapshot, s.messages)
	s.stateMu.Unlock()

	if err := s.store.Overwrite(s.username, snapshot); err != nil {
		s.Logger.Printf("Error persisting version switch: %v", err)
	}
	return nil
}

// RegenerateMessage asks for a new version of an assistant turn, keyed off
// the user turn immediately before it. The turn keeps its position; the
// reply lands as a new version, not a new message.
func (s *ChatSession) RegenerateMessage(ctx context.Context, id string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMu.Lock()
	idx := indexOf(s.messages, id)
	if idx <= 0 || s.messages[idx].Role != stores.RoleAssistant || s.messages[idx-1].Role != stores.RoleUser {
		s.stateMu.Unlock()
		return nil
	}
	prompt := s.messages[idx-1].Content
	s.stateMu.Unlock()

	s.setError(nil)

	if s.identity == "" {
		err := errNoIdentity()
		s.failWith(err)
		return err
	}

	s.setLoading(true)
	defer s.setLoading(false)

	rep, err := s.replyer.Send(ctx, s.identity, prompt)
	if err != nil {
		s.failWith(err)
		return err
	}

	text := strings.TrimSpace(rep.Text)
	s.setStreaming(text)

	s.stateMu.Lock()
	// Re-locate: the log cannot shrink past idx while opMu is held, but
	// stay defensive about the id.
	idx = indexOf(s.messages, id)
	if idx < 0 {
		s.stateMu.Unlock()
		s.setStreaming("")
		return nil
	}
	now := time.Now()
	msg := s.messages[idx]
	msg.Versions = append(msg.Versions, stores.Version{Content: text, Timestamp: now})
	msg.CurrentVersionIndex = len(msg.Versions) - 1
	msg.Content = text
	msg.Timestamp = now
	s.messages[idx] = msg
	snapshot := make([]stores.Message, len(s.messages))
	copy(snapshot, s.messages)
	s.stateMu.Unlock()

	if err := s.store.Overwrite(s.username, snapshot); err != nil {
		s.Logger.Printf("Error persisting regenerated reply: %v", err)
	}
	s.setStreaming("")
	return nil
}

// ClearMessages empties the session and deletes the persisted log together
// with its session marker.
func (s *ChatSession) ClearMessages() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMu.Lock()
	s.messages = nil
	s.streaming = ""
	s.lastErr = nil
	s.stateMu.Unlock()

	if err := s.store.Clear(s.username); err != nil {
		s.Logger.Printf("Error clearing conversation log: %v", err)
		return err
	}
	return nil
}

// AddLocalMessage appends a caller-supplied turn (mood acknowledgements,
// welcome banners) without any reply-service call.
func (s *ChatSession) AddLocalMessage(msg stores.Message) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if len(msg.Versions) == 0 {
		msg.Versions = []stores.Version{{Content: msg.Content, Timestamp: msg.Timestamp}}
		msg.CurrentVersionIndex = 0
	}

	s.appendState(msg)
	if err := s.store.Append(s.username, msg); err != nil {
		s.Logger.Printf("Error saving local message: %v", err)
		return err
	}
	return nil
}

// RetryLastMessage re-submits the most recent user turn. It is a no-op
// when the log is empty or ends with an assistant turn. The pop and the
// re-send run under the same operation lock, so a concurrent send cannot
// interleave between them.
func (s *ChatSession) RetryLastMessage(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMu.Lock()
	if len(s.messages) == 0 || s.messages[len(s.messages)-1].Role != stores.RoleUser {
		s.stateMu.Unlock()
		return nil
	}
	last := s.messages[len(s.messages)-1]
	s.messages = s.messages[:len(s.messages)-1]
	snapshot := make([]stores.Message, len(s.messages))
	copy(snapshot, s.messages)
	s.stateMu.Unlock()

	if err := s.store.Overwrite(s.username, snapshot); err != nil {
		s.Logger.Printf("Error persisting retry rollback: %v", err)
	}
	return s.send(ctx, last.Content)
}

// requestReply runs the loading/streaming cycle for one utterance and
// appends the assistant turn on success. Callers hold opMu.
func (s *ChatSession) requestReply(ctx context.Context, utterance string) error {
	if s.identity == "" {
		err := errNoIdentity()
		s.failWith(err)
		return err
	}

	s.setLoading(true)
	s.setStreaming("")
	defer s.setLoading(false)

	rep, err := s.replyer.Send(ctx, s.identity, utterance)
	if err != nil {
		s.failWith(err)
		return err
	}

	text := strings.TrimSpace(rep.Text)
	s.setStreaming(text)

	assistant := stores.NewMessage(stores.RoleAssistant, text)
	s.appendState(assistant)
	if err := s.store.Append(s.username, assistant); err != nil {
		s.Logger.Printf("Error saving assistant message: %v", err)
	}

	if mem := memory.Extract(utterance); mem != nil {
		if err := s.store.SaveEmotionalMemory(s.username, *mem); err != nil {
			s.Logger.Printf("Error saving emotional memory: %v", err)
		}
	}

	s.setStreaming("")
	return nil
}

// pace introduces the fixed short delay before loading starts.
func (s *ChatSession) pace(ctx context.Context) {
	if s.Pacing <= 0 {
		return
	}
	select {
	case <-time.After(s.Pacing):
	case <-ctx.Done():
	}
}

func (s *ChatSession) appendState(msg stores.Message) {
	s.stateMu.Lock()
	s.messages = append(s.messages, msg)
	s.stateMu.Unlock()
}

func (s *ChatSession) setLoading(v bool) {
	s.stateMu.Lock()
	s.loading = v
	s.stateMu.Unlock()
}

func (s *ChatSession) setStreaming(text string) {
	s.stateMu.Lock()
	s.streaming = text
	s.stateMu.Unlock()
	if text != "" && s.OnStream != nil {
		s.OnStream(text)
	}
}

func (s *ChatSession) setError(e *ChatError) {
	s.stateMu.Lock()
	s.lastErr = e
	s.stateMu.Unlock()
}

// errNoIdentity is the failure surfaced when a session has no identity to
// speak as. The store side still works; only the reply service is off limits.
func errNoIdentity() *reply.Error {
	return &reply.Error{
		Kind:    reply.KindUnknown,
		Message: "no identity: please re-authenticate",
	}
}

// failWith converts a reply failure into the session's error state.
func (s *ChatSession) failWith(err error) {
	kind := reply.KindOf(err)
	s.Logger.Printf("Reply service error (%s): %v", kind, err)
	s.setError(&ChatError{
		Kind:    kind,
		Message: err.Error(),
		Empathy: EmpathyMessage(kind),
	})
}

func indexOf(msgs []stores.Message, id string) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}
