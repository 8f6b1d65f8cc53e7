// Package reply adapts one outgoing user utterance into an HTTP call
// against the hosted text-generation endpoint and normalizes the
// heterogeneous response shapes it is known to produce.
package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds one attempt against the reply service.
const DefaultTimeout = 30 * time.Second

// genericFailure is surfaced when neither the server nor the transport
// provided anything usable.
const genericFailure = "reply service request failed"

// Reply is the normalized outcome of one reply-service call.
// Emotion and Turn are passed through unvalidated when present.
type Reply struct {
	Text    string
	Emotion string
	Turn    int
}

// Client produces one assistant reply for the given identity and utterance.
// The remote service keeps its own session context keyed by identity, so
// only the latest utterance crosses the wire.
type Client interface {
	Send(ctx context.Context, identity, text string) (Reply, error)
}

// request is the wire body the reply service expects.
type request struct {
	AnonUserID string `json:"anon_userid"`
	Text       string `json:"text"`
}

// envelope covers every reply field name the service has been seen to use,
// plus the error fields failures carry.
type envelope struct {
	Reply    string `json:"reply"`
	Response string `json:"response"`
	Answer   string `json:"answer"`
	Message  string `json:"message"`
	Text     string `json:"text"`
	Emotion  string `json:"emotion"`
	Turn     int    `json:"turn"`
	Error    string `json:"error"`
	Detail   string `json:"detail"`
}

// text returns the first non-empty reply field, in preference order.
func (e *envelope) text() string {
	for _, candidate := range []string{e.Reply, e.Response, e.Answer, e.Message, e.Text} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// HTTPClient is the bespoke-endpoint Client. A failed call against the
// primary URL is retried exactly once against the fallback URL when one is
// configured and distinct; there is no further retry.
type HTTPClient struct {
	PrimaryURL  string
	FallbackURL string
	HTTP        *http.Client
}

// NewHTTPClient creates a reply client for a primary endpoint with an
// optional fallback endpoint ("" for none).
func NewHTTPClient(primaryURL, fallbackURL string) *HTTPClient {
	return &HTTPClient{
		PrimaryURL:  primaryURL,
		FallbackURL: fallbackURL,
		HTTP:        &http.Client{Timeout: DefaultTimeout},
	}
}

// Send posts {anon_userid, text} to the reply service and normalizes the
// result. It fails before any HTTP when identity is blank.
func (c *HTTPClient) Send(ctx context.Context, identity, text string) (Reply, error) {
	if strings.TrimSpace(identity) == "" {
		return Reply{}, &Error{
			Kind:    KindUnknown,
			Message: "no identity: please re-authenticate",
		}
	}

	reply, err := c.attempt(ctx, c.PrimaryURL, identity, text)
	if err == nil {
		return reply, nil
	}

	if c.FallbackURL != "" && c.FallbackURL != c.PrimaryURL {
		return c.attempt(ctx, c.FallbackURL, identity, text)
	}
	return Reply{}, err
}

// attempt performs one POST against one endpoint.
func (c *HTTPClient) attempt(ctx context.Context, url, identity, text string) (Reply, error) {
	body, err := json.Marshal(request{AnonUserID: identity, Text: text})
	if err != nil {
		return Reply{}, &Error{Kind: KindUnknown, Message: fmt.Sprintf("failed to marshal reply request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Reply{}, &Error{Kind: KindUnknown, Message: fmt.Sprintf("failed to build reply request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return Reply{}, &Error{Kind: transportKind(err), Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, &Error{Kind: KindNetwork, Message: err.Error(), Status: resp.StatusCode}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Reply{}, &Error{
			Kind:    statusKind(resp.StatusCode),
			Message: failureMessage(&env, decodeErr, resp.StatusCode),
			Status:  resp.StatusCode,
		}
	}

	if decodeErr != nil {
		return Reply{}, &Error{
			Kind:    KindInvalidResponse,
			Message: fmt.Sprintf("invalid reply body: %v", decodeErr),
			Status:  resp.StatusCode,
		}
	}

	return Reply{Text: env.text(), Emotion: env.Emotion, Turn: env.Turn}, nil
}

// failureMessage picks the error text in preference order: server-provided
// error/detail field, then transport detail, then a generic fallback.
func failureMessage(env *envelope, decodeErr error, status int) string {
	if env.Error != "" {
		return env.Error
	}
	if env.Detail != "" {
		return env.Detail
	}
	if decodeErr == nil {
		return fmt.Sprintf("%s: status %d", genericFailure, status)
	}
	return genericFailure
}
