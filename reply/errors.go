package reply

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// Kind is the closed set of failure classifications the adapter can return.
// The controller pattern-matches on Kind instead of scraping error text.
type Kind string

const (
	KindNetwork         Kind = "network"
	KindRateLimit       Kind = "rate_limit"
	KindTimeout         Kind = "timeout"
	KindInvalidResponse Kind = "invalid_response"
	KindUnknown         Kind = "unknown"
)

// Error is a reply-service failure with a structured kind.
type Error struct {
	Kind    Kind
	Message string
	Status  int // HTTP status if one was received, else 0
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf extracts the structured kind from an error, falling back to the
// text heuristic for errors that did not originate here.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ClassifyText(err.Error(), 0)
}

// ClassifyText maps an error message plus optional HTTP status onto a Kind
// by substring inspection. This is the legacy heuristic; errors produced by
// this package carry their Kind directly.
func ClassifyText(msg string, status int) Kind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "network"), strings.Contains(lower, "fetch"):
		return KindNetwork
	case strings.Contains(lower, "rate"), status == http.StatusTooManyRequests:
		return KindRateLimit
	case strings.Contains(lower, "timeout"):
		return KindTimeout
	case strings.Contains(lower, "invalid"):
		return KindInvalidResponse
	default:
		return KindUnknown
	}
}

// transportKind classifies a failed round trip that never produced a response.
func transportKind(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// statusKind classifies a non-2xx response by status code.
func statusKind(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUnknown
	}
}
