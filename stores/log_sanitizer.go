package stores

import (
	"log"
)

// SanitizeLog repairs a decoded conversation log so the versioning
// invariants hold before anything else touches it:
//
//   - every message has at least one version (index 0 is the original content)
//   - CurrentVersionIndex is a valid index into Versions
//   - top-level Content/Timestamp mirror Versions[CurrentVersionIndex]
//
// Logs written by older clients stored messages without a versions array at
// all; those are upgraded in place to a single-version message. Messages
// with an unknown role are dropped since nothing downstream can render them.
func SanitizeLog(msgs []Message) []Message {
	if len(msgs) == 0 {
		return msgs
	}

	sanitized := make([]Message, 0, len(msgs))
	dropped := 0

	for _, m := range msgs {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			dropped++
			continue
		}

		if len(m.Versions) == 0 {
			// Legacy single-content message: synthesize its version history.
			m.Versions = []Version{{Content: m.Content, Timestamp: m.Timestamp}}
			m.CurrentVersionIndex = 0
		}

		if m.CurrentVersionIndex < 0 || m.CurrentVersionIndex >= len(m.Versions) {
			log.Printf("[LOG_SANITIZER] Message %s has version index %d out of range (have %d versions), clamping to last",
				m.ID, m.CurrentVersionIndex, len(m.Versions))
			m.CurrentVersionIndex = len(m.Versions) - 1
		}

		// Re-mirror the current version onto the top-level fields.
		current := m.Versions[m.CurrentVersionIndex]
		m.Content = current.Content
		m.Timestamp = current.Timestamp

		sanitized = append(sanitized, m)
	}

	if dropped > 0 {
		log.Printf("[LOG_SANITIZER] Dropped %d messages with unknown roles", dropped)
	}

	return sanitized
}
