// Package memory extracts emotional context from user turns so later
// conversations can pick up where earlier ones left off.
package memory

import (
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mindpex/sanctum/stores"
)

// snippetLen bounds how much of the raw message is retained with a memory.
const snippetLen = 100

// RecencyWindow is how far back memories count as recent.
const RecencyWindow = 24 * time.Hour

// Continuity messages only make sense once the memory has had time to
// settle but before it goes stale.
const (
	continuityMinAge = 4 * time.Hour
	continuityMaxAge = 48 * time.Hour
)

// topicRule maps trigger keywords onto a topic and its dominant emotion.
type topicRule struct {
	keywords []string
	topic    string
	emotion  string
}

// Rules are checked in order; the first match wins.
var rules = []topicRule{
	{[]string{"meeting", "presentation"}, "work_meeting", "stress"},
	{[]string{"tired", "exhausted", "drained"}, "burnout", "exhaustion"},
	{[]string{"alone", "isolated", "nobody"}, "isolation", "loneliness"},
	{[]string{"argument", "conflict", "disagree"}, "conflict", "tension"},
	{[]string{"overwhelm", "too much", "overload"}, "overwhelm", "stress"},
}

// Extract returns the emotional memory a user message carries, or nil when
// no known topic is present.
func Extract(message string) *stores.EmotionalMemory {
	lower := strings.ToLower(message)

	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return &stores.EmotionalMemory{
					Topic:          rule.topic,
					Emotion:        rule.emotion,
					Timestamp:      time.Now(),
					MessageSnippet: snippet(message),
				}
			}
		}
	}
	return nil
}

// snippet truncates on a rune boundary so stored text stays valid UTF-8.
func snippet(message string) string {
	if len(message) <= snippetLen {
		return message
	}
	cut := snippetLen
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}

// continuityMessages are per-topic openers for picking a conversation back
// up the next day.
var continuityMessages = map[string][]string{
	"work_meeting": {
		"That meeting sounded heavy yesterday. How are you feeling today?",
		"I've been thinking about that presentation you mentioned. How did it go?",
		"You seemed stressed about that meeting. Is today feeling any lighter?",
	},
	"burnout": {
		"You said you felt drained last time we talked. Did you get some rest?",
		"I remember you were exhausted. How's your energy today?",
		"That tiredness you mentioned yesterday, is it still weighing on you?",
	},
	"isolation": {
		"You felt alone when we last spoke. Has anything shifted?",
		"I remember you saying nobody understood. Are you feeling any more connected now?",
		"That loneliness you shared yesterday, how are you holding up today?",
	},
	"conflict": {
		"That disagreement sounded tough. Has anything resolved?",
		"You mentioned some tension yesterday. How are things now?",
		"I remember that conflict was weighing on you. Any progress?",
	},
	"overwhelm": {
		"You felt overwhelmed last time. Is today any more manageable?",
		"That overload you mentioned, has the pressure eased at all?",
		"I remember everything felt like too much yesterday. How's today?",
	},
}

// RecentWithin filters memories to those recorded inside the recency
// window, preserving order.
func RecentWithin(mems []stores.EmotionalMemory, now time.Time) []stores.EmotionalMemory {
	cutoff := now.Add(-RecencyWindow)
	recent := make([]stores.EmotionalMemory, 0, len(mems))
	for _, m := range mems {
		if m.Timestamp.After(cutoff) {
			recent = append(recent, m)
		}
	}
	return recent
}

// ContinuityMessage picks an opener referencing the most recent memory, or
// "" when no memory is in the age window where bringing it up feels
// natural. Callers pass memories newest first.
func ContinuityMessage(mems []stores.EmotionalMemory) string {
	if len(mems) == 0 {
		return ""
	}

	last := mems[0]
	age := time.Since(last.Timestamp)
	if age < continuityMinAge || age > continuityMaxAge {
		return ""
	}

	openers, ok := continuityMessages[last.Topic]
	if !ok {
		return ""
	}
	return openers[rand.Intn(len(openers))]
}
