package session

import (
	"github.com/mindpex/sanctum/reply"
)

// empathyMessages are the fixed, tone-consistent strings surfaced for each
// failure kind. The raw error never reaches the person chatting.
var empathyMessages = map[reply.Kind]string{
	reply.KindNetwork:         "I'm having trouble connecting right now. Your feelings are still valid, and I'm here when the connection returns.",
	reply.KindRateLimit:       "I need a moment to catch my breath. Let's pause for just a second.",
	reply.KindInvalidResponse: "I'm struggling to find the right words. Could we try that again?",
	reply.KindTimeout:         "That took longer than expected. I'm still here with you.",
	reply.KindUnknown:         "Something unexpected happened, but I'm still here. Your feelings matter.",
}

// EmpathyMessage returns the fixed user-facing string for a failure kind.
func EmpathyMessage(kind reply.Kind) string {
	if msg, ok := empathyMessages[kind]; ok {
		return msg
	}
	return empathyMessages[reply.KindUnknown]
}
