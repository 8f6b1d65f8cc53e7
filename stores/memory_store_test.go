package stores

import (
	"testing"
	"time"
)

func TestMemoryStore_AppendAndLoad(t *testing.T) {
	store := NewMemoryStore()

	m1 := NewMessage(RoleUser, "hello")
	m2 := NewMessage(RoleAssistant, "hi there")
	if err := store.Append("alice", m1); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append("alice", m2); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	msgs, err := store.LoadAll("alice")
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "hello" || msgs[1].Content != "hi there" {
		t.Errorf("Unexpected order or content: %q, %q", msgs[0].Content, msgs[1].Content)
	}

	count, err := store.Count("alice")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}
}

func TestMemoryStore_LoadUnknownUserIsEmpty(t *testing.T) {
	store := NewMemoryStore()
	msgs, err := store.LoadAll("nobody")
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Expected empty log for unknown user, got %d", len(msgs))
	}
}

func TestMemoryStore_UsernameIsolation(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Append("alice", NewMessage(RoleUser, "alice speaking"))
	_ = store.Append("bob", NewMessage(RoleUser, "bob speaking"))

	aliceLog, _ := store.LoadAll("alice")
	if len(aliceLog) != 1 || aliceLog[0].Content != "alice speaking" {
		t.Errorf("Alice's log polluted: %+v", aliceLog)
	}

	_ = store.Clear("alice")
	bobLog, _ := store.LoadAll("bob")
	if len(bobLog) != 1 {
		t.Errorf("Clearing alice must not touch bob, got %d messages", len(bobLog))
	}
}

func TestMemoryStore_UsernameNormalization(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Append("  Alice ", NewMessage(RoleUser, "hello"))

	msgs, _ := store.LoadAll("Alice")
	if len(msgs) != 1 {
		t.Errorf("Expected trimmed usernames to share a log, got %d messages", len(msgs))
	}

	blank, _ := store.LoadAll("")
	anon, _ := store.LoadAll(AnonymousUser)
	if len(blank) != len(anon) {
		t.Error("Blank username must resolve to the anonymous log")
	}
}

func TestMemoryStore_Overwrite(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Append("alice", NewMessage(RoleUser, "one"))
	_ = store.Append("alice", NewMessage(RoleAssistant, "two"))
	_ = store.Append("alice", NewMessage(RoleUser, "three"))

	replacement := []Message{NewMessage(RoleUser, "only")}
	if err := store.Overwrite("alice", replacement); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	msgs, _ := store.LoadAll("alice")
	if len(msgs) != 1 || msgs[0].Content != "only" {
		t.Errorf("Expected replaced log, got %+v", msgs)
	}
}

func TestMemoryStore_ClearRemovesSessionMarker(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Append("alice", NewMessage(RoleUser, "hello"))
	first, err := store.TodaySession("alice")
	if err != nil {
		t.Fatalf("TodaySession failed: %v", err)
	}

	if err := store.Clear("alice"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	count, _ := store.Count("alice")
	if count != 0 {
		t.Errorf("Expected empty log after clear, got %d", count)
	}
	second, err := store.TodaySession("alice")
	if err != nil {
		t.Fatalf("TodaySession failed: %v", err)
	}
	if second.ID == first.ID {
		t.Error("Expected a fresh session marker after clear")
	}
}

func TestMemoryStore_TodaySessionStable(t *testing.T) {
	store := NewMemoryStore()
	first, _ := store.TodaySession("alice")
	second, _ := store.TodaySession("alice")
	if first.ID != second.ID {
		t.Errorf("Expected a stable marker within a day, got %s then %s", first.ID, second.ID)
	}
	if first.Date != time.Now().Format("2006-01-02") {
		t.Errorf("Expected today's date, got %s", first.Date)
	}
}

func TestMemoryStore_PruneSessions(t *testing.T) {
	store := NewMemoryStore()
	_, _ = store.TodaySession("alice")

	// A marker from long ago, planted directly.
	store.mu.Lock()
	store.sessions["bob"] = SessionMarker{ID: "session-old", Date: "2020-01-01"}
	store.mu.Unlock()

	pruned, err := store.PruneSessions(time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("PruneSessions failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("Expected 1 pruned marker, got %d", pruned)
	}

	today, _ := store.TodaySession("alice")
	if today.ID == "" {
		t.Error("Today's marker must survive pruning")
	}
}

func TestMemoryStore_EmotionalMemoryRing(t *testing.T) {
	store := NewMemoryStore()
	for i := 0; i < MaxEmotionalMemories+3; i++ {
		mem := EmotionalMemory{Topic: "burnout", Emotion: "exhaustion", MessageSnippet: string(rune('a' + i)), Timestamp: time.Now()}
		if err := store.SaveEmotionalMemory("alice", mem); err != nil {
			t.Fatalf("SaveEmotionalMemory failed: %v", err)
		}
	}

	mems, err := store.RecentMemories("alice", 0)
	if err != nil {
		t.Fatalf("RecentMemories failed: %v", err)
	}
	if len(mems) != MaxEmotionalMemories {
		t.Fatalf("Expected ring capped at %d, got %d", MaxEmotionalMemories, len(mems))
	}
	// Newest first.
	if mems[0].MessageSnippet != string(rune('a'+MaxEmotionalMemories+2)) {
		t.Errorf("Expected most recent memory first, got %q", mems[0].MessageSnippet)
	}

	two, _ := store.RecentMemories("alice", 2)
	if len(two) != 2 {
		t.Errorf("Expected limit honored, got %d", len(two))
	}
}

func TestMemoryStore_ClosedStoreFails(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Append("alice", NewMessage(RoleUser, "hello"))
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := store.LoadAll("alice"); err == nil {
		t.Error("Expected LoadAll to fail on a closed store")
	}
	if err := store.Append("alice", NewMessage(RoleUser, "again")); err == nil {
		t.Error("Expected Append to fail on a closed store")
	}
	if err := store.Ping(); err == nil {
		t.Error("Expected Ping to fail on a closed store")
	}

	if err := store.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := store.Ping(); err != nil {
		t.Errorf("Expected Ping to succeed after reconnect, got %v", err)
	}
}

func TestNewMessage(t *testing.T) {
	m := NewMessage(RoleUser, "hello")
	if m.ID == "" {
		t.Error("Expected a generated id")
	}
	if len(m.Versions) != 1 {
		t.Fatalf("Expected 1 initial version, got %d", len(m.Versions))
	}
	if m.Versions[0].Content != m.Content {
		t.Error("Initial version must mirror top-level content")
	}
	if m.CurrentVersionIndex != 0 {
		t.Errorf("Expected index 0, got %d", m.CurrentVersionIndex)
	}

	other := NewMessage(RoleUser, "hello")
	if other.ID == m.ID {
		t.Error("Expected distinct ids for distinct messages")
	}
}
