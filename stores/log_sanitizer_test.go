package stores

import (
	"testing"
	"time"
)

func TestSanitizeLog_UpgradesLegacyMessages(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: "m1", Role: RoleUser, Content: "hello", Timestamp: ts},
	}

	out := SanitizeLog(msgs)
	if len(out) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(out))
	}
	m := out[0]
	if len(m.Versions) != 1 {
		t.Fatalf("Expected synthesized version history, got %d versions", len(m.Versions))
	}
	if m.Versions[0].Content != "hello" || !m.Versions[0].Timestamp.Equal(ts) {
		t.Errorf("Synthesized version does not match original content: %+v", m.Versions[0])
	}
	if m.CurrentVersionIndex != 0 {
		t.Errorf("Expected index 0, got %d", m.CurrentVersionIndex)
	}
}

func TestSanitizeLog_ClampsOutOfRangeIndex(t *testing.T) {
	msgs := []Message{
		{
			ID:   "m1",
			Role: RoleAssistant,
			Versions: []Version{
				{Content: "first"},
				{Content: "second"},
			},
			CurrentVersionIndex: 9,
		},
		{
			ID:                  "m2",
			Role:                RoleUser,
			Versions:            []Version{{Content: "only"}},
			CurrentVersionIndex: -3,
		},
	}

	out := SanitizeLog(msgs)
	if out[0].CurrentVersionIndex != 1 {
		t.Errorf("Expected index clamped to 1, got %d", out[0].CurrentVersionIndex)
	}
	if out[0].Content != "second" {
		t.Errorf("Expected content re-mirrored to last version, got %q", out[0].Content)
	}
	if out[1].CurrentVersionIndex != 0 {
		t.Errorf("Expected negative index clamped to 0, got %d", out[1].CurrentVersionIndex)
	}
}

func TestSanitizeLog_ReMirrorsCurrentVersion(t *testing.T) {
	ts := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)
	msgs := []Message{
		{
			ID:      "m1",
			Role:    RoleUser,
			Content: "stale top-level content",
			Versions: []Version{
				{Content: "v0"},
				{Content: "v1", Timestamp: ts},
			},
			CurrentVersionIndex: 1,
		},
	}

	out := SanitizeLog(msgs)
	if out[0].Content != "v1" {
		t.Errorf("Expected content mirrored from current version, got %q", out[0].Content)
	}
	if !out[0].Timestamp.Equal(ts) {
		t.Errorf("Expected timestamp mirrored from current version, got %v", out[0].Timestamp)
	}
}

func TestSanitizeLog_DropsUnknownRoles(t *testing.T) {
	msgs := []Message{
		{ID: "m1", Role: RoleUser, Content: "keep me"},
		{ID: "m2", Role: "system", Content: "drop me"},
		{ID: "m3", Role: RoleAssistant, Content: "keep me too"},
		{ID: "m4", Role: "", Content: "drop me too"},
	}

	out := SanitizeLog(msgs)
	if len(out) != 2 {
		t.Fatalf("Expected 2 messages after sanitizing, got %d", len(out))
	}
	if out[0].ID != "m1" || out[1].ID != "m3" {
		t.Errorf("Expected order preserved for kept messages, got %s, %s", out[0].ID, out[1].ID)
	}
}

func TestSanitizeLog_EmptyLog(t *testing.T) {
	if out := SanitizeLog(nil); len(out) != 0 {
		t.Errorf("Expected empty output for nil input, got %d", len(out))
	}
	if out := SanitizeLog([]Message{}); len(out) != 0 {
		t.Errorf("Expected empty output for empty input, got %d", len(out))
	}
}
