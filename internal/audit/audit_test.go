package audit

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLog_RecordAndRecent(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	if err := l.Record(ctx, ActionBan, "moderator", "@troll"); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := l.Record(ctx, ActionDelete, "moderator", "msg-123"); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	entries, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	// Newest first
	if entries[0].Action != ActionDelete || entries[0].Target != "msg-123" {
		t.Errorf("unexpected newest entry: %+v", entries[0])
	}
	if entries[1].Action != ActionBan || entries[1].Target != "@troll" {
		t.Errorf("unexpected oldest entry: %+v", entries[1])
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("created_at should be set")
	}
}

func TestLog_RecentLimit(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := l.Record(ctx, ActionUnban, "moderator", "@user"); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	entries, err := l.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected limit of 3, got %d", len(entries))
	}
}

func TestLog_EmptyTrail(t *testing.T) {
	l := openTestLog(t)

	entries, err := l.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty trail, got %d entries", len(entries))
	}
}
