package moderation

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user1", "@user1"},
		{"@user1", "@user1"},
		{"User1", "@user1"},
		{"@USER1", "@user1"},
		{"  @User1  ", "@user1"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBanList_BanMatchesAllSpellings(t *testing.T) {
	b := NewBanList()
	b.Ban("user1")

	for _, spelling := range []string{"user1", "@user1", "User1", "@USER1"} {
		if !b.IsBanned(spelling) {
			t.Errorf("expected %q to be banned after banning user1", spelling)
		}
	}
	if b.IsBanned("user2") {
		t.Error("user2 should not be banned")
	}
}

func TestBanList_Unban(t *testing.T) {
	b := NewBanList()
	b.Ban("@Alice")
	b.Unban("alice")

	if b.IsBanned("@alice") {
		t.Error("alice should be unbanned")
	}
}

func TestBanList_Idempotent(t *testing.T) {
	b := NewBanList()

	// Unban of a non-member is not an error
	b.Unban("ghost")

	b.Ban("alice")
	b.Ban("@Alice")
	if got := len(b.Snapshot()); got != 1 {
		t.Errorf("duplicate bans should collapse to one entry, got %d", got)
	}
}

func TestBanList_StartsEmpty(t *testing.T) {
	b := NewBanList()
	if got := len(b.Snapshot()); got != 0 {
		t.Errorf("new ban list should be empty, got %d entries", got)
	}
}
