package model

import "testing"

func TestAddress_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Address
		want bool
	}{
		{"same address", Address{Addr: "a@example.com"}, Address{Addr: "a@example.com"}, true},
		{"case insensitive", Address{Addr: "A@Example.com"}, Address{Addr: "a@example.com"}, true},
		{"different name ignored", Address{Addr: "a@example.com", Name: "Alice"}, Address{Addr: "a@example.com"}, true},
		{"different address", Address{Addr: "a@example.com"}, Address{Addr: "b@example.com"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddress_String(t *testing.T) {
	if got := (Address{Addr: "a@example.com"}).String(); got != "a@example.com" {
		t.Errorf("String() = %q", got)
	}
	if got := (Address{Addr: "a@example.com", Name: "Alice"}).String(); got != "Alice <a@example.com>" {
		t.Errorf("String() = %q", got)
	}
}

func TestMessage_IsReadIsFlagged(t *testing.T) {
	m := Message{Flags: []MessageFlag{FlagSeen}}
	if !m.IsRead() {
		t.Error("IsRead() = false, want true")
	}
	if m.IsFlagged() {
		t.Error("IsFlagged() = true, want false")
	}
}

func TestRootID(t *testing.T) {
	tests := []struct {
		name                          string
		messageID, inReplyTo          string
		references                    []string
		want                          string
	}{
		{"uses first reference", "m3", "m2", []string{"m1", "m2"}, "m1"},
		{"falls back to in-reply-to", "m3", "m2", nil, "m2"},
		{"falls back to own id", "m3", "", nil, "m3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RootID(tt.messageID, tt.inReplyTo, tt.references); got != tt.want {
				t.Errorf("RootID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComputeConvID_Deterministic(t *testing.T) {
	a := ComputeConvID("root-1")
	b := ComputeConvID("root-1")
	if a != b {
		t.Errorf("ComputeConvID not deterministic: %q != %q", a, b)
	}
	if len(a) != 12 {
		t.Errorf("ComputeConvID length = %d, want 12", len(a))
	}
	if ComputeConvID("root-2") == a {
		t.Error("different roots produced the same conv_id")
	}
}

func TestConversation_HasUnread(t *testing.T) {
	if (Conversation{UnreadCount: 0}).HasUnread() {
		t.Error("HasUnread() = true, want false")
	}
	if !(Conversation{UnreadCount: 1}).HasUnread() {
		t.Error("HasUnread() = false, want true")
	}
}
