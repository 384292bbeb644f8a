package threading

import (
	"testing"
	"time"

	"github.com/queelius/clerk/internal/model"
)

func msg(id, inReplyTo, subject string, refs []string, date time.Time) model.Message {
	return model.Message{
		MessageID:  id,
		InReplyTo:  inReplyTo,
		References: refs,
		Subject:    subject,
		Date:       date,
		From:       model.Address{Addr: "a@example.com"},
	}
}

func TestThread_SimpleChain(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	messages := []model.Message{
		msg("m1", "", "hello", nil, base),
		msg("m2", "m1", "Re: hello", []string{"m1"}, base.Add(time.Hour)),
		msg("m3", "m2", "Re: hello", []string{"m1", "m2"}, base.Add(2*time.Hour)),
	}

	convs := Thread(messages)
	if len(convs) != 1 {
		t.Fatalf("Thread() returned %d conversations, want 1", len(convs))
	}
	conv := convs[0]
	if conv.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", conv.MessageCount)
	}
	if conv.Messages[0].MessageID != "m1" || conv.Messages[2].MessageID != "m3" {
		t.Errorf("messages not sorted ascending: %+v", conv.Messages)
	}
	if conv.Subject != "hello" {
		t.Errorf("Subject = %q, want %q", conv.Subject, "hello")
	}
}

func TestThread_UnrelatedMessagesSeparateConversations(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	messages := []model.Message{
		msg("a1", "", "topic a", nil, base),
		msg("b1", "", "topic b", nil, base.Add(time.Hour)),
	}
	convs := Thread(messages)
	if len(convs) != 2 {
		t.Fatalf("Thread() returned %d conversations, want 2", len(convs))
	}
}

func TestThread_SortsConversationsByLatestDateDescending(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	messages := []model.Message{
		msg("old1", "", "old", nil, base),
		msg("new1", "", "new", nil, base.Add(24*time.Hour)),
	}
	convs := Thread(messages)
	if len(convs) != 2 {
		t.Fatalf("Thread() returned %d conversations, want 2", len(convs))
	}
	if convs[0].Subject != "new" {
		t.Errorf("first conversation subject = %q, want %q", convs[0].Subject, "new")
	}
}

func TestThread_SelfReferenceCycleDoesNotHang(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	messages := []model.Message{
		msg("m1", "m1", "loop", []string{"m1"}, base),
	}
	convs := Thread(messages)
	if len(convs) != 1 || convs[0].MessageCount != 1 {
		t.Fatalf("Thread() with self-reference = %+v", convs)
	}
}

func TestNormalizeSubject(t *testing.T) {
	tests := map[string]string{
		"Re: hello":          "hello",
		"Fwd: Re: hello":     "hello",
		"re: fw: RE: hello":  "hello",
		"hello":              "hello",
	}
	for in, want := range tests {
		if got := NormalizeSubject(in); got != want {
			t.Errorf("NormalizeSubject(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGroupBySubject(t *testing.T) {
	messages := []model.Message{
		{Subject: "Re: hello"},
		{Subject: "hello"},
		{Subject: "other"},
	}
	groups := GroupBySubject(messages)
	if len(groups["hello"]) != 2 {
		t.Errorf("groups[hello] = %d messages, want 2", len(groups["hello"]))
	}
	if len(groups["other"]) != 1 {
		t.Errorf("groups[other] = %d messages, want 1", len(groups["other"]))
	}
}
