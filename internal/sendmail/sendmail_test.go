package sendmail

import (
	"errors"
	"testing"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/model"
)

type fakeDraftStore struct {
	drafts map[string]model.Draft
}

func newFakeDraftStore() *fakeDraftStore {
	return &fakeDraftStore{drafts: make(map[string]model.Draft)}
}

func (f *fakeDraftStore) Get(draftID string) (*model.Draft, error) {
	d, ok := f.drafts[draftID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (f *fakeDraftStore) Delete(draftID string) (bool, error) {
	_, ok := f.drafts[draftID]
	delete(f.drafts, draftID)
	return ok, nil
}

type fakeSendLogger struct{}

func (fakeSendLogger) LogSend(account string, to, cc, bcc []model.Address, subject, messageID string) error {
	return nil
}

func TestBeginSend_BlocklistedDraftGetsNoToken(t *testing.T) {
	drafts := newFakeDraftStore()
	drafts.drafts["d1"] = model.Draft{
		DraftID: "d1",
		Account: "work",
		To:      []model.Address{{Addr: "spam@example.com"}},
		Subject: "hi",
	}

	accounts := map[string]Account{
		"work": {
			From: model.Address{Addr: "work@example.com"},
			Config: SendConfig{
				RateLimit:          10,
				BlockedRecipients:  []string{"spam@example.com"},
				SMTPHostConfigured: true,
			},
		},
	}
	sender := NewSender(accounts, drafts, fakeSendLogger{})

	token, _, err := sender.BeginSend("d1", "")
	if err == nil {
		t.Fatal("BeginSend() = nil error, want SendBlocked/blocklist")
	}
	var sbe *clerkerr.SendBlockedError
	if !errors.As(err, &sbe) {
		t.Fatalf("error %v is not a *clerkerr.SendBlockedError", err)
	}
	if sbe.Reason != clerkerr.ReasonBlocklist {
		t.Errorf("reason = %q, want %q", sbe.Reason, clerkerr.ReasonBlocklist)
	}
	if token != "" {
		t.Errorf("token = %q, want empty when the gate rejects", token)
	}
}

func TestBeginSend_AllowedDraftGetsToken(t *testing.T) {
	drafts := newFakeDraftStore()
	drafts.drafts["d1"] = model.Draft{
		DraftID: "d1",
		Account: "work",
		To:      []model.Address{{Addr: "bob@example.com"}},
		Subject: "hi",
	}

	accounts := map[string]Account{
		"work": {
			From:   model.Address{Addr: "work@example.com"},
			Config: SendConfig{RateLimit: 10, SMTPHostConfigured: true},
		},
	}
	sender := NewSender(accounts, drafts, fakeSendLogger{})

	token, preview, err := sender.BeginSend("d1", "")
	if err != nil {
		t.Fatalf("BeginSend() error: %v", err)
	}
	if token == "" {
		t.Error("token is empty, want a confirmation token")
	}
	if preview == "" {
		t.Error("preview is empty")
	}
}
