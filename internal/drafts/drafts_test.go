package drafts

import (
	"testing"

	"github.com/queelius/clerk/internal/model"
)

type fakeStore struct {
	drafts map[string]model.Draft
	convs  map[string]model.Conversation
}

func newFakeStore() *fakeStore {
	return &fakeStore{drafts: make(map[string]model.Draft), convs: make(map[string]model.Conversation)}
}

func (f *fakeStore) PutDraft(d model.Draft) error {
	f.drafts[d.DraftID] = d
	return nil
}

func (f *fakeStore) GetDraft(draftID string) (*model.Draft, error) {
	d, ok := f.drafts[draftID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (f *fakeStore) ListDrafts(account string) ([]model.Draft, error) {
	var out []model.Draft
	for _, d := range f.drafts {
		if account == "" || d.Account == account {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteDraft(draftID string) (bool, error) {
	_, ok := f.drafts[draftID]
	delete(f.drafts, draftID)
	return ok, nil
}

func (f *fakeStore) GetConversation(idOrPrefix string) (*model.Conversation, error) {
	c, ok := f.convs[idOrPrefix]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func TestCreate(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store, nil)

	d, err := mgr.Create("work", []model.Address{{Addr: "bob@example.com"}}, nil, nil, "hi", "hello bob", nil)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if d.DraftID == "" {
		t.Error("Create() produced empty DraftID")
	}
	if got, _ := store.GetDraft(d.DraftID); got == nil {
		t.Error("draft not persisted")
	}
}

func TestCreateReply_RepliesToSenderOnly(t *testing.T) {
	store := newFakeStore()
	store.convs["conv1"] = model.Conversation{
		Messages: []model.Message{
			{
				MessageID: "m1",
				Subject:   "project update",
				From:      model.Address{Addr: "alice@example.com"},
				To:        []model.Address{{Addr: "work@example.com"}, {Addr: "carol@example.com"}},
			},
		},
	}
	mgr := NewManager(store, map[string]string{"work@example.com": "work@example.com"})

	d, err := mgr.CreateReply("work@example.com", "conv1", false, "thanks", nil)
	if err != nil {
		t.Fatalf("CreateReply() error: %v", err)
	}
	if len(d.To) != 1 || d.To[0].Addr != "alice@example.com" {
		t.Errorf("To = %+v, want just alice", d.To)
	}
	if len(d.Cc) != 0 {
		t.Errorf("Cc = %+v, want empty for non-reply-all", d.Cc)
	}
	if d.Subject != "Re: project update" {
		t.Errorf("Subject = %q", d.Subject)
	}
	if d.InReplyTo != "m1" {
		t.Errorf("InReplyTo = %q, want m1", d.InReplyTo)
	}
	if len(d.References) != 1 || d.References[0] != "m1" {
		t.Errorf("References = %v, want [m1]", d.References)
	}
}

func TestCreateReply_ReplyAllExcludesSelfAndSender(t *testing.T) {
	store := newFakeStore()
	store.convs["conv1"] = model.Conversation{
		Messages: []model.Message{
			{
				MessageID: "m1",
				Subject:   "Re: project update",
				From:      model.Address{Addr: "alice@example.com"},
				To:        []model.Address{{Addr: "work@example.com"}, {Addr: "carol@example.com"}},
				Cc:        []model.Address{{Addr: "dave@example.com"}},
			},
		},
	}
	mgr := NewManager(store, map[string]string{"work@example.com": "work@example.com"})

	d, err := mgr.CreateReply("work@example.com", "conv1", true, "thanks all", nil)
	if err != nil {
		t.Fatalf("CreateReply() error: %v", err)
	}

	if len(d.To) != 1 || d.To[0].Addr != "alice@example.com" {
		t.Errorf("To = %+v, want just alice (sender)", d.To)
	}

	wantCc := map[string]bool{"carol@example.com": true, "dave@example.com": true}
	if len(d.Cc) != 2 {
		t.Fatalf("Cc = %+v, want 2 entries", d.Cc)
	}
	for _, a := range d.Cc {
		if !wantCc[a.Addr] {
			t.Errorf("unexpected Cc entry %q", a.Addr)
		}
	}
	if d.Subject != "Re: project update" {
		t.Errorf("Subject = %q, want no double Re: prefix", d.Subject)
	}
}

func TestCreateReply_MissingConversation(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store, nil)
	if _, err := mgr.CreateReply("work", "nope", false, "hi", nil); err == nil {
		t.Error("CreateReply() = nil error, want not-found for missing conversation")
	}
}

func TestUpdate_NilFieldsLeaveValuesUnchanged(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store, nil)
	created, _ := mgr.Create("work", []model.Address{{Addr: "bob@example.com"}}, nil, nil, "original", "body", nil)

	newSubject := "updated"
	updated, err := mgr.Update(created.DraftID, nil, nil, nil, &newSubject, nil, nil)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Subject != "updated" {
		t.Errorf("Subject = %q, want updated", updated.Subject)
	}
	if updated.BodyText != "body" {
		t.Errorf("BodyText = %q, want unchanged", updated.BodyText)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) && updated.UpdatedAt != created.UpdatedAt {
		t.Error("UpdatedAt should not regress")
	}
}

func TestUpdate_MissingDraft(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store, nil)
	subj := "x"
	if _, err := mgr.Update("nope", nil, nil, nil, &subj, nil, nil); err == nil {
		t.Error("Update() = nil error, want not-found")
	}
}

func TestListAndDelete(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store, nil)
	d1, _ := mgr.Create("work", nil, nil, nil, "a", "a", nil)
	mgr.Create("personal", nil, nil, nil, "b", "b", nil)

	list, err := mgr.List("work")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List(work) = %d drafts, want 1", len(list))
	}

	existed, err := mgr.Delete(d1.DraftID)
	if err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if !existed {
		t.Error("Delete() = false, want true")
	}
	existed, err = mgr.Delete(d1.DraftID)
	if err != nil {
		t.Fatalf("Delete() second call error: %v", err)
	}
	if existed {
		t.Error("Delete() second call = true, want false")
	}
}
