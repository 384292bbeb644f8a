// Package drafts implements the draft lifecycle: create, reply,
// update, delete, and list, backed by internal/store.
package drafts

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/model"
	"github.com/queelius/clerk/internal/threading"
)

// Store is the subset of internal/store's Store that the draft
// manager depends on.
type Store interface {
	PutDraft(d model.Draft) error
	GetDraft(draftID string) (*model.Draft, error)
	ListDrafts(account string) ([]model.Draft, error)
	DeleteDraft(draftID string) (bool, error)
	GetConversation(idOrPrefix string) (*model.Conversation, error)
}

// Manager is the draft engine.
type Manager struct {
	store     Store
	fromAddrs map[string]string // account name -> configured from address
}

// NewManager builds a draft Manager over the given store. fromAddrs
// maps each configured account name to its from-address, so
// CreateReply can exclude the replying account's own address from a
// reply-all recipient list the same way the send pipeline resolves an
// account's From identity.
func NewManager(store Store, fromAddrs map[string]string) *Manager {
	return &Manager{store: store, fromAddrs: fromAddrs}
}

// newDraftID generates a "draft_" + 16 lowercase hex character id.
func newDraftID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "draft_" + hex.EncodeToString(buf), nil
}

// Create composes a brand-new draft with no reply context.
func (m *Manager) Create(account string, to, cc, bcc []model.Address, subject, bodyText string, bodyHTML *string) (*model.Draft, error) {
	id, err := newDraftID()
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindInvalidInput, "drafts.Create", err)
	}
	now := time.Now().UTC()
	d := model.Draft{
		DraftID:   id,
		Account:   account,
		To:        to,
		Cc:        cc,
		Bcc:       bcc,
		Subject:   subject,
		BodyText:  bodyText,
		BodyHTML:  bodyHTML,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.PutDraft(d); err != nil {
		return nil, clerkerr.New(clerkerr.KindStore, "drafts.Create", err)
	}
	return &d, nil
}

// CreateReply composes a reply to a conversation: it replies to the
// most recent message's sender, optionally to all recipients minus
// the replying account's own address, with a normalized "Re:" subject
// and an appended References chain.
func (m *Manager) CreateReply(account, convID string, replyAll bool, bodyText string, bodyHTML *string) (*model.Draft, error) {
	conv, err := m.store.GetConversation(convID)
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindStore, "drafts.CreateReply", err)
	}
	if conv == nil || len(conv.Messages) == 0 {
		return nil, clerkerr.New(clerkerr.KindNotFound, "drafts.CreateReply", clerkerr.ErrNotFound)
	}

	last := conv.Messages[len(conv.Messages)-1]

	myAddr := strings.ToLower(m.fromAddrs[account])

	// Reply to the sender only; reply-all adds the original to/cc
	// recipients minus the replying account's own address and the
	// sender (already in to).
	to := []model.Address{last.From}
	var cc []model.Address
	if replyAll {
		recipients := append(append([]model.Address{}, last.To...), last.Cc...)
		for _, a := range recipients {
			if strings.ToLower(a.Addr) == myAddr || a.Equal(last.From) {
				continue
			}
			cc = append(cc, a)
		}
	}

	subject := "Re: " + threading.NormalizeSubject(last.Subject)

	refs := append([]string{}, last.References...)
	found := false
	for _, r := range refs {
		if r == last.MessageID {
			found = true
			break
		}
	}
	if !found && last.MessageID != "" {
		refs = append(refs, last.MessageID)
	}

	id, err := newDraftID()
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindInvalidInput, "drafts.CreateReply", err)
	}
	now := time.Now().UTC()
	d := model.Draft{
		DraftID:       id,
		Account:       account,
		To:            to,
		Cc:            cc,
		Subject:       subject,
		BodyText:      bodyText,
		BodyHTML:      bodyHTML,
		ReplyToConvID: convID,
		InReplyTo:     last.MessageID,
		References:    refs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.store.PutDraft(d); err != nil {
		return nil, clerkerr.New(clerkerr.KindStore, "drafts.CreateReply", err)
	}
	return &d, nil
}

// Update applies partial field changes to an existing draft. A nil
// pointer argument leaves the corresponding field unchanged.
func (m *Manager) Update(draftID string, to, cc, bcc *[]model.Address, subject, bodyText *string, bodyHTML **string) (*model.Draft, error) {
	d, err := m.store.GetDraft(draftID)
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindStore, "drafts.Update", err)
	}
	if d == nil {
		return nil, clerkerr.New(clerkerr.KindNotFound, "drafts.Update", clerkerr.ErrNotFound)
	}

	if to != nil {
		d.To = *to
	}
	if cc != nil {
		d.Cc = *cc
	}
	if bcc != nil {
		d.Bcc = *bcc
	}
	if subject != nil {
		d.Subject = *subject
	}
	if bodyText != nil {
		d.BodyText = *bodyText
	}
	if bodyHTML != nil {
		d.BodyHTML = *bodyHTML
	}
	d.UpdatedAt = time.Now().UTC()

	if err := m.store.PutDraft(*d); err != nil {
		return nil, clerkerr.New(clerkerr.KindStore, "drafts.Update", err)
	}
	return d, nil
}

// Get fetches a draft by id.
func (m *Manager) Get(draftID string) (*model.Draft, error) {
	d, err := m.store.GetDraft(draftID)
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindStore, "drafts.Get", err)
	}
	return d, nil
}

// List lists drafts, optionally filtered by account.
func (m *Manager) List(account string) ([]model.Draft, error) {
	ds, err := m.store.ListDrafts(account)
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindStore, "drafts.List", err)
	}
	return ds, nil
}

// Delete removes a draft, reporting whether it existed.
func (m *Manager) Delete(draftID string) (bool, error) {
	existed, err := m.store.DeleteDraft(draftID)
	if err != nil {
		return false, clerkerr.New(clerkerr.KindStore, "drafts.Delete", err)
	}
	return existed, nil
}
