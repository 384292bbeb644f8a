package clerkapi

import (
	"context"

	"github.com/queelius/clerk/internal/model"
)

// CreateDraft composes a brand-new draft with no reply context.
func (a *API) CreateDraft(account string, to, cc, bcc []model.Address, subject, bodyText string, bodyHTML *string) (*model.Draft, error) {
	return a.drafts.Create(account, to, cc, bcc, subject, bodyText, bodyHTML)
}

// CreateReply composes a reply (or reply-all) to an existing
// conversation.
func (a *API) CreateReply(account, convID string, replyAll bool, bodyText string, bodyHTML *string) (*model.Draft, error) {
	return a.drafts.CreateReply(account, convID, replyAll, bodyText, bodyHTML)
}

// GetDraft fetches a draft by id.
func (a *API) GetDraft(draftID string) (*model.Draft, error) {
	return a.drafts.Get(draftID)
}

// ListDrafts lists drafts, optionally filtered by account.
func (a *API) ListDrafts(account string) ([]model.Draft, error) {
	return a.drafts.List(account)
}

// UpdateDraft applies partial field changes to an existing draft.
func (a *API) UpdateDraft(draftID string, to, cc, bcc *[]model.Address, subject, bodyText *string, bodyHTML **string) (*model.Draft, error) {
	return a.drafts.Update(draftID, to, cc, bcc, subject, bodyText, bodyHTML)
}

// DeleteDraft removes a draft, reporting whether it existed.
func (a *API) DeleteDraft(draftID string) (bool, error) {
	return a.drafts.Delete(draftID)
}

// BeginSend starts the two-step confirmation flow for sending a draft.
func (a *API) BeginSend(draftID, account string) (token, preview string, err error) {
	return a.sender.BeginSend(draftID, account)
}

// SendDraft sends a previously confirmed draft, or (with
// skipConfirmation) sends immediately without a confirmation token.
func (a *API) SendDraft(ctx context.Context, draftID, account string, skipConfirmation bool, token string) (model.SendResult, error) {
	return a.sender.SendDraft(ctx, draftID, account, skipConfirmation, token)
}
