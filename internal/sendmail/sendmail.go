package sendmail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/imapsync"
	"github.com/queelius/clerk/internal/model"
)

// Account bundles everything Sender needs to dispatch mail for one
// configured account.
type Account struct {
	From   model.Address
	SMTP   imapsync.SMTPProvider
	Config SendConfig
}

// DraftStore is the subset of internal/drafts.Manager the send
// pipeline depends on.
type DraftStore interface {
	Get(draftID string) (*model.Draft, error)
	Delete(draftID string) (bool, error)
}

// SendLogger is the subset of internal/store.Store the send pipeline
// depends on.
type SendLogger interface {
	LogSend(account string, to, cc, bcc []model.Address, subject, messageID string) error
}

// Sender is the send pipeline: safety gates, confirmation tokens,
// compose, and dispatch.
type Sender struct {
	accounts map[string]Account
	drafts   DraftStore
	log      SendLogger
	limiter  *RateLimiter
	tokens   *ConfirmationTable
}

// NewSender builds a Sender over the given account configurations.
func NewSender(accounts map[string]Account, drafts DraftStore, log SendLogger) *Sender {
	return &Sender{
		accounts: accounts,
		drafts:   drafts,
		log:      log,
		limiter:  NewRateLimiter(),
		tokens:   NewConfirmationTable(),
	}
}

// FormatPreview renders a human-readable preview of a draft for the
// two-step confirmation flow.
func FormatPreview(draft model.Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\n", joinAddrs(draft.To))
	if len(draft.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", joinAddrs(draft.Cc))
	}
	fmt.Fprintf(&b, "Subject: %s\n\n%s\n", draft.Subject, draft.BodyText)
	return b.String()
}

func joinAddrs(addrs []model.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// BeginSend starts the two-step confirmation flow: it runs the safety
// gate and, on pass, issues a token good for 300 seconds and a preview
// of what will be sent. No token is issued if the gate rejects.
func (s *Sender) BeginSend(draftID, accountName string) (token, preview string, err error) {
	draft, err := s.drafts.Get(draftID)
	if err != nil {
		return "", "", clerkerr.New(clerkerr.KindStore, "sendmail.BeginSend", err)
	}
	if draft == nil {
		return "", "", clerkerr.New(clerkerr.KindNotFound, "sendmail.BeginSend", clerkerr.ErrNotFound)
	}

	if accountName == "" {
		accountName = draft.Account
	}
	account, ok := s.accounts[accountName]
	if !ok {
		return "", "", clerkerr.New(clerkerr.KindInvalidInput, "sendmail.BeginSend", fmt.Errorf("unknown account %q", accountName))
	}

	if err := CheckSendAllowed(*draft, accountName, account.Config, s.limiter); err != nil {
		return "", "", err
	}

	token, err = s.tokens.Begin(draftID)
	if err != nil {
		return "", "", err
	}
	return token, FormatPreview(*draft), nil
}

// SendDraft sends draftID via accountName (or the draft's own account
// when accountName is empty). When skipConfirmation is false, token
// must be a value previously returned by BeginSend for this draft.
func (s *Sender) SendDraft(ctx context.Context, draftID, accountName string, skipConfirmation bool, token string) (model.SendResult, error) {
	draft, err := s.drafts.Get(draftID)
	if err != nil {
		return model.SendResult{}, clerkerr.New(clerkerr.KindStore, "sendmail.SendDraft", err)
	}
	if draft == nil {
		return model.SendResult{}, clerkerr.New(clerkerr.KindNotFound, "sendmail.SendDraft", clerkerr.ErrNotFound)
	}

	if accountName == "" {
		accountName = draft.Account
	}
	account, ok := s.accounts[accountName]
	if !ok {
		return model.SendResult{}, clerkerr.New(clerkerr.KindInvalidInput, "sendmail.SendDraft", fmt.Errorf("unknown account %q", accountName))
	}

	if !skipConfirmation {
		if err := s.tokens.Confirm(draftID, token); err != nil {
			return model.SendResult{}, err
		}
	}

	if err := CheckSendAllowed(*draft, accountName, account.Config, s.limiter); err != nil {
		return model.SendResult{Success: false, Error: err.Error(), Timestamp: time.Now().UTC()}, err
	}

	msg, messageID, err := Compose(account.From, *draft)
	if err != nil {
		return model.SendResult{}, clerkerr.New(clerkerr.KindInvalidInput, "sendmail.SendDraft", err)
	}

	recipients := collectRecipients(draft.To, draft.Cc, draft.Bcc)
	if err := Dispatch(ctx, account.SMTP.SMTPConfig(), account.From.Addr, recipients, msg); err != nil {
		return model.SendResult{Success: false, Error: err.Error(), Timestamp: time.Now().UTC()}, err
	}

	s.limiter.RecordSend(accountName)
	if err := s.log.LogSend(accountName, draft.To, draft.Cc, draft.Bcc, draft.Subject, messageID); err != nil {
		return model.SendResult{}, clerkerr.New(clerkerr.KindStore, "sendmail.SendDraft", err)
	}
	if _, err := s.drafts.Delete(draftID); err != nil {
		return model.SendResult{}, clerkerr.New(clerkerr.KindStore, "sendmail.SendDraft", err)
	}

	return model.SendResult{Success: true, MessageID: messageID, Timestamp: time.Now().UTC()}, nil
}

func collectRecipients(to, cc, bcc []model.Address) []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range [][]model.Address{to, cc, bcc} {
		for _, a := range group {
			key := strings.ToLower(a.Addr)
			if a.Addr != "" && !seen[key] {
				seen[key] = true
				out = append(out, a.Addr)
			}
		}
	}
	return out
}
