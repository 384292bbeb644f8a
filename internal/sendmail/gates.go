package sendmail

import (
	"strings"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/model"
)

// SendConfig is the subset of account/send configuration
// CheckSendAllowed needs. clerkapi.New constructs this from
// internal/config's schema.
type SendConfig struct {
	RateLimit           int
	BlockedRecipients   []string
	RequireConfirmation bool
	SMTPHostConfigured  bool
}

// CheckSendAllowed runs the four ordered safety gates: rate limit,
// blocklist, account match, config sanity. It returns nil when the
// send may proceed, or a *clerkerr.Error wrapping *clerkerr.SendBlockedError
// naming the first gate that failed.
func CheckSendAllowed(draft model.Draft, accountName string, cfg SendConfig, limiter *RateLimiter) error {
	if !limiter.CanSend(accountName, cfg.RateLimit) {
		return clerkerr.NewSendBlocked(clerkerr.ReasonRateLimit, "send rate limit exceeded for account "+accountName)
	}

	if blocked := firstBlockedRecipient(draft, cfg.BlockedRecipients); blocked != "" {
		return clerkerr.NewSendBlocked(clerkerr.ReasonBlocklist, "recipient "+blocked+" is on the blocklist")
	}

	if draft.Account != "" && !strings.EqualFold(draft.Account, accountName) {
		return clerkerr.NewSendBlocked(clerkerr.ReasonAccountMismatch, "draft belongs to account "+draft.Account+", not "+accountName)
	}

	if !cfg.SMTPHostConfigured {
		return clerkerr.NewSendBlocked(clerkerr.ReasonConfigSanity, "no SMTP configuration for account "+accountName)
	}

	return nil
}

func firstBlockedRecipient(draft model.Draft, blocklist []string) string {
	if len(blocklist) == 0 {
		return ""
	}
	blocked := make(map[string]bool, len(blocklist))
	for _, b := range blocklist {
		blocked[strings.ToLower(b)] = true
	}
	for _, group := range [][]model.Address{draft.To, draft.Cc, draft.Bcc} {
		for _, a := range group {
			if blocked[strings.ToLower(a.Addr)] {
				return a.Addr
			}
		}
	}
	return ""
}
