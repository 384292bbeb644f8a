package sendmail

import (
	"errors"
	"testing"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/model"
)

func reasonOf(t *testing.T, err error) clerkerr.SendBlockedReason {
	t.Helper()
	var sbe *clerkerr.SendBlockedError
	if !errors.As(err, &sbe) {
		t.Fatalf("error %v is not a *clerkerr.SendBlockedError", err)
	}
	return sbe.Reason
}

func TestCheckSendAllowed_RateLimitGate(t *testing.T) {
	limiter := NewRateLimiter()
	limiter.RecordSend("work")
	cfg := SendConfig{RateLimit: 1, SMTPHostConfigured: true}
	draft := model.Draft{Account: "work", To: []model.Address{{Addr: "bob@example.com"}}}

	err := CheckSendAllowed(draft, "work", cfg, limiter)
	if err == nil {
		t.Fatal("CheckSendAllowed() = nil, want rate-limit error")
	}
	if reason := reasonOf(t, err); reason != clerkerr.ReasonRateLimit {
		t.Errorf("reason = %q, want %q", reason, clerkerr.ReasonRateLimit)
	}
}

func TestCheckSendAllowed_BlocklistGate(t *testing.T) {
	limiter := NewRateLimiter()
	cfg := SendConfig{RateLimit: 10, BlockedRecipients: []string{"eve@example.com"}, SMTPHostConfigured: true}
	draft := model.Draft{Account: "work", To: []model.Address{{Addr: "Eve@Example.com"}}}

	err := CheckSendAllowed(draft, "work", cfg, limiter)
	if err == nil {
		t.Fatal("CheckSendAllowed() = nil, want blocklist error")
	}
	if reason := reasonOf(t, err); reason != clerkerr.ReasonBlocklist {
		t.Errorf("reason = %q, want %q", reason, clerkerr.ReasonBlocklist)
	}
}

func TestCheckSendAllowed_AccountMismatchGate(t *testing.T) {
	limiter := NewRateLimiter()
	cfg := SendConfig{RateLimit: 10, SMTPHostConfigured: true}
	draft := model.Draft{Account: "personal", To: []model.Address{{Addr: "bob@example.com"}}}

	err := CheckSendAllowed(draft, "work", cfg, limiter)
	if err == nil {
		t.Fatal("CheckSendAllowed() = nil, want account-mismatch error")
	}
	if reason := reasonOf(t, err); reason != clerkerr.ReasonAccountMismatch {
		t.Errorf("reason = %q, want %q", reason, clerkerr.ReasonAccountMismatch)
	}
}

func TestCheckSendAllowed_ConfigSanityGate(t *testing.T) {
	limiter := NewRateLimiter()
	cfg := SendConfig{RateLimit: 10, SMTPHostConfigured: false}
	draft := model.Draft{Account: "work", To: []model.Address{{Addr: "bob@example.com"}}}

	err := CheckSendAllowed(draft, "work", cfg, limiter)
	if err == nil {
		t.Fatal("CheckSendAllowed() = nil, want config-sanity error")
	}
	if reason := reasonOf(t, err); reason != clerkerr.ReasonConfigSanity {
		t.Errorf("reason = %q, want %q", reason, clerkerr.ReasonConfigSanity)
	}
}

func TestCheckSendAllowed_AllGatesPass(t *testing.T) {
	limiter := NewRateLimiter()
	cfg := SendConfig{RateLimit: 10, SMTPHostConfigured: true}
	draft := model.Draft{Account: "work", To: []model.Address{{Addr: "bob@example.com"}}}

	if err := CheckSendAllowed(draft, "work", cfg, limiter); err != nil {
		t.Errorf("CheckSendAllowed() = %v, want nil", err)
	}
}

func TestCheckSendAllowed_EmptyDraftAccountSkipsMismatchGate(t *testing.T) {
	limiter := NewRateLimiter()
	cfg := SendConfig{RateLimit: 10, SMTPHostConfigured: true}
	draft := model.Draft{To: []model.Address{{Addr: "bob@example.com"}}}

	if err := CheckSendAllowed(draft, "work", cfg, limiter); err != nil {
		t.Errorf("CheckSendAllowed() = %v, want nil for unset draft account", err)
	}
}
