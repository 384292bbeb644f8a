package sendmail

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"

	"github.com/queelius/clerk/internal/clerkerr"
)

const tokenTTL = 300 * time.Second

type tokenEntry struct {
	token   string
	expires time.Time
}

// ConfirmationTable is an in-memory, process-local, one-time-use
// table of send-confirmation tokens. State is lost on restart by
// design — a restarted process simply requires the caller to begin a
// new confirmation.
type ConfirmationTable struct {
	mu     sync.Mutex
	tokens map[string]tokenEntry
}

// NewConfirmationTable builds an empty confirmation table.
func NewConfirmationTable() *ConfirmationTable {
	return &ConfirmationTable{tokens: make(map[string]tokenEntry)}
}

func (t *ConfirmationTable) purgeExpired(now time.Time) {
	for id, e := range t.tokens {
		if now.After(e.expires) {
			delete(t.tokens, id)
		}
	}
}

// Begin generates a fresh 32-hex-character confirmation token for
// draftID, valid for 300 seconds.
func (t *ConfirmationTable) Begin(draftID string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", clerkerr.New(clerkerr.KindInvalidInput, "sendmail.Begin", err)
	}
	token := hex.EncodeToString(buf)

	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	t.purgeExpired(now)
	t.tokens[draftID] = tokenEntry{token: token, expires: now.Add(tokenTTL)}
	return token, nil
}

// Confirm validates and consumes the token for draftID. The token is
// removed whether or not it matches, so a confirmation attempt can
// only ever succeed once.
func (t *ConfirmationTable) Confirm(draftID, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()
	t.purgeExpired(now)

	entry, ok := t.tokens[draftID]
	if !ok {
		return clerkerr.NewSendBlocked(clerkerr.ReasonMissingToken, "no pending confirmation for draft "+draftID)
	}
	delete(t.tokens, draftID)

	if now.After(entry.expires) {
		return clerkerr.NewSendBlocked(clerkerr.ReasonMissingToken, "confirmation token expired for draft "+draftID)
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(entry.token)) != 1 {
		return clerkerr.NewSendBlocked(clerkerr.ReasonMissingToken, "confirmation token mismatch for draft "+draftID)
	}
	return nil
}
