// Package imapsync provides protocol-polymorphic IMAP access: a
// Session type that owns exactly one connection for the duration of
// one logical operation, built on two Dialer implementations
// (password auth and Gmail XOAUTH2) sharing the same operation set.
package imapsync

import (
	"context"
	"time"

	"github.com/queelius/clerk/internal/model"
)

// Credentials supplies the plain IMAP/SMTP password for an account.
// clerk declares this interface but does not implement it — the
// caller resolves passwords (keyring, password_cmd, password_file)
// and hands clerk a value that satisfies it.
type Credentials interface {
	Password(ctx context.Context) (string, error)
}

// TokenSource supplies a valid OAuth2 access token for Gmail XOAUTH2.
// clerk declares this interface but does not implement the refresh
// flow — the caller is responsible for keeping the token valid.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Dialer opens a new Session. Implementations: PasswordIMAP,
// GmailOAuth.
type Dialer interface {
	Dial(ctx context.Context) (*Session, error)
}

// SMTPConfig is the information internal/sendmail needs to dispatch a
// message for an account, regardless of which Dialer served its IMAP
// side.
type SMTPConfig struct {
	Host        string
	Port        int
	StartTLS    bool
	Username    string
	Gmail       bool
	Creds       Credentials
	TokenSource TokenSource
}

// SMTPProvider is implemented by both Dialer variants so
// internal/sendmail can obtain transport settings without depending
// on imapsync's connection internals.
type SMTPProvider interface {
	SMTPConfig() SMTPConfig
}

// FetchOptions controls FetchMessages' search criteria and result
// size.
type FetchOptions struct {
	Unseen      bool
	Since       *time.Time
	Limit       int
	FetchBodies bool
}

// archiveFolderCandidates is the exact order ArchiveMessage tries,
// preserved verbatim from the source this was ported from: the first
// one that exists on the server wins.
var archiveFolderCandidates = []string{"Archive", "[Gmail]/All Mail", "All Mail", "Archives"}

var standardFlags = map[model.MessageFlag]string{
	model.FlagSeen:     `\Seen`,
	model.FlagAnswered: `\Answered`,
	model.FlagFlagged:  `\Flagged`,
	model.FlagDeleted:  `\Deleted`,
	model.FlagDraft:    `\Draft`,
}

func toIMAPFlag(f model.MessageFlag) string {
	if s, ok := standardFlags[f]; ok {
		return s
	}
	return string(f)
}

func fromIMAPFlag(s string) model.MessageFlag {
	switch s {
	case `\Seen`:
		return model.FlagSeen
	case `\Answered`:
		return model.FlagAnswered
	case `\Flagged`:
		return model.FlagFlagged
	case `\Deleted`:
		return model.FlagDeleted
	case `\Draft`:
		return model.FlagDraft
	default:
		return model.MessageFlag(s)
	}
}
