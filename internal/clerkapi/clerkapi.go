// Package clerkapi is the single façade every caller (CLI, MCP
// server, interactive shell) goes through: it wires the store, IMAP
// transport, draft engine, and send pipeline together behind
// cache-first operations.
package clerkapi

import (
	"context"
	"log/slog"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/config"
	"github.com/queelius/clerk/internal/drafts"
	"github.com/queelius/clerk/internal/imapsync"
	"github.com/queelius/clerk/internal/model"
	"github.com/queelius/clerk/internal/sendmail"
	"github.com/queelius/clerk/internal/store"
)

// Transport is what the façade needs from a configured account: the
// ability to open an IMAP session and to describe its SMTP settings.
// PasswordIMAP and GmailOAuth both satisfy it.
type Transport interface {
	imapsync.Dialer
	imapsync.SMTPProvider
}

// API is the façade. Build one with New and call its methods; it owns
// no background goroutines and opens an IMAP session only for the
// duration of a single operation, per clerk's one-connection-per-
// operation concurrency model.
type API struct {
	cfg        *config.Config
	store      *store.Store
	transports map[string]Transport
	drafts     *drafts.Manager
	sender     *sendmail.Sender
	logger     *slog.Logger
}

// New wires a façade over an already-loaded config, an opened store,
// and one Transport per configured account name. An account with no
// matching Transport entry isn't fatal: its IMAP operations simply
// fail with a Connection error when invoked, and sending through it
// fails with an InvalidInput error (unknown account), which lets tests
// build an API around a store-only subset of accounts.
func New(cfg *config.Config, st *store.Store, transports map[string]Transport, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}

	fromAddrs := make(map[string]string, len(cfg.Accounts))
	for name, accCfg := range cfg.Accounts {
		fromAddrs[name] = accCfg.From.Address
	}
	draftMgr := drafts.NewManager(st, fromAddrs)

	accounts := make(map[string]sendmail.Account, len(cfg.Accounts))
	for name, accCfg := range cfg.Accounts {
		t, ok := transports[name]
		if !ok {
			continue
		}
		smtpCfg := t.SMTPConfig()
		accounts[name] = sendmail.Account{
			From: model.Address{Addr: accCfg.From.Address, Name: accCfg.From.Name},
			SMTP: t,
			Config: sendmail.SendConfig{
				RateLimit:           cfg.Send.RateLimit,
				BlockedRecipients:   cfg.Send.BlockedRecipients,
				RequireConfirmation: cfg.Send.RequireConfirmation,
				SMTPHostConfigured:  smtpCfg.Gmail || smtpCfg.Host != "",
			},
		}
	}

	return &API{
		cfg:        cfg,
		store:      st,
		transports: transports,
		drafts:     draftMgr,
		sender:     sendmail.NewSender(accounts, draftMgr, st),
		logger:     logger,
	}
}

// Store exposes the underlying store so a caller can close it on
// shutdown; the façade owns no other closeable resource.
func (a *API) Store() *store.Store { return a.store }

// resolveAccount returns account if non-empty, else the configured
// default account, erroring if neither names a configured account.
func (a *API) resolveAccount(account string) (string, error) {
	if account == "" {
		account = a.cfg.DefaultAccount
	}
	if account == "" {
		return "", clerkerr.New(clerkerr.KindInvalidInput, "resolveAccount", clerkerr.ErrNotFound)
	}
	if _, ok := a.cfg.Accounts[account]; !ok {
		return "", clerkerr.New(clerkerr.KindInvalidInput, "resolveAccount", clerkerr.ErrNotFound)
	}
	return account, nil
}

// dial opens a fresh IMAP session for account. Callers are responsible
// for closing the session on every exit path, including errors — see
// each operation's use of defer sess.Close().
func (a *API) dial(ctx context.Context, account string) (*imapsync.Session, error) {
	t, ok := a.transports[account]
	if !ok {
		return nil, clerkerr.New(clerkerr.KindConnection, "dial", clerkerr.ErrNotFound)
	}
	return t.Dial(ctx)
}

func folderOrDefault(folder string) string {
	if folder == "" {
		return "INBOX"
	}
	return folder
}
