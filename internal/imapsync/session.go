package imapsync

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"

	"github.com/queelius/clerk/internal/clerkerr"
)

// Session wraps one authenticated IMAP connection. It is not
// goroutine-safe across concurrent logical operations by design — per
// clerk's concurrency model, one session serves one operation at a
// time, serialized by mu for the duration of that operation.
type Session struct {
	client *imapclient.Client
	logger *slog.Logger
	mu     sync.Mutex
}

func (s *Session) selectFolder(folder string) (*imap.SelectData, error) {
	if folder == "" {
		folder = "INBOX"
	}
	cmd := s.client.Select(folder, nil)
	data, err := cmd.Wait()
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindProtocol, "select", fmt.Errorf("select %s: %w", folder, err))
	}
	return data, nil
}

// Close closes the underlying connection without sending LOGOUT.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// PasswordIMAP dials a plain-password IMAP account.
type PasswordIMAP struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Creds    Credentials

	SMTPHost     string
	SMTPPort     int
	SMTPStartTLS bool

	Logger *slog.Logger
}

func (p *PasswordIMAP) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Dial connects, authenticates with a password obtained from Creds,
// and returns a ready Session.
func (p *PasswordIMAP) Dial(ctx context.Context) (*Session, error) {
	password, err := p.Creds.Password(ctx)
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindAuth, "imapsync.PasswordIMAP.Dial", err)
	}

	addr := net.JoinHostPort(p.Host, fmt.Sprintf("%d", p.Port))
	var opts imapclient.Options
	if p.TLS {
		opts.TLSConfig = &tls.Config{ServerName: p.Host}
	}

	var client *imapclient.Client
	if p.TLS {
		client, err = imapclient.DialTLS(addr, &opts)
	} else {
		client, err = imapclient.DialInsecure(addr, &opts)
	}
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindConnection, "imapsync.PasswordIMAP.Dial", fmt.Errorf("dial %s: %w", addr, err))
	}

	loginCmd := client.Login(p.Username, password)
	if err := loginCmd.Wait(); err != nil {
		_ = client.Close()
		return nil, clerkerr.New(clerkerr.KindAuth, "imapsync.PasswordIMAP.Dial", fmt.Errorf("login as %s: %w", p.Username, err))
	}

	return &Session{client: client, logger: p.logger()}, nil
}

// SMTPConfig returns the transport settings internal/sendmail needs
// to dispatch mail for this account.
func (p *PasswordIMAP) SMTPConfig() SMTPConfig {
	return SMTPConfig{
		Host:     p.SMTPHost,
		Port:     p.SMTPPort,
		StartTLS: p.SMTPStartTLS,
		Username: p.Username,
		Creds:    p.Creds,
	}
}

// GmailOAuth dials Gmail's IMAP endpoint and authenticates via
// XOAUTH2 with an access token obtained from TokenSource.
type GmailOAuth struct {
	Username    string
	TokenSource TokenSource

	SMTPStartTLS bool

	Logger *slog.Logger
}

const (
	gmailIMAPHost = "imap.gmail.com"
	gmailIMAPPort = 993
	gmailSMTPHost = "smtp.gmail.com"
	gmailSMTPPort = 587
)

func (g *GmailOAuth) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// Dial connects to imap.gmail.com:993 over TLS and authenticates via
// SASL XOAUTH2.
func (g *GmailOAuth) Dial(ctx context.Context) (*Session, error) {
	token, err := g.TokenSource.Token(ctx)
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindAuth, "imapsync.GmailOAuth.Dial", err)
	}

	addr := net.JoinHostPort(gmailIMAPHost, fmt.Sprintf("%d", gmailIMAPPort))
	opts := imapclient.Options{TLSConfig: &tls.Config{ServerName: gmailIMAPHost}}
	client, err := imapclient.DialTLS(addr, &opts)
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindConnection, "imapsync.GmailOAuth.Dial", fmt.Errorf("dial %s: %w", addr, err))
	}

	saslClient := sasl.NewXoauth2Client(g.Username, token)
	if err := client.Authenticate(saslClient); err != nil {
		_ = client.Close()
		return nil, clerkerr.New(clerkerr.KindAuth, "imapsync.GmailOAuth.Dial", fmt.Errorf("xoauth2 as %s: %w", g.Username, err))
	}

	return &Session{client: client, logger: g.logger()}, nil
}

// SMTPConfig returns the transport settings internal/sendmail needs
// to dispatch mail for this account: STARTTLS to smtp.gmail.com:587
// with XOAUTH2 using the same TokenSource as IMAP.
func (g *GmailOAuth) SMTPConfig() SMTPConfig {
	return SMTPConfig{
		Host:        gmailSMTPHost,
		Port:        gmailSMTPPort,
		StartTLS:    true,
		Username:    g.Username,
		Gmail:       true,
		TokenSource: g.TokenSource,
	}
}
