package sendmail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	gosasl "github.com/emersion/go-sasl"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/imapsync"
)

const smtpDialTimeout = 30 * time.Second

// Dispatch delivers msg over SMTP per cfg, authenticating with a
// password (PlainAuth) or, for Gmail, XOAUTH2 via an access token
// from cfg.TokenSource.
func Dispatch(ctx context.Context, cfg imapsync.SMTPConfig, from string, recipients []string, msg []byte) error {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	dialTimeout := smtpDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < dialTimeout {
			dialTimeout = remaining
		}
	}
	dialer := &net.Dialer{Timeout: dialTimeout}

	var client *smtp.Client
	var err error

	if !cfg.StartTLS {
		tlsCfg := &tls.Config{ServerName: cfg.Host}
		conn, dialErr := tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
		if dialErr != nil {
			return clerkerr.New(clerkerr.KindConnection, "sendmail.Dispatch", fmt.Errorf("dial SMTPS %s: %w", addr, dialErr))
		}
		client, err = smtp.NewClient(conn, cfg.Host)
		if err != nil {
			conn.Close()
			return clerkerr.New(clerkerr.KindConnection, "sendmail.Dispatch", fmt.Errorf("create SMTP client: %w", err))
		}
	} else {
		conn, dialErr := dialer.DialContext(ctx, "tcp", addr)
		if dialErr != nil {
			return clerkerr.New(clerkerr.KindConnection, "sendmail.Dispatch", fmt.Errorf("dial SMTP %s: %w", addr, dialErr))
		}
		client, err = smtp.NewClient(conn, cfg.Host)
		if err != nil {
			conn.Close()
			return clerkerr.New(clerkerr.KindConnection, "sendmail.Dispatch", fmt.Errorf("create SMTP client: %w", err))
		}
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return clerkerr.New(clerkerr.KindProtocol, "sendmail.Dispatch", fmt.Errorf("EHLO: %w", err))
	}

	if cfg.StartTLS {
		tlsCfg := &tls.Config{ServerName: cfg.Host}
		if err := client.StartTLS(tlsCfg); err != nil {
			return clerkerr.New(clerkerr.KindProtocol, "sendmail.Dispatch", fmt.Errorf("STARTTLS: %w", err))
		}
	}

	if cfg.Gmail {
		token, err := cfg.TokenSource.Token(ctx)
		if err != nil {
			return clerkerr.New(clerkerr.KindAuth, "sendmail.Dispatch", err)
		}
		saslClient := gosasl.NewXoauth2Client(cfg.Username, token)
		if err := client.Auth(&xoauth2Adapter{saslClient}); err != nil {
			return clerkerr.New(clerkerr.KindAuth, "sendmail.Dispatch", fmt.Errorf("XOAUTH2: %w", err))
		}
	} else if cfg.Username != "" {
		password, err := cfg.Creds.Password(ctx)
		if err != nil {
			return clerkerr.New(clerkerr.KindAuth, "sendmail.Dispatch", err)
		}
		auth := smtp.PlainAuth("", cfg.Username, password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			return clerkerr.New(clerkerr.KindAuth, "sendmail.Dispatch", fmt.Errorf("AUTH: %w", err))
		}
	}

	if err := client.Mail(from); err != nil {
		return clerkerr.New(clerkerr.KindProtocol, "sendmail.Dispatch", fmt.Errorf("MAIL FROM: %w", err))
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return clerkerr.New(clerkerr.KindProtocol, "sendmail.Dispatch", fmt.Errorf("RCPT TO %s: %w", rcpt, err))
		}
	}

	w, err := client.Data()
	if err != nil {
		return clerkerr.New(clerkerr.KindProtocol, "sendmail.Dispatch", fmt.Errorf("DATA: %w", err))
	}
	if _, err := w.Write(msg); err != nil {
		return clerkerr.New(clerkerr.KindProtocol, "sendmail.Dispatch", fmt.Errorf("write message: %w", err))
	}
	if err := w.Close(); err != nil {
		return clerkerr.New(clerkerr.KindProtocol, "sendmail.Dispatch", fmt.Errorf("close DATA: %w", err))
	}

	return client.Quit()
}

// xoauth2Adapter bridges go-sasl's Client interface to stdlib
// net/smtp's Auth interface, since go-sasl's XOAUTH2 mechanism is the
// teacher's chosen implementation but net/smtp expects its own
// smaller Auth shape.
type xoauth2Adapter struct {
	client gosasl.Client
}

func (a *xoauth2Adapter) Start(server *smtp.ServerInfo) (proto string, toServer []byte, err error) {
	mech, ir, err := a.client.Start()
	return mech, ir, err
}

func (a *xoauth2Adapter) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	_, resp, err := a.client.Next(fromServer)
	return resp, err
}
