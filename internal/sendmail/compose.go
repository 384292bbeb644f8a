package sendmail

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/queelius/clerk/internal/model"
)

// withDomain replaces the domain part of a generated Message-ID with
// the domain of the sending account's FROM address, as spec'd: the
// local part (randomness, timestamp) is whatever the MIME library
// generated, but the domain must identify the sending account.
func withDomain(messageID, fromAddr string) string {
	local := strings.TrimSuffix(strings.TrimPrefix(messageID, "<"), ">")
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}
	domain := fromAddr
	if at := strings.IndexByte(fromAddr, '@'); at >= 0 {
		domain = fromAddr[at+1:]
	}
	if domain == "" {
		domain = "local"
	}
	return "<" + local + "@" + domain + ">"
}

func addrList(addrs []model.Address) []*mail.Address {
	out := make([]*mail.Address, len(addrs))
	for i, a := range addrs {
		out[i] = &mail.Address{Name: a.Name, Address: a.Addr}
	}
	return out
}

// Compose builds a complete RFC 5322 MIME message for draft,
// returning the bytes plus the Message-ID it generated. draft.BodyHTML,
// if nil, is left out — Compose never generates HTML from markdown.
// RenderHTMLFromMarkdown is exported for callers that want an HTML
// body; no clerk package calls it.
func Compose(from model.Address, draft model.Draft) ([]byte, string, error) {
	var buf bytes.Buffer
	var h mail.Header

	h.SetDate(time.Now())
	if err := h.GenerateMessageID(); err != nil {
		return nil, "", fmt.Errorf("generate message-id: %w", err)
	}
	messageID, _ := h.MessageID()
	messageID = withDomain(messageID, from.Addr)
	h.SetMsgIDList("Message-Id", []string{messageID})

	h.SetSubject(draft.Subject)
	h.SetAddressList("From", []*mail.Address{{Name: from.Name, Address: from.Addr}})
	h.SetAddressList("To", addrList(draft.To))
	if len(draft.Cc) > 0 {
		h.SetAddressList("Cc", addrList(draft.Cc))
	}
	if len(draft.Bcc) > 0 {
		h.SetAddressList("Bcc", addrList(draft.Bcc))
	}
	if draft.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{draft.InReplyTo})
	}
	if len(draft.References) > 0 {
		h.SetMsgIDList("References", draft.References)
	}

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, "", fmt.Errorf("create mail writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, "", fmt.Errorf("create inline writer: %w", err)
	}

	var ph mail.InlineHeader
	ph.Set("Content-Type", "text/plain; charset=utf-8")
	pw, err := tw.CreatePart(ph)
	if err != nil {
		return nil, "", fmt.Errorf("create plain text part: %w", err)
	}
	if _, err := io.WriteString(pw, draft.BodyText); err != nil {
		return nil, "", fmt.Errorf("write plain text: %w", err)
	}
	if err := pw.Close(); err != nil {
		return nil, "", fmt.Errorf("close plain text part: %w", err)
	}

	if draft.BodyHTML != nil {
		var hh mail.InlineHeader
		hh.Set("Content-Type", "text/html; charset=utf-8")
		hw, err := tw.CreatePart(hh)
		if err != nil {
			return nil, "", fmt.Errorf("create html part: %w", err)
		}
		if _, err := io.WriteString(hw, *draft.BodyHTML); err != nil {
			return nil, "", fmt.Errorf("write html: %w", err)
		}
		if err := hw.Close(); err != nil {
			return nil, "", fmt.Errorf("close html part: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, "", fmt.Errorf("close inline writer: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close mail writer: %w", err)
	}

	return buf.Bytes(), messageID, nil
}

// RenderHTMLFromMarkdown converts a markdown draft body to an HTML
// fragment, for callers that want to offer the optional
// markdown-body convenience before composing.
func RenderHTMLFromMarkdown(md string) (string, error) {
	return markdownToHTML(md)
}
