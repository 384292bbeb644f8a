package imapsync

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/model"
)

// maxBodySize caps how much of a text part is retained; larger bodies
// are truncated with a trailing note rather than buffered whole.
const maxBodySize = 256 * 1024

var syntheticUID = regexp.MustCompile(`^<(\d+)@local>$`)

// parseReferences extracts the References header's message-ids from a
// raw header-only (or full) message buffer.
func parseReferences(raw []byte) ([]string, error) {
	ent, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, err
	}
	if ent == nil {
		return nil, fmt.Errorf("empty entity")
	}
	values := ent.Header.Values("References")
	if len(values) == 0 {
		return nil, nil
	}
	return strings.Fields(strings.Join(values, " ")), nil
}

// parseMIMEBody walks a full raw RFC 5322 message and extracts the
// first text/plain and text/html parts plus attachment metadata.
func parseMIMEBody(raw []byte) (bodyText, bodyHTML *string, attachments []model.Attachment, err error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, nil, nil, fmt.Errorf("create mail reader: %w", err)
	}
	if mr == nil {
		return nil, nil, nil, fmt.Errorf("nil mail reader")
	}

	for {
		part, perr := mr.NextPart()
		if perr == io.EOF {
			break
		}
		if perr != nil && !message.IsUnknownCharset(perr) {
			return bodyText, bodyHTML, attachments, fmt.Errorf("next part: %w", perr)
		}
		if part == nil {
			continue
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			switch {
			case ct == "text/plain" && bodyText == nil:
				text := readTruncated(part.Body)
				bodyText = &text
			case ct == "text/html" && bodyHTML == nil:
				text := readTruncated(part.Body)
				bodyHTML = &text
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			ct, _, _ := h.ContentType()
			body, _ := io.ReadAll(part.Body)
			attachments = append(attachments, model.Attachment{
				Filename:    filename,
				Size:        int64(len(body)),
				ContentType: ct,
			})
		}
	}

	return bodyText, bodyHTML, attachments, nil
}

func readTruncated(r io.Reader) string {
	buf, _ := io.ReadAll(io.LimitReader(r, maxBodySize+1))
	text := string(buf)
	if len(buf) > maxBodySize {
		text = text[:maxBodySize] + "\n\n[truncated]"
	}
	return strings.TrimSpace(text)
}

// resolveUID finds the UID for a message id: either the synthetic
// "<uid@local>" form (parsed directly) or a real Message-ID (resolved
// via a UID SEARCH HEADER Message-ID lookup), exactly as the system
// this was ported from does.
func (s *Session) resolveUID(messageID string) (imap.UID, error) {
	if m := syntheticUID.FindStringSubmatch(messageID); m != nil {
		var uid uint32
		fmt.Sscanf(m[1], "%d", &uid)
		return imap.UID(uid), nil
	}

	criteria := &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{{Key: "Message-Id", Value: messageID}},
	}
	searchCmd := s.client.UIDSearch(criteria, nil)
	data, err := searchCmd.Wait()
	if err != nil {
		return 0, fmt.Errorf("search message-id %s: %w", messageID, err)
	}
	uids := data.AllUIDs()
	if len(uids) == 0 {
		return 0, clerkerr.New(clerkerr.KindNotFound, "resolveUID", clerkerr.ErrNotFound)
	}
	return uids[len(uids)-1], nil
}

// FetchMessageBody fetches and parses the full body of a single
// message, identified by folder + message id (synthetic or real).
func (s *Session) FetchMessageBody(account, folder, messageID string) (*string, *string, []model.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.selectFolder(folder); err != nil {
		return nil, nil, nil, err
	}

	uid, err := s.resolveUID(messageID)
	if err != nil {
		return nil, nil, nil, clerkerr.New(clerkerr.KindNotFound, "FetchMessageBody", err)
	}

	uidSet := imap.UIDSet{}
	uidSet.AddNum(uid)
	fetchOpts := &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{{Peek: true}},
	}
	fetchCmd := s.client.Fetch(uidSet, fetchOpts)

	var raw []byte
	msg := fetchCmd.Next()
	if msg != nil {
		for {
			item := msg.Next()
			if item == nil {
				break
			}
			if data, ok := item.(imapclient.FetchItemDataBodySection); ok && data.Literal != nil {
				raw, _ = io.ReadAll(data.Literal)
			}
		}
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, nil, nil, clerkerr.New(clerkerr.KindProtocol, "FetchMessageBody", err)
	}
	if raw == nil {
		return nil, nil, nil, clerkerr.New(clerkerr.KindNotFound, "FetchMessageBody", clerkerr.ErrNotFound)
	}

	bodyText, bodyHTML, attachments, err := parseMIMEBody(raw)
	if err != nil {
		return nil, nil, nil, clerkerr.New(clerkerr.KindProtocol, "FetchMessageBody", err)
	}
	return bodyText, bodyHTML, attachments, nil
}

// FetchAttachment fetches a single named attachment's bytes from a
// message. Bytes are returned directly and never persisted by
// imapsync itself.
func (s *Session) FetchAttachment(folder, messageID, filename string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.selectFolder(folder); err != nil {
		return nil, "", err
	}

	uid, err := s.resolveUID(messageID)
	if err != nil {
		return nil, "", clerkerr.New(clerkerr.KindNotFound, "FetchAttachment", err)
	}

	uidSet := imap.UIDSet{}
	uidSet.AddNum(uid)
	fetchOpts := &imap.FetchOptions{BodySection: []*imap.FetchItemBodySection{{Peek: true}}}
	fetchCmd := s.client.Fetch(uidSet, fetchOpts)

	var raw []byte
	msg := fetchCmd.Next()
	if msg != nil {
		for {
			item := msg.Next()
			if item == nil {
				break
			}
			if data, ok := item.(imapclient.FetchItemDataBodySection); ok && data.Literal != nil {
				raw, _ = io.ReadAll(data.Literal)
			}
		}
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, "", clerkerr.New(clerkerr.KindProtocol, "FetchAttachment", err)
	}
	if raw == nil {
		return nil, "", clerkerr.New(clerkerr.KindNotFound, "FetchAttachment", clerkerr.ErrNotFound)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, "", clerkerr.New(clerkerr.KindProtocol, "FetchAttachment", err)
	}
	for {
		part, perr := mr.NextPart()
		if perr == io.EOF {
			break
		}
		if perr != nil && !message.IsUnknownCharset(perr) {
			return nil, "", clerkerr.New(clerkerr.KindProtocol, "FetchAttachment", perr)
		}
		if part == nil {
			continue
		}
		h, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		name, _ := h.Filename()
		if name != filename {
			continue
		}
		ct, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, "", clerkerr.New(clerkerr.KindProtocol, "FetchAttachment", err)
		}
		return body, ct, nil
	}

	return nil, "", clerkerr.New(clerkerr.KindNotFound, "FetchAttachment", clerkerr.ErrNotFound)
}
