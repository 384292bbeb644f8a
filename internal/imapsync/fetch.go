package imapsync

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/model"
)

// FetchMessages lists messages in folder matching opts, newest first,
// parsing headers (and bodies, when opts.FetchBodies is set) into
// model.Message values. Per-message parse failures are logged and
// skipped rather than failing the whole fetch.
func (s *Session) FetchMessages(account, folder string, opts FetchOptions) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.selectFolder(folder); err != nil {
		return nil, err
	}

	criteria := &imap.SearchCriteria{}
	if opts.Unseen {
		criteria.NotFlag = append(criteria.NotFlag, imap.FlagSeen)
	}
	if opts.Since != nil {
		criteria.Since = *opts.Since
	}

	searchCmd := s.client.UIDSearch(criteria, nil)
	searchData, err := searchCmd.Wait()
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindProtocol, "FetchMessages", fmt.Errorf("search %s: %w", folder, err))
	}

	allUIDs := searchData.AllUIDs()
	if len(allUIDs) == 0 {
		return nil, nil
	}

	limit := opts.Limit
	selected := allUIDs
	if limit > 0 && len(allUIDs) > limit {
		selected = allUIDs[len(allUIDs)-limit:]
	}

	uidSet := imap.UIDSet{}
	for _, uid := range selected {
		uidSet.AddNum(uid)
	}

	fetchOpts := &imap.FetchOptions{
		UID:        true,
		Envelope:   true,
		Flags:      true,
		RFC822Size: true,
	}
	var bodySection *imap.FetchItemBodySection
	if opts.FetchBodies {
		bodySection = &imap.FetchItemBodySection{Peek: true}
		fetchOpts.BodySection = []*imap.FetchItemBodySection{bodySection}
	} else {
		fetchOpts.BodySection = []*imap.FetchItemBodySection{{Peek: true, HeaderFields: []string{"References"}}}
	}

	fetchCmd := s.client.Fetch(uidSet, fetchOpts)

	var messages []model.Message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		m, err := s.parseFetchedMessage(msg, account, folder, opts.FetchBodies)
		if err != nil {
			s.logger.Warn("skipping message during fetch", "folder", folder, "error", err)
			continue
		}
		messages = append(messages, m)
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, clerkerr.New(clerkerr.KindProtocol, "FetchMessages", fmt.Errorf("fetch %s: %w", folder, err))
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (s *Session) parseFetchedMessage(msg *imapclient.FetchMessageData, account, folder string, hasBody bool) (model.Message, error) {
	var m model.Message
	m.Account = account
	m.Folder = folder

	var uid uint32
	var rawHeader []byte
	var rawBody []byte

	for {
		item := msg.Next()
		if item == nil {
			break
		}
		switch data := item.(type) {
		case imapclient.FetchItemDataUID:
			uid = uint32(data.UID)
		case imapclient.FetchItemDataFlags:
			for _, f := range data.Flags {
				m.Flags = append(m.Flags, fromIMAPFlag(string(f)))
			}
		case imapclient.FetchItemDataEnvelope:
			if data.Envelope != nil {
				m.Date = data.Envelope.Date.UTC()
				m.Subject = data.Envelope.Subject
				m.MessageID = data.Envelope.MessageID
				m.InReplyTo = data.Envelope.InReplyTo
				if len(data.Envelope.From) > 0 {
					m.From = addressFromIMAP(data.Envelope.From[0])
				}
				for _, a := range data.Envelope.To {
					m.To = append(m.To, addressFromIMAP(a))
				}
				for _, a := range data.Envelope.Cc {
					m.Cc = append(m.Cc, addressFromIMAP(a))
				}
				for _, a := range data.Envelope.ReplyTo {
					m.ReplyTo = append(m.ReplyTo, addressFromIMAP(a))
				}
			}
		case imapclient.FetchItemDataBodySection:
			if data.Literal == nil {
				continue
			}
			buf, _ := io.ReadAll(data.Literal)
			if hasBody {
				rawBody = buf
			} else {
				rawHeader = buf
			}
		}
	}

	if uid == 0 {
		return m, fmt.Errorf("message missing UID")
	}

	if m.MessageID == "" {
		m.MessageID = fmt.Sprintf("<%d@local>", uid)
	}
	m.HeadersFetchedAt = time.Now().UTC()

	headerBytes := rawHeader
	if hasBody {
		headerBytes = rawBody
	}
	if len(headerBytes) > 0 {
		if refs, err := parseReferences(headerBytes); err == nil {
			m.References = refs
		}
	}

	m.ConvID = model.ComputeConvID(model.RootID(m.MessageID, m.InReplyTo, m.References))

	if hasBody && len(rawBody) > 0 {
		bodyText, bodyHTML, attachments, err := parseMIMEBody(rawBody)
		if err == nil {
			m.BodyText = bodyText
			m.BodyHTML = bodyHTML
			m.Attachments = attachments
			now := time.Now().UTC()
			m.BodyFetchedAt = &now
		} else {
			s.logger.Debug("body parse failed", "uid", uid, "error", err)
		}
	}

	return m, nil
}

func addressFromIMAP(a imap.Address) model.Address {
	return model.Address{Addr: a.Addr(), Name: a.Name}
}
