package clerkapi

import (
	"context"
	"os"
	"path/filepath"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/model"
)

// ListAttachments lists attachment metadata for a cached message. It
// returns an empty slice, not an error, when the message isn't
// cached.
func (a *API) ListAttachments(messageID string) ([]model.Attachment, error) {
	msg, err := a.store.GetMessage(messageID)
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindStore, "ListAttachments", err)
	}
	if msg == nil {
		return nil, nil
	}
	return msg.Attachments, nil
}

// DownloadAttachment fetches one named attachment's bytes from the
// server and writes them to destination, returning the final path
// written. It dials the message's own stored account rather than any
// account the caller names, since only the account that received the
// message can serve its attachment. Returns NotFound if the message
// isn't cached or carries no attachment by that name.
func (a *API) DownloadAttachment(ctx context.Context, messageID, filename, destination string) (string, error) {
	msg, err := a.store.GetMessage(messageID)
	if err != nil {
		return "", clerkerr.New(clerkerr.KindStore, "DownloadAttachment", err)
	}
	if msg == nil {
		return "", clerkerr.New(clerkerr.KindNotFound, "DownloadAttachment", clerkerr.ErrNotFound)
	}
	found := false
	for _, att := range msg.Attachments {
		if att.Filename == filename {
			found = true
			break
		}
	}
	if !found {
		return "", clerkerr.New(clerkerr.KindNotFound, "DownloadAttachment", clerkerr.ErrNotFound)
	}

	sess, err := a.dial(ctx, msg.Account)
	if err != nil {
		return "", err
	}
	data, _, err := sess.FetchAttachment(msg.Folder, messageID, filename)
	closeErr := sess.Close()
	if err != nil {
		return "", err
	}
	if closeErr != nil {
		a.logger.Warn("closing imap session", "error", closeErr)
	}

	path := destination
	if info, statErr := os.Stat(destination); statErr == nil && info.IsDir() {
		path = filepath.Join(destination, filename)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", clerkerr.New(clerkerr.KindInvalidInput, "DownloadAttachment", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", clerkerr.New(clerkerr.KindInvalidInput, "DownloadAttachment", err)
	}
	return path, nil
}
