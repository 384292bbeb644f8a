package clerkapi

import (
	"context"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/model"
)

// mirrorFlag updates msg's cached flags, adding or removing want, and
// writes the result back to the store. A nil msg is a no-op: the
// server-side update already happened, and there's nothing locally to
// mirror into.
func (a *API) mirrorFlag(msg *model.Message, want model.MessageFlag, add bool) error {
	if msg == nil {
		return nil
	}
	flags := msg.Flags
	has := false
	for _, f := range flags {
		if f == want {
			has = true
			break
		}
	}
	if add == has {
		return nil
	}
	if add {
		flags = append(flags, want)
	} else {
		out := make([]model.MessageFlag, 0, len(flags))
		for _, f := range flags {
			if f != want {
				out = append(out, f)
			}
		}
		flags = out
	}
	return a.store.UpdateFlags(msg.MessageID, flags)
}

// applyFlag always performs the IMAP-side flag update (against a
// cached message's folder, or INBOX if the message isn't cached), and
// only mirrors into the store when the message was found cached.
func (a *API) applyFlag(ctx context.Context, messageID, account string, flag model.MessageFlag, add bool) error {
	account, err := a.resolveAccount(account)
	if err != nil {
		return err
	}

	msg, err := a.store.GetMessage(messageID)
	if err != nil {
		return clerkerr.New(clerkerr.KindStore, "applyFlag", err)
	}
	folder := "INBOX"
	if msg != nil {
		folder = msg.Folder
	}

	sess, err := a.dial(ctx, account)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			a.logger.Warn("closing imap session", "error", cerr)
		}
	}()

	flags := []model.MessageFlag{flag}
	if add {
		if err := sess.AddFlags(folder, messageID, flags); err != nil {
			return err
		}
	} else {
		if err := sess.RemoveFlags(folder, messageID, flags); err != nil {
			return err
		}
	}

	return a.mirrorFlag(msg, flag, add)
}

// MarkRead marks a message as read on the server and, if cached,
// mirrors the flag into the store.
func (a *API) MarkRead(ctx context.Context, messageID, account string) error {
	return a.applyFlag(ctx, messageID, account, model.FlagSeen, true)
}

// MarkUnread marks a message as unread on the server and, if cached,
// mirrors the flag into the store.
func (a *API) MarkUnread(ctx context.Context, messageID, account string) error {
	return a.applyFlag(ctx, messageID, account, model.FlagSeen, false)
}

// FlagMessage flags a message on the server and, if cached, mirrors
// the flag into the store.
func (a *API) FlagMessage(ctx context.Context, messageID, account string) error {
	return a.applyFlag(ctx, messageID, account, model.FlagFlagged, true)
}

// UnflagMessage unflags a message on the server and, if cached,
// mirrors the flag into the store.
func (a *API) UnflagMessage(ctx context.Context, messageID, account string) error {
	return a.applyFlag(ctx, messageID, account, model.FlagFlagged, false)
}

// MoveMessage moves a message between folders on the server and
// unconditionally mirrors the new folder into the store, whether or
// not the message was previously cached.
func (a *API) MoveMessage(ctx context.Context, messageID, fromFolder, toFolder, account string) error {
	account, err := a.resolveAccount(account)
	if err != nil {
		return err
	}
	fromFolder = folderOrDefault(fromFolder)

	sess, err := a.dial(ctx, account)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			a.logger.Warn("closing imap session", "error", cerr)
		}
	}()

	if err := sess.MoveMessage(fromFolder, messageID, toFolder); err != nil {
		return err
	}
	if err := a.store.MoveMessage(messageID, toFolder); err != nil {
		return clerkerr.New(clerkerr.KindStore, "MoveMessage", err)
	}
	return nil
}

// ArchiveMessage moves a message into the account's archive folder on
// the server, trying each candidate archive folder name in turn, and
// mirrors the move into the store under the literal name "Archive" —
// matching the original implementation's cache convention regardless
// of which candidate folder actually existed on the server.
func (a *API) ArchiveMessage(ctx context.Context, messageID, account string) error {
	account, err := a.resolveAccount(account)
	if err != nil {
		return err
	}

	msg, err := a.store.GetMessage(messageID)
	if err != nil {
		return clerkerr.New(clerkerr.KindStore, "ArchiveMessage", err)
	}
	folder := "INBOX"
	if msg != nil {
		folder = msg.Folder
	}

	sess, err := a.dial(ctx, account)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			a.logger.Warn("closing imap session", "error", cerr)
		}
	}()

	if err := sess.ArchiveMessage(folder, messageID); err != nil {
		return err
	}
	if err := a.store.MoveMessage(messageID, "Archive"); err != nil {
		return clerkerr.New(clerkerr.KindStore, "ArchiveMessage", err)
	}
	return nil
}
