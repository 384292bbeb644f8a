package imapsync

import (
	"fmt"

	"github.com/emersion/go-imap/v2"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/model"
)

func (s *Session) storeFlags(folder, messageID string, op imap.StoreFlagsOp, flags []model.MessageFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.selectFolder(folder); err != nil {
		return err
	}
	uid, err := s.resolveUID(messageID)
	if err != nil {
		return clerkerr.New(clerkerr.KindNotFound, "storeFlags", err)
	}

	uidSet := imap.UIDSet{}
	uidSet.AddNum(uid)

	imapFlags := make([]imap.Flag, len(flags))
	for i, f := range flags {
		imapFlags[i] = imap.Flag(toIMAPFlag(f))
	}

	storeCmd := s.client.Store(uidSet, &imap.StoreFlags{Op: op, Silent: true, Flags: imapFlags}, nil)
	if err := storeCmd.Close(); err != nil {
		return clerkerr.New(clerkerr.KindProtocol, "storeFlags", fmt.Errorf("store flags: %w", err))
	}
	return nil
}

// SetFlags replaces the full flag set on a message.
func (s *Session) SetFlags(folder, messageID string, flags []model.MessageFlag) error {
	return s.storeFlags(folder, messageID, imap.StoreFlagsSet, flags)
}

// AddFlags adds flags to a message without disturbing others.
func (s *Session) AddFlags(folder, messageID string, flags []model.MessageFlag) error {
	return s.storeFlags(folder, messageID, imap.StoreFlagsAdd, flags)
}

// RemoveFlags removes flags from a message.
func (s *Session) RemoveFlags(folder, messageID string, flags []model.MessageFlag) error {
	return s.storeFlags(folder, messageID, imap.StoreFlagsDel, flags)
}

// MoveMessage moves a message from folder to destination. Uses the
// IMAP MOVE extension when available, falling back to COPY + \Deleted
// + EXPUNGE.
func (s *Session) MoveMessage(folder, messageID, destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.selectFolder(folder); err != nil {
		return err
	}
	uid, err := s.resolveUID(messageID)
	if err != nil {
		return clerkerr.New(clerkerr.KindNotFound, "MoveMessage", err)
	}

	uidSet := imap.UIDSet{}
	uidSet.AddNum(uid)

	moveCmd := s.client.Move(uidSet, destination)
	if _, err := moveCmd.Wait(); err != nil {
		return clerkerr.New(clerkerr.KindProtocol, "MoveMessage", fmt.Errorf("move to %s: %w", destination, err))
	}
	return nil
}

// ArchiveMessage moves a message into the account's archive folder,
// trying each candidate name in order and using the first that
// exists.
func (s *Session) ArchiveMessage(folder, messageID string) error {
	for _, candidate := range archiveFolderCandidates {
		if err := s.MoveMessage(folder, messageID, candidate); err == nil {
			return nil
		}
	}
	return clerkerr.New(clerkerr.KindNotFound, "ArchiveMessage", fmt.Errorf("no archive folder found among %v", archiveFolderCandidates))
}
