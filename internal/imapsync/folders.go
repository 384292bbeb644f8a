package imapsync

import (
	"fmt"
	"sort"

	"github.com/emersion/go-imap/v2"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/model"
)

// ListFolders returns every mailbox on the server, sorted by name.
func (s *Session) ListFolders() ([]model.FolderInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listCmd := s.client.List("", "*", nil)
	mailboxes, err := listCmd.Collect()
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindProtocol, "ListFolders", fmt.Errorf("list mailboxes: %w", err))
	}

	var folders []model.FolderInfo
	for _, mbox := range mailboxes {
		f := model.FolderInfo{Name: mbox.Mailbox, Delimiter: string(mbox.Delim)}
		noSelect := false
		for _, attr := range mbox.Attrs {
			f.Flags = append(f.Flags, string(attr))
			if attr == imap.MailboxAttrNoSelect {
				noSelect = true
			}
		}
		if !noSelect {
			if data, err := s.folderStatus(mbox.Mailbox); err == nil {
				f.MessageCount = data.MessageCount
				f.UnreadCount = data.UnreadCount
			}
		}
		folders = append(folders, f)
	}

	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	return folders, nil
}

type folderStatusData struct {
	MessageCount *int
	UnreadCount  *int
}

func (s *Session) folderStatus(name string) (folderStatusData, error) {
	statusCmd := s.client.Status(name, &imap.StatusOptions{NumMessages: true, NumUnseen: true})
	data, err := statusCmd.Wait()
	if err != nil {
		return folderStatusData{}, err
	}
	var out folderStatusData
	if data.NumMessages != nil {
		n := int(*data.NumMessages)
		out.MessageCount = &n
	}
	if data.NumUnseen != nil {
		n := int(*data.NumUnseen)
		out.UnreadCount = &n
	}
	return out, nil
}

// FolderStatus returns the message/unread counts for a single folder.
func (s *Session) FolderStatus(folder string) (model.FolderInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.folderStatus(folder)
	if err != nil {
		return model.FolderInfo{}, clerkerr.New(clerkerr.KindProtocol, "FolderStatus", fmt.Errorf("status %s: %w", folder, err))
	}
	return model.FolderInfo{Name: folder, MessageCount: data.MessageCount, UnreadCount: data.UnreadCount}, nil
}

// UnreadCounts returns per-folder unread counts across every
// selectable mailbox, skipping \Noselect folders, plus the total.
func (s *Session) UnreadCounts(account string) (model.UnreadCounts, error) {
	folders, err := s.ListFolders()
	if err != nil {
		return model.UnreadCounts{}, err
	}

	counts := model.UnreadCounts{Account: account, Folders: map[string]int{}}
	for _, f := range folders {
		if f.UnreadCount == nil {
			continue
		}
		counts.Folders[f.Name] = *f.UnreadCount
		counts.Total += *f.UnreadCount
	}
	return counts, nil
}
