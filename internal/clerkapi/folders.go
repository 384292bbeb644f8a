package clerkapi

import (
	"context"

	"github.com/queelius/clerk/internal/model"
)

// ListFolders lists every mailbox on the server for account.
func (a *API) ListFolders(ctx context.Context, account string) ([]model.FolderInfo, error) {
	account, err := a.resolveAccount(account)
	if err != nil {
		return nil, err
	}
	sess, err := a.dial(ctx, account)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			a.logger.Warn("closing imap session", "error", cerr)
		}
	}()
	return sess.ListFolders()
}

// GetUnreadCounts reports unread message counts by folder for account.
func (a *API) GetUnreadCounts(ctx context.Context, account string) (model.UnreadCounts, error) {
	account, err := a.resolveAccount(account)
	if err != nil {
		return model.UnreadCounts{}, err
	}
	sess, err := a.dial(ctx, account)
	if err != nil {
		return model.UnreadCounts{}, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			a.logger.Warn("closing imap session", "error", cerr)
		}
	}()
	return sess.UnreadCounts(account)
}
