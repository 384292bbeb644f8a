package clerkapi

import (
	"context"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/imapsync"
	"github.com/queelius/clerk/internal/model"
)

// GetCacheStats summarizes the local store's contents.
func (a *API) GetCacheStats() (model.CacheStats, error) {
	stats, err := a.store.GetStats()
	if err != nil {
		return model.CacheStats{}, clerkerr.New(clerkerr.KindStore, "GetCacheStats", err)
	}
	return stats, nil
}

// ClearCache wipes messages, drafts, and cache metadata from the
// store, leaving the send log intact.
func (a *API) ClearCache() error {
	if err := a.store.Clear(); err != nil {
		return clerkerr.New(clerkerr.KindStore, "ClearCache", err)
	}
	return nil
}

// RefreshCache unconditionally refetches folder (with bodies) for
// account, ignoring freshness entirely, and returns the number of
// messages fetched.
func (a *API) RefreshCache(ctx context.Context, account, folder string, limit int) (int, error) {
	account, err := a.resolveAccount(account)
	if err != nil {
		return 0, err
	}
	folder = folderOrDefault(folder)
	if limit <= 0 {
		limit = 200
	}

	sess, err := a.dial(ctx, account)
	if err != nil {
		return 0, err
	}
	messages, err := sess.FetchMessages(account, folder, imapsync.FetchOptions{Limit: limit, FetchBodies: true})
	closeErr := sess.Close()
	if err != nil {
		return 0, clerkerr.New(clerkerr.KindConnection, "RefreshCache", err)
	}
	if closeErr != nil {
		a.logger.Warn("closing imap session", "error", closeErr)
	}

	for _, m := range messages {
		if err := a.store.PutMessage(m); err != nil {
			return 0, clerkerr.New(clerkerr.KindStore, "RefreshCache", err)
		}
	}
	if err := a.store.MarkInboxSynced(account); err != nil {
		return 0, clerkerr.New(clerkerr.KindStore, "RefreshCache", err)
	}

	return len(messages), nil
}

// GetStatus reports, for every configured account, whether clerk can
// currently reach its IMAP server.
func (a *API) GetStatus(ctx context.Context) map[string]StatusEntry {
	out := make(map[string]StatusEntry, len(a.cfg.Accounts))
	for name := range a.cfg.Accounts {
		sess, err := a.dial(ctx, name)
		if err != nil {
			out[name] = StatusEntry{Connected: false, Error: err.Error()}
			continue
		}
		folders, err := sess.ListFolders()
		if cerr := sess.Close(); cerr != nil {
			a.logger.Warn("closing imap session", "error", cerr)
		}
		if err != nil {
			out[name] = StatusEntry{Connected: false, Error: err.Error()}
			continue
		}
		out[name] = StatusEntry{Connected: true, Folders: len(folders)}
	}
	return out
}
