package clerkapi

import (
	"context"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/imapsync"
	"github.com/queelius/clerk/internal/model"
)

// ListInbox lists conversation summaries for folder (default INBOX),
// serving from the local cache when fresh is false and IsInboxFresh
// holds, and refetching from IMAP otherwise (always when fresh is true).
func (a *API) ListInbox(ctx context.Context, account, folder string, limit int, unreadOnly, fresh bool) (InboxResult, error) {
	account, err := a.resolveAccount(account)
	if err != nil {
		return InboxResult{}, err
	}
	folder = folderOrDefault(folder)
	if limit <= 0 {
		limit = 20
	}

	if !fresh {
		isFresh, err := a.store.IsInboxFresh(account, a.cfg.Cache.InboxFreshnessMin)
		if err != nil {
			return InboxResult{}, clerkerr.New(clerkerr.KindStore, "ListInbox", err)
		}
		if isFresh {
			convs, err := a.store.ListConversations(account, folder, unreadOnly, limit)
			if err != nil {
				return InboxResult{}, clerkerr.New(clerkerr.KindStore, "ListInbox", err)
			}
			return InboxResult{Account: account, Conversations: convs, Count: len(convs), FromCache: true}, nil
		}
	}

	sess, err := a.dial(ctx, account)
	if err != nil {
		return InboxResult{}, err
	}
	messages, err := sess.FetchMessages(account, folder, imapsync.FetchOptions{
		Unseen: unreadOnly,
		Limit:  limit * 3,
	})
	closeErr := sess.Close()
	if err != nil {
		return InboxResult{}, clerkerr.New(clerkerr.KindConnection, "ListInbox", err)
	}
	if closeErr != nil {
		a.logger.Warn("closing imap session", "error", closeErr)
	}

	for _, m := range messages {
		if err := a.store.PutMessage(m); err != nil {
			return InboxResult{}, clerkerr.New(clerkerr.KindStore, "ListInbox", err)
		}
	}
	if err := a.store.MarkInboxSynced(account); err != nil {
		return InboxResult{}, clerkerr.New(clerkerr.KindStore, "ListInbox", err)
	}

	if _, err := a.store.PruneOldMessages(a.cfg.Cache.WindowDays); err != nil {
		a.logger.Warn("prune old messages", "error", err)
	}

	convs, err := a.store.ListConversations(account, folder, unreadOnly, limit)
	if err != nil {
		return InboxResult{}, clerkerr.New(clerkerr.KindStore, "ListInbox", err)
	}
	return InboxResult{Account: account, Conversations: convs, Count: len(convs), FromCache: false}, nil
}

// GetConversation returns a conversation by id or unique prefix. Each
// message with no cached body has its body fetched from IMAP, unless
// fresh is false and IsFresh reports the body fresh. A message whose
// body is already cached is never refetched, even when fresh is true.
func (a *API) GetConversation(ctx context.Context, convID string, fresh bool) (*model.Conversation, error) {
	conv, err := a.store.GetConversation(convID)
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindStore, "GetConversation", err)
	}
	if conv == nil {
		return nil, nil
	}

	sessions := map[string]*imapsync.Session{}
	defer func() {
		for _, s := range sessions {
			if err := s.Close(); err != nil {
				a.logger.Warn("closing imap session", "error", err)
			}
		}
	}()

	for i := range conv.Messages {
		msg := &conv.Messages[i]
		if msg.BodyText != nil {
			continue
		}
		if !fresh {
			isFresh, err := a.store.IsFresh(msg.MessageID, a.cfg.Cache.BodyFreshnessMin, true)
			if err != nil {
				return nil, clerkerr.New(clerkerr.KindStore, "GetConversation", err)
			}
			if isFresh {
				continue
			}
		}

		sess, ok := sessions[msg.Account]
		if !ok {
			sess, err = a.dial(ctx, msg.Account)
			if err != nil {
				return nil, err
			}
			sessions[msg.Account] = sess
		}

		bodyText, bodyHTML, attachments, err := sess.FetchMessageBody(msg.Account, msg.Folder, msg.MessageID)
		if err != nil {
			a.logger.Warn("fetch message body", "message_id", msg.MessageID, "error", err)
			continue
		}
		if err := a.store.UpdateBody(msg.MessageID, bodyText, bodyHTML); err != nil {
			return nil, clerkerr.New(clerkerr.KindStore, "GetConversation", err)
		}
		msg.BodyText = bodyText
		msg.BodyHTML = bodyHTML
		msg.Attachments = attachments
	}

	return conv, nil
}

// GetMessage returns a single cached message. With fresh=false a cached
// body is returned as is, without a staleness check, and a missing body
// is fetched from IMAP unless IsFresh reports it fresh. With fresh=true
// the body is always refetched.
func (a *API) GetMessage(ctx context.Context, messageID string, fresh bool) (*model.Message, error) {
	msg, err := a.store.GetMessage(messageID)
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindStore, "GetMessage", err)
	}
	if msg == nil {
		return nil, nil
	}

	if msg.BodyText != nil && !fresh {
		return msg, nil
	}
	if !fresh {
		isFresh, err := a.store.IsFresh(msg.MessageID, a.cfg.Cache.BodyFreshnessMin, true)
		if err != nil {
			return nil, clerkerr.New(clerkerr.KindStore, "GetMessage", err)
		}
		if isFresh {
			return msg, nil
		}
	}

	sess, err := a.dial(ctx, msg.Account)
	if err != nil {
		return nil, err
	}
	bodyText, bodyHTML, attachments, err := sess.FetchMessageBody(msg.Account, msg.Folder, msg.MessageID)
	closeErr := sess.Close()
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindConnection, "GetMessage", err)
	}
	if closeErr != nil {
		a.logger.Warn("closing imap session", "error", closeErr)
	}

	if err := a.store.UpdateBody(msg.MessageID, bodyText, bodyHTML); err != nil {
		return nil, clerkerr.New(clerkerr.KindStore, "GetMessage", err)
	}
	msg.BodyText = bodyText
	msg.BodyHTML = bodyHTML
	msg.Attachments = attachments
	return msg, nil
}

// ResolveConversationID looks up a conversation by exact id or unique
// prefix. When the prefix matches more than one conversation, Matches
// is populated instead of Conversation so the caller can disambiguate.
func (a *API) ResolveConversationID(ctx context.Context, convID string, fresh bool) (ConversationLookup, error) {
	conv, err := a.GetConversation(ctx, convID, fresh)
	if err != nil {
		return ConversationLookup{}, err
	}
	if conv != nil {
		return ConversationLookup{Conversation: conv}, nil
	}

	matches, err := a.store.FindConversationsByPrefix(convID)
	if err != nil {
		return ConversationLookup{}, clerkerr.New(clerkerr.KindStore, "ResolveConversationID", err)
	}
	if len(matches) > 0 {
		return ConversationLookup{Matches: matches}, nil
	}
	return ConversationLookup{Error: "no conversation matching '" + convID + "'"}, nil
}
