package clerkapi

import "github.com/queelius/clerk/internal/model"

// InboxResult is the result of ListInbox: a page of conversation
// summaries plus whether they came from the local cache or a fresh
// IMAP fetch.
type InboxResult struct {
	Account       string
	Conversations []model.ConversationSummary
	Count         int
	FromCache     bool
}

// ConversationLookup is the result of ResolveConversationID: exactly
// one of Conversation or Matches is populated, or neither when nothing
// matches the given id/prefix.
type ConversationLookup struct {
	Conversation *model.Conversation
	Matches      []model.ConversationSummary
	Error        string
}

// StatusEntry reports one account's IMAP reachability for GetStatus.
type StatusEntry struct {
	Connected bool
	Folders   int
	Error     string `json:"error,omitempty"`
}
