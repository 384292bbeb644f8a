package clerkapi

import (
	"context"
	"testing"
	"time"

	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/config"
	"github.com/queelius/clerk/internal/model"
	"github.com/queelius/clerk/internal/store"
)

func newTestAPI(t *testing.T) (*API, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		DefaultAccount: "work",
		Accounts: map[string]config.AccountConfig{
			"work": {From: config.FromAddress{Address: "work@example.com"}},
		},
		Cache: config.CacheConfig{WindowDays: 30, InboxFreshnessMin: 5, BodyFreshnessMin: 5},
		Send:  config.SendConfig{RateLimit: 10},
	}

	api := New(cfg, st, map[string]Transport{}, nil)
	return api, st
}

func TestListInbox_ServesFromCacheWhenFresh(t *testing.T) {
	api, st := newTestAPI(t)
	now := time.Now().UTC()
	msg := model.Message{
		MessageID:        "m1",
		ConvID:           "conv1",
		Folder:           "INBOX",
		Account:          "work",
		From:             model.Address{Addr: "alice@example.com"},
		Subject:          "hi",
		Date:             now,
		HeadersFetchedAt: now,
	}
	if err := st.PutMessage(msg); err != nil {
		t.Fatal(err)
	}
	if err := st.MarkInboxSynced("work"); err != nil {
		t.Fatal(err)
	}

	result, err := api.ListInbox(context.Background(), "work", "", 10, false, false)
	if err != nil {
		t.Fatalf("ListInbox() error: %v", err)
	}
	if !result.FromCache {
		t.Error("ListInbox() FromCache = false, want true")
	}
	if result.Count != 1 {
		t.Errorf("Count = %d, want 1", result.Count)
	}
}

func TestListInbox_DialsWhenStale(t *testing.T) {
	api, _ := newTestAPI(t)
	_, err := api.ListInbox(context.Background(), "work", "", 10, false, false)
	if err == nil {
		t.Fatal("ListInbox() = nil error, want connection error from missing transport")
	}
	if !clerkerr.Is(err, clerkerr.KindConnection) {
		t.Errorf("error = %v, want KindConnection", err)
	}
}

func TestListInbox_UnknownAccountRejected(t *testing.T) {
	api, _ := newTestAPI(t)
	if _, err := api.ListInbox(context.Background(), "nonexistent", "", 10, false, false); err == nil {
		t.Error("ListInbox() = nil error, want invalid-input for unknown account")
	}
}

func TestGetMessage_SkipsRefetchOnceBodyCached(t *testing.T) {
	api, st := newTestAPI(t)
	now := time.Now().UTC()
	body := "already fetched"
	msg := model.Message{
		MessageID:        "m1",
		ConvID:           "conv1",
		Folder:           "INBOX",
		Account:          "work",
		From:             model.Address{Addr: "alice@example.com"},
		Subject:          "hi",
		Date:             now,
		BodyText:         &body,
		HeadersFetchedAt: now,
	}
	if err := st.PutMessage(msg); err != nil {
		t.Fatal(err)
	}

	got, err := api.GetMessage(context.Background(), "m1", false)
	if err != nil {
		t.Fatalf("GetMessage() error: %v", err)
	}
	if got == nil || got.BodyText == nil || *got.BodyText != body {
		t.Errorf("GetMessage() = %+v, want cached body preserved", got)
	}
}

func TestGetMessage_NotFoundReturnsNilNoError(t *testing.T) {
	api, _ := newTestAPI(t)
	got, err := api.GetMessage(context.Background(), "missing", false)
	if err != nil {
		t.Fatalf("GetMessage() error: %v", err)
	}
	if got != nil {
		t.Errorf("GetMessage() = %+v, want nil", got)
	}
}

func TestResolveConversationID_AmbiguousPrefixReturnsMatches(t *testing.T) {
	api, st := newTestAPI(t)
	now := time.Now().UTC()
	st.PutMessage(model.Message{MessageID: "m1", ConvID: "abc111", Account: "work", Folder: "INBOX", Date: now, HeadersFetchedAt: now, From: model.Address{Addr: "a@example.com"}})
	st.PutMessage(model.Message{MessageID: "m2", ConvID: "abc222", Account: "work", Folder: "INBOX", Date: now, HeadersFetchedAt: now, From: model.Address{Addr: "a@example.com"}})

	lookup, err := api.ResolveConversationID(context.Background(), "abc", false)
	if err != nil {
		t.Fatalf("ResolveConversationID() error: %v", err)
	}
	if lookup.Conversation != nil {
		t.Error("Conversation should be nil for an ambiguous prefix")
	}
	if len(lookup.Matches) != 2 {
		t.Errorf("Matches = %d, want 2", len(lookup.Matches))
	}
}

func TestResolveConversationID_NoMatch(t *testing.T) {
	api, _ := newTestAPI(t)
	lookup, err := api.ResolveConversationID(context.Background(), "nope", false)
	if err != nil {
		t.Fatalf("ResolveConversationID() error: %v", err)
	}
	if lookup.Error == "" {
		t.Error("Error should be set when nothing matches")
	}
}

func TestMarkRead_CachedMessageFailsWithoutTransport(t *testing.T) {
	api, st := newTestAPI(t)
	now := time.Now().UTC()
	st.PutMessage(model.Message{MessageID: "m1", ConvID: "conv1", Account: "work", Folder: "INBOX", Date: now, HeadersFetchedAt: now, From: model.Address{Addr: "a@example.com"}})

	// No transport configured for "work", so the server-side call fails
	// before any mirroring happens — applyFlag always dials first.
	err := api.MarkRead(context.Background(), "m1", "work")
	if err == nil {
		t.Fatal("MarkRead() = nil error, want connection error from missing transport")
	}
	if !clerkerr.Is(err, clerkerr.KindConnection) {
		t.Errorf("error = %v, want KindConnection", err)
	}
}

func TestListAttachments_UncachedMessageReturnsNilNoError(t *testing.T) {
	api, _ := newTestAPI(t)
	attachments, err := api.ListAttachments("missing")
	if err != nil {
		t.Fatalf("ListAttachments() error: %v", err)
	}
	if attachments != nil {
		t.Errorf("ListAttachments() = %+v, want nil", attachments)
	}
}

func TestDownloadAttachment_UncachedMessageErrorsNotFound(t *testing.T) {
	api, _ := newTestAPI(t)
	_, err := api.DownloadAttachment(context.Background(), "missing", "file.pdf", "/tmp")
	if err == nil {
		t.Fatal("DownloadAttachment() = nil error, want not-found")
	}
	if !clerkerr.Is(err, clerkerr.KindNotFound) {
		t.Errorf("error = %v, want KindNotFound", err)
	}
}

func TestSearch_FindsPhraseMatch(t *testing.T) {
	api, st := newTestAPI(t)
	now := time.Now().UTC()
	body := "quarterly numbers are in"
	st.PutMessage(model.Message{
		MessageID: "m1", ConvID: "conv1", Account: "work", Folder: "INBOX",
		Subject: "numbers", Date: now, HeadersFetchedAt: now,
		From: model.Address{Addr: "a@example.com"}, BodyText: &body,
	})

	results, err := api.Search("quarterly", "", 10)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Search() = %d results, want 1", len(results))
	}
}

func TestSearchAdvanced_CompilesAndFilters(t *testing.T) {
	api, st := newTestAPI(t)
	now := time.Now().UTC()
	flagged := model.Message{MessageID: "m1", ConvID: "conv1", Account: "work", Folder: "INBOX", Date: now, HeadersFetchedAt: now, From: model.Address{Addr: "a@example.com"}, Flags: []model.MessageFlag{model.FlagFlagged}}
	st.PutMessage(flagged)
	st.PutMessage(model.Message{MessageID: "m2", ConvID: "conv2", Account: "work", Folder: "INBOX", Date: now.Add(time.Minute), HeadersFetchedAt: now, From: model.Address{Addr: "a@example.com"}})

	results, err := api.SearchAdvanced("is:flagged", "", "", 10)
	if err != nil {
		t.Fatalf("SearchAdvanced() error: %v", err)
	}
	if len(results) != 1 || results[0].MessageID != "m1" {
		t.Errorf("SearchAdvanced() = %+v", results)
	}
}

func TestDraftPassthroughs(t *testing.T) {
	api, _ := newTestAPI(t)
	d, err := api.CreateDraft("work", []model.Address{{Addr: "bob@example.com"}}, nil, nil, "hi", "hello", nil)
	if err != nil {
		t.Fatalf("CreateDraft() error: %v", err)
	}

	got, err := api.GetDraft(d.DraftID)
	if err != nil {
		t.Fatalf("GetDraft() error: %v", err)
	}
	if got == nil || got.DraftID != d.DraftID {
		t.Errorf("GetDraft() = %+v", got)
	}

	list, err := api.ListDrafts("work")
	if err != nil {
		t.Fatalf("ListDrafts() error: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListDrafts() = %d, want 1", len(list))
	}

	existed, err := api.DeleteDraft(d.DraftID)
	if err != nil {
		t.Fatalf("DeleteDraft() error: %v", err)
	}
	if !existed {
		t.Error("DeleteDraft() = false, want true")
	}
}

func TestGetCacheStatsAndClearCache(t *testing.T) {
	api, st := newTestAPI(t)
	now := time.Now().UTC()
	st.PutMessage(model.Message{MessageID: "m1", ConvID: "conv1", Account: "work", Folder: "INBOX", Date: now, HeadersFetchedAt: now, From: model.Address{Addr: "a@example.com"}})

	stats, err := api.GetCacheStats()
	if err != nil {
		t.Fatalf("GetCacheStats() error: %v", err)
	}
	if stats.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1", stats.MessageCount)
	}

	if err := api.ClearCache(); err != nil {
		t.Fatalf("ClearCache() error: %v", err)
	}
	stats, err = api.GetCacheStats()
	if err != nil {
		t.Fatalf("GetCacheStats() error: %v", err)
	}
	if stats.MessageCount != 0 {
		t.Errorf("MessageCount after ClearCache() = %d, want 0", stats.MessageCount)
	}
}

func TestGetStatus_ReportsDisconnectedWithoutTransport(t *testing.T) {
	api, _ := newTestAPI(t)
	statuses := api.GetStatus(context.Background())
	entry, ok := statuses["work"]
	if !ok {
		t.Fatal("GetStatus() missing entry for account work")
	}
	if entry.Connected {
		t.Error("Connected = true, want false: no transport configured")
	}
	if entry.Error == "" {
		t.Error("Error should be set when the account has no transport")
	}
}
