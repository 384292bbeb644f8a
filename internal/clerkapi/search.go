package clerkapi

import (
	"github.com/queelius/clerk/internal/clerkerr"
	"github.com/queelius/clerk/internal/model"
	"github.com/queelius/clerk/internal/search"
	"github.com/queelius/clerk/internal/store"
)

// Search runs a raw FTS phrase match over cached messages. The entire
// query is matched as one phrase; use SearchAdvanced for operator-
// aware boolean search.
func (a *API) Search(query, account string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	msgs, err := a.store.Search(query, account, limit)
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindStore, "Search", err)
	}
	return msgs, nil
}

// SearchAdvanced parses an operator-aware query (from:, to:, subject:,
// has:, is:, after:, before:, on:) and runs it against the cache.
func (a *API) SearchAdvanced(query, account, folder string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	parsed := search.Parse(query)
	compiled := store.CompileSearchQuery(parsed)
	msgs, err := a.store.SearchAdvanced(compiled, account, folder, limit)
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindStore, "SearchAdvanced", err)
	}
	return msgs, nil
}

// SearchSQL runs a read-only, SELECT-only SQL query as an escape hatch
// for power users, same as internal/store.ExecuteRawQuery.
func (a *API) SearchSQL(query string, params []any, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	msgs, err := a.store.ExecuteRawQuery(query, params, limit)
	if err != nil {
		return nil, clerkerr.New(clerkerr.KindInvalidInput, "SearchSQL", err)
	}
	return msgs, nil
}
