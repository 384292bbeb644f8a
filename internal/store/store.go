// Package store provides clerk's durable, single-writer cache: a
// SQLite-backed store for messages, drafts, cache metadata, and an
// append-only send log, with FTS5 full-text search over subject/body/
// from when available and a LIKE-based fallback when it is not.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/queelius/clerk/internal/model"
	"github.com/queelius/clerk/internal/search"
)

// Store is a single-writer SQLite store. Callers are responsible for
// not running concurrent writers against the same database file; per
// clerk's concurrency model there is exactly one.
type Store struct {
	db         *sql.DB
	path       string
	ftsEnabled bool
	logger     *slog.Logger
}

// Open opens (creating if necessary) the SQLite database at path and
// runs migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer contract

	s := &Store{db: db, path: path, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

const messageColumns = `message_id, conv_id, folder, account,
	from_addr, from_name, to_json, cc_json, reply_to_json,
	date_utc, subject, body_text, body_html,
	attachments_json, flags_json,
	in_reply_to, references_json,
	headers_fetched_at, body_fetched_at`

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		message_id TEXT PRIMARY KEY,
		conv_id TEXT NOT NULL,
		folder TEXT NOT NULL DEFAULT 'INBOX',
		account TEXT NOT NULL DEFAULT '',
		from_addr TEXT NOT NULL DEFAULT '',
		from_name TEXT NOT NULL DEFAULT '',
		to_json TEXT NOT NULL DEFAULT '[]',
		cc_json TEXT NOT NULL DEFAULT '[]',
		reply_to_json TEXT NOT NULL DEFAULT '[]',
		date_utc TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		body_text TEXT,
		body_html TEXT,
		attachments_json TEXT NOT NULL DEFAULT '[]',
		flags_json TEXT NOT NULL DEFAULT '[]',
		in_reply_to TEXT NOT NULL DEFAULT '',
		references_json TEXT NOT NULL DEFAULT '[]',
		headers_fetched_at TEXT NOT NULL,
		body_fetched_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conv_id ON messages(conv_id);
	CREATE INDEX IF NOT EXISTS idx_messages_account_folder ON messages(account, folder);
	CREATE INDEX IF NOT EXISTS idx_messages_date ON messages(date_utc);

	CREATE TABLE IF NOT EXISTS drafts (
		draft_id TEXT PRIMARY KEY,
		account TEXT NOT NULL,
		to_json TEXT NOT NULL DEFAULT '[]',
		cc_json TEXT NOT NULL DEFAULT '[]',
		bcc_json TEXT NOT NULL DEFAULT '[]',
		subject TEXT NOT NULL DEFAULT '',
		body_text TEXT NOT NULL DEFAULT '',
		body_html TEXT,
		reply_to_conv_id TEXT,
		in_reply_to TEXT,
		references_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cache_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS send_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		account TEXT NOT NULL,
		to_json TEXT NOT NULL DEFAULT '[]',
		cc_json TEXT NOT NULL DEFAULT '[]',
		bcc_json TEXT NOT NULL DEFAULT '[]',
		subject TEXT NOT NULL DEFAULT '',
		message_id TEXT NOT NULL DEFAULT ''
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	s.tryEnableFTS()
	return nil
}

// tryEnableFTS attempts to create the FTS5 virtual table over
// messages. If the linked SQLite build lacks FTS5, Search/
// SearchAdvanced fall back to a LIKE-based scan instead. This mirrors
// the graceful-degradation pattern used elsewhere in this codebase's
// lineage rather than assuming FTS5 is always present.
func (s *Store) tryEnableFTS() {
	_, err := s.db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
			message_id UNINDEXED,
			subject, body_text, from_name, from_addr,
			content=messages, content_rowid=rowid
		)
	`)
	if err != nil {
		s.logger.Warn("fts5 unavailable, falling back to LIKE search", "error", err)
		s.ftsEnabled = false
		return
	}
	s.ftsEnabled = true
	s.rebuildFTS()
}

func (s *Store) rebuildFTS() {
	if !s.ftsEnabled {
		return
	}
	if _, err := s.db.Exec(`INSERT INTO messages_fts(messages_fts) VALUES('rebuild')`); err != nil {
		s.logger.Warn("fts5 rebuild failed", "error", err)
	}
}

func jsonEncode(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonDecodeAddrs(s string) []model.Address {
	var out []model.Address
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func jsonDecodeStrings(s string) []string {
	var out []string
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func jsonDecodeAttachments(s string) []model.Attachment {
	var out []model.Attachment
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func jsonDecodeFlags(s string) []model.MessageFlag {
	var raw []string
	_ = json.Unmarshal([]byte(s), &raw)
	out := make([]model.MessageFlag, len(raw))
	for i, r := range raw {
		out[i] = model.MessageFlag(r)
	}
	return out
}

// PutMessage inserts or replaces a message row.
func (s *Store) PutMessage(m model.Message) error {
	var bodyFetchedAt any
	if m.BodyFetchedAt != nil {
		bodyFetchedAt = m.BodyFetchedAt.UTC().Format(time.RFC3339)
	}
	var bodyText, bodyHTML any
	if m.BodyText != nil {
		bodyText = *m.BodyText
	}
	if m.BodyHTML != nil {
		bodyHTML = *m.BodyHTML
	}

	_, err := s.db.Exec(fmt.Sprintf(`
		INSERT OR REPLACE INTO messages (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, messageColumns),
		m.MessageID, m.ConvID, m.Folder, m.Account,
		m.From.Addr, m.From.Name,
		jsonEncode(m.To), jsonEncode(m.Cc), jsonEncode(m.ReplyTo),
		m.Date.UTC().Format(time.RFC3339), m.Subject,
		bodyText, bodyHTML,
		jsonEncode(m.Attachments), jsonEncode(m.Flags),
		m.InReplyTo, jsonEncode(m.References),
		m.HeadersFetchedAt.UTC().Format(time.RFC3339), bodyFetchedAt,
	)
	if err != nil {
		return fmt.Errorf("put_message: %w", err)
	}
	s.rebuildFTS()
	return nil
}

func (s *Store) scanMessage(row scanner) (model.Message, error) {
	var m model.Message
	var fromAddr, fromName, toJSON, ccJSON, replyToJSON string
	var dateUTC string
	var bodyText, bodyHTML sql.NullString
	var attachmentsJSON, flagsJSON, refsJSON string
	var headersFetchedAt string
	var bodyFetchedAt sql.NullString

	err := row.Scan(
		&m.MessageID, &m.ConvID, &m.Folder, &m.Account,
		&fromAddr, &fromName, &toJSON, &ccJSON, &replyToJSON,
		&dateUTC, &m.Subject, &bodyText, &bodyHTML,
		&attachmentsJSON, &flagsJSON,
		&m.InReplyTo, &refsJSON,
		&headersFetchedAt, &bodyFetchedAt,
	)
	if err != nil {
		return m, err
	}

	m.From = model.Address{Addr: fromAddr, Name: fromName}
	m.To = jsonDecodeAddrs(toJSON)
	m.Cc = jsonDecodeAddrs(ccJSON)
	m.ReplyTo = jsonDecodeAddrs(replyToJSON)
	m.Date, _ = time.Parse(time.RFC3339, dateUTC)
	m.Attachments = jsonDecodeAttachments(attachmentsJSON)
	m.Flags = jsonDecodeFlags(flagsJSON)
	m.References = jsonDecodeStrings(refsJSON)
	m.HeadersFetchedAt, _ = time.Parse(time.RFC3339, headersFetchedAt)
	if bodyText.Valid {
		v := bodyText.String
		m.BodyText = &v
	}
	if bodyHTML.Valid {
		v := bodyHTML.String
		m.BodyHTML = &v
	}
	if bodyFetchedAt.Valid {
		t, _ := time.Parse(time.RFC3339, bodyFetchedAt.String)
		m.BodyFetchedAt = &t
	}

	return m, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// GetMessage fetches a single message by its Message-ID header value.
func (s *Store) GetMessage(messageID string) (*model.Message, error) {
	row := s.db.QueryRow(fmt.Sprintf(`SELECT %s FROM messages WHERE message_id = ?`, messageColumns), messageID)
	m, err := s.scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get_message: %w", err)
	}
	return &m, nil
}

// GetConversation returns the conversation for an exact conv_id match,
// or for a unique prefix match. If the prefix is ambiguous (more than
// one conversation matches) or matches nothing, it returns nil, nil —
// callers use FindConversationsByPrefix to disambiguate.
func (s *Store) GetConversation(idOrPrefix string) (*model.Conversation, error) {
	rows, err := s.db.Query(fmt.Sprintf(`SELECT %s FROM messages WHERE conv_id = ? ORDER BY date_utc ASC`, messageColumns), idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("get_conversation: %w", err)
	}
	msgs, err := scanMessages(s, rows)
	if err != nil {
		return nil, fmt.Errorf("get_conversation: %w", err)
	}
	if len(msgs) > 0 {
		conv := assembleConversation(idOrPrefix, msgs)
		return &conv, nil
	}

	// Fall back to prefix match, only if unique.
	summaries, err := s.FindConversationsByPrefix(idOrPrefix)
	if err != nil {
		return nil, err
	}
	if len(summaries) != 1 {
		return nil, nil
	}
	return s.GetConversation(summaries[0].ConvID)
}

func scanMessages(s *Store, rows *sql.Rows) ([]model.Message, error) {
	defer rows.Close()
	var out []model.Message
	for rows.Next() {
		m, err := s.scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func assembleConversation(convID string, msgs []model.Message) model.Conversation {
	participantSet := make(map[string]bool)
	unread := 0
	latest := msgs[0].Date
	subject := ""
	account := ""
	for _, m := range msgs {
		if subject == "" && m.Subject != "" {
			subject = m.Subject
		}
		addParticipant(participantSet, m.From)
		for _, a := range m.To {
			addParticipant(participantSet, a)
		}
		for _, a := range m.Cc {
			addParticipant(participantSet, a)
		}
		if !m.IsRead() {
			unread++
		}
		if m.Date.After(latest) {
			latest = m.Date
		}
		if account == "" {
			account = m.Account
		}
	}
	participants := make([]string, 0, len(participantSet))
	for p := range participantSet {
		participants = append(participants, p)
	}
	sort.Strings(participants)

	return model.Conversation{
		ConvID:       msgs[0].ConvID,
		Subject:      subject,
		Participants: participants,
		MessageCount: len(msgs),
		UnreadCount:  unread,
		LatestDate:   latest,
		Messages:     msgs,
		Account:      account,
	}
}

func addParticipant(set map[string]bool, a model.Address) {
	if a.Addr != "" {
		set[strings.ToLower(a.Addr)] = true
	}
}

// FindConversationsByPrefix returns summaries for every conversation
// whose conv_id begins with prefix, ordered by latest_date descending.
func (s *Store) FindConversationsByPrefix(prefix string) ([]model.ConversationSummary, error) {
	rows, err := s.db.Query(`
		SELECT conv_id,
			MIN(subject) as subject,
			MAX(date_utc) as latest_date,
			COUNT(*) as message_count,
			SUM(CASE WHEN flags_json NOT LIKE '%"seen"%' THEN 1 ELSE 0 END) as unread_count,
			MIN(account) as account
		FROM messages
		WHERE conv_id LIKE ?
		GROUP BY conv_id
		ORDER BY latest_date DESC
	`, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("find_conversations_by_prefix: %w", err)
	}
	defer rows.Close()

	var out []model.ConversationSummary
	for rows.Next() {
		var sum model.ConversationSummary
		var latestDate string
		if err := rows.Scan(&sum.ConvID, &sum.Subject, &latestDate, &sum.MessageCount, &sum.UnreadCount, &sum.Account); err != nil {
			return nil, err
		}
		sum.LatestDate, _ = time.Parse(time.RFC3339, latestDate)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// ListConversations lists conversation summaries in a folder, most
// recently active first.
func (s *Store) ListConversations(account, folder string, unreadOnly bool, limit int) ([]model.ConversationSummary, error) {
	clauses := []string{"folder = ?"}
	args := []any{folder}
	if account != "" {
		clauses = append(clauses, "account = ?")
		args = append(args, account)
	}

	query := fmt.Sprintf(`
		SELECT conv_id,
			MIN(subject) as subject,
			MAX(date_utc) as latest_date,
			COUNT(*) as message_count,
			SUM(CASE WHEN flags_json NOT LIKE '%%"seen"%%' THEN 1 ELSE 0 END) as unread_count,
			MIN(account) as account,
			(SELECT body_text FROM messages m2 WHERE m2.conv_id = messages.conv_id ORDER BY date_utc DESC LIMIT 1) as snippet_src
		FROM messages
		WHERE %s
		GROUP BY conv_id
		%s
		ORDER BY latest_date DESC
		LIMIT ?
	`, strings.Join(clauses, " AND "), havingUnread(unreadOnly))
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list_conversations: %w", err)
	}
	defer rows.Close()

	var out []model.ConversationSummary
	for rows.Next() {
		var sum model.ConversationSummary
		var latestDate string
		var snippetSrc sql.NullString
		if err := rows.Scan(&sum.ConvID, &sum.Subject, &latestDate, &sum.MessageCount, &sum.UnreadCount, &sum.Account, &snippetSrc); err != nil {
			return nil, err
		}
		sum.LatestDate, _ = time.Parse(time.RFC3339, latestDate)
		if snippetSrc.Valid {
			sum.Snippet = truncateSnippet(snippetSrc.String, 100)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func havingUnread(unreadOnly bool) string {
	if unreadOnly {
		return `HAVING SUM(CASE WHEN flags_json NOT LIKE '%"seen"%' THEN 1 ELSE 0 END) > 0`
	}
	return ""
}

func truncateSnippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Search performs a raw FTS phrase match: the entire query string is
// wrapped in quotes and matched as a single phrase. This is a
// documented quirk, not a bug — see SearchAdvanced for operator-aware
// boolean search.
func (s *Store) Search(rawQuery, account string, limit int) ([]model.Message, error) {
	if !s.ftsEnabled {
		return s.likeSearch(rawQuery, account, limit)
	}

	phrase := fmt.Sprintf("%q", strings.ReplaceAll(rawQuery, `"`, `""`))
	args := []any{phrase}
	where := ""
	if account != "" {
		where = " AND m.account = ?"
		args = append(args, account)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s FROM messages m
		JOIN messages_fts ON messages_fts.rowid = m.rowid
		WHERE messages_fts MATCH ?%s
		ORDER BY rank
		LIMIT ?
	`, prefixColumns("m"), where)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return scanMessages(s, rows)
}

func (s *Store) likeSearch(rawQuery, account string, limit int) ([]model.Message, error) {
	like := "%" + rawQuery + "%"
	args := []any{like, like, like}
	where := "(subject LIKE ? OR body_text LIKE ? OR from_addr LIKE ?)"
	if account != "" {
		where += " AND account = ?"
		args = append(args, account)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM messages WHERE %s ORDER BY date_utc DESC LIMIT ?`, messageColumns, where)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return scanMessages(s, rows)
}

func prefixColumns(alias string) string {
	cols := strings.Split(messageColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// SearchQuery is the compiled form of a search.Query ready for
// execution: an FTS expression plus row predicates.
type SearchQuery struct {
	FTSExpr    string
	Predicates []search.Predicate
}

// CompileSearchQuery turns a parsed search.Query into a SearchQuery.
func CompileSearchQuery(q search.Query) SearchQuery {
	return SearchQuery{
		FTSExpr:    search.BuildFTSQuery(q),
		Predicates: search.BuildPredicates(q),
	}
}

// SearchAdvanced runs a compiled operator-aware query. When the FTS
// expression is non-empty (not the "*" match-all sentinel) it joins
// against messages_fts and orders by rank; otherwise it runs a
// predicate-only scan ordered by date descending. The limit is
// applied last in both paths.
func (s *Store) SearchAdvanced(q SearchQuery, account, folder string, limit int) ([]model.Message, error) {
	var where []string
	var args []any

	for _, p := range q.Predicates {
		where = append(where, p.Clause)
		args = append(args, p.Args...)
	}
	if account != "" {
		where = append(where, "account = ?")
		args = append(args, account)
	}
	if folder != "" {
		where = append(where, "folder = ?")
		args = append(args, folder)
	}

	useFTS := s.ftsEnabled && q.FTSExpr != "" && q.FTSExpr != "*"

	if useFTS {
		ftsWhere := append([]string{"messages_fts MATCH ?"}, where...)
		ftsArgs := append([]any{q.FTSExpr}, args...)
		ftsArgs = append(ftsArgs, limit)

		whereClause := strings.Join(ftsWhere, " AND ")
		query := fmt.Sprintf(`
			SELECT %s FROM messages m
			JOIN messages_fts ON messages_fts.rowid = m.rowid
			WHERE %s
			ORDER BY rank
			LIMIT ?
		`, prefixColumns("m"), whereClause)
		rows, err := s.db.Query(query, ftsArgs...)
		if err != nil {
			return nil, fmt.Errorf("search_advanced: %w", err)
		}
		return scanMessages(s, rows)
	}

	if len(where) == 0 {
		where = []string{"1=1"}
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT %s FROM messages WHERE %s ORDER BY date_utc DESC LIMIT ?`, messageColumns, strings.Join(where, " AND "))
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search_advanced: %w", err)
	}
	return scanMessages(s, rows)
}

// ExecuteRawQuery runs a read-only SQL query as an escape hatch for
// power users. Only SELECT statements are allowed; any statement
// containing a mutating keyword is rejected. A LIMIT clause is
// appended if the query doesn't already have one.
func (s *Store) ExecuteRawQuery(sql_ string, params []any, limit int) ([]model.Message, error) {
	trimmed := strings.TrimSpace(sql_)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") {
		return nil, fmt.Errorf("execute_raw_query: only SELECT statements are allowed")
	}
	for _, kw := range []string{"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "TRUNCATE"} {
		if strings.Contains(upper, kw) {
			return nil, fmt.Errorf("execute_raw_query: forbidden keyword %q", kw)
		}
	}
	if !strings.Contains(upper, "LIMIT") {
		trimmed = fmt.Sprintf("%s LIMIT %d", trimmed, limit)
	}

	rows, err := s.db.Query(trimmed, params...)
	if err != nil {
		return nil, fmt.Errorf("execute_raw_query: %w", err)
	}
	return scanMessages(s, rows)
}

// UpdateFlags replaces the flag set on a message.
func (s *Store) UpdateFlags(messageID string, flags []model.MessageFlag) error {
	_, err := s.db.Exec(`UPDATE messages SET flags_json = ? WHERE message_id = ?`, jsonEncode(flags), messageID)
	if err != nil {
		return fmt.Errorf("update_flags: %w", err)
	}
	s.rebuildFTS()
	return nil
}

// UpdateBody sets the body text/html for a message and stamps
// body_fetched_at.
func (s *Store) UpdateBody(messageID string, bodyText, bodyHTML *string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	var bt, bh any
	if bodyText != nil {
		bt = *bodyText
	}
	if bodyHTML != nil {
		bh = *bodyHTML
	}
	_, err := s.db.Exec(`UPDATE messages SET body_text = ?, body_html = ?, body_fetched_at = ? WHERE message_id = ?`,
		bt, bh, now, messageID)
	if err != nil {
		return fmt.Errorf("update_body: %w", err)
	}
	s.rebuildFTS()
	return nil
}

// MoveMessage updates the cached folder for a message.
func (s *Store) MoveMessage(messageID, toFolder string) error {
	_, err := s.db.Exec(`UPDATE messages SET folder = ? WHERE message_id = ?`, toFolder, messageID)
	if err != nil {
		return fmt.Errorf("move_message: %w", err)
	}
	return nil
}

// DeleteMessage removes a message from the store.
func (s *Store) DeleteMessage(messageID string) error {
	_, err := s.db.Exec(`DELETE FROM messages WHERE message_id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("delete_message: %w", err)
	}
	s.rebuildFTS()
	return nil
}

// IsFresh reports whether a message's headers (or body, when
// checkBody is true) were fetched within the last minutes.
func (s *Store) IsFresh(messageID string, minutes int, checkBody bool) (bool, error) {
	var headersFetchedAt string
	var bodyFetchedAt sql.NullString
	row := s.db.QueryRow(`SELECT headers_fetched_at, body_fetched_at FROM messages WHERE message_id = ?`, messageID)
	if err := row.Scan(&headersFetchedAt, &bodyFetchedAt); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("is_fresh: %w", err)
	}

	var ts string
	if checkBody {
		if !bodyFetchedAt.Valid {
			return false, nil
		}
		ts = bodyFetchedAt.String
	} else {
		ts = headersFetchedAt
	}

	fetchedAt, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return false, nil
	}
	return time.Since(fetchedAt) < time.Duration(minutes)*time.Minute, nil
}

// IsInboxFresh reports whether an account's inbox was synced within
// the last minutes, per the "inbox_sync_<account>" cache_meta marker.
func (s *Store) IsInboxFresh(account string, minutes int) (bool, error) {
	key := "inbox_sync_" + account
	var value string
	row := s.db.QueryRow(`SELECT value FROM cache_meta WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("is_inbox_fresh: %w", err)
	}
	syncedAt, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return false, nil
	}
	return time.Since(syncedAt) < time.Duration(minutes)*time.Minute, nil
}

// MarkInboxSynced stamps the "inbox_sync_<account>" marker to now.
func (s *Store) MarkInboxSynced(account string) error {
	key := "inbox_sync_" + account
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO cache_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, now, now)
	if err != nil {
		return fmt.Errorf("mark_inbox_synced: %w", err)
	}
	return nil
}

// PruneOldMessages deletes messages older than windowDays and returns
// the number of rows removed.
func (s *Store) PruneOldMessages(windowDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays).Format(time.RFC3339)
	res, err := s.db.Exec(`DELETE FROM messages WHERE date_utc < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune_old_messages: %w", err)
	}
	s.rebuildFTS()
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Clear wipes messages, drafts, and cache metadata, and rebuilds the
// FTS index. It never touches send_log.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM messages`); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM drafts`); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM cache_meta`); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	s.rebuildFTS()
	return nil
}

// GetStats summarizes the store's contents.
func (s *Store) GetStats() (model.CacheStats, error) {
	var stats model.CacheStats

	row := s.db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT conv_id) FROM messages`)
	if err := row.Scan(&stats.MessageCount, &stats.ConversationCount); err != nil {
		return stats, fmt.Errorf("get_stats: %w", err)
	}

	var oldest, newest sql.NullString
	row = s.db.QueryRow(`SELECT MIN(date_utc), MAX(date_utc) FROM messages`)
	if err := row.Scan(&oldest, &newest); err != nil {
		return stats, fmt.Errorf("get_stats: %w", err)
	}
	if oldest.Valid {
		t, _ := time.Parse(time.RFC3339, oldest.String)
		stats.OldestMessage = &t
	}
	if newest.Valid {
		t, _ := time.Parse(time.RFC3339, newest.String)
		stats.NewestMessage = &t
	}

	var lastSync sql.NullString
	row = s.db.QueryRow(`SELECT MAX(value) FROM cache_meta WHERE key LIKE 'inbox_sync_%'`)
	if err := row.Scan(&lastSync); err == nil && lastSync.Valid {
		t, _ := time.Parse(time.RFC3339, lastSync.String)
		stats.LastSync = &t
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.CacheSizeBytes = info.Size()
	}

	return stats, nil
}

// PutDraft inserts or replaces a draft row.
func (s *Store) PutDraft(d model.Draft) error {
	var bodyHTML any
	if d.BodyHTML != nil {
		bodyHTML = *d.BodyHTML
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO drafts (
			draft_id, account, to_json, cc_json, bcc_json,
			subject, body_text, body_html,
			reply_to_conv_id, in_reply_to, references_json,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.DraftID, d.Account, jsonEncode(d.To), jsonEncode(d.Cc), jsonEncode(d.Bcc),
		d.Subject, d.BodyText, bodyHTML,
		nullableString(d.ReplyToConvID), nullableString(d.InReplyTo), jsonEncode(d.References),
		d.CreatedAt.UTC().Format(time.RFC3339), d.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("put_draft: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetDraft fetches a draft by id.
func (s *Store) GetDraft(draftID string) (*model.Draft, error) {
	row := s.db.QueryRow(`SELECT draft_id, account, to_json, cc_json, bcc_json, subject, body_text, body_html,
		reply_to_conv_id, in_reply_to, references_json, created_at, updated_at
		FROM drafts WHERE draft_id = ?`, draftID)
	d, err := scanDraft(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get_draft: %w", err)
	}
	return &d, nil
}

func scanDraft(row scanner) (model.Draft, error) {
	var d model.Draft
	var toJSON, ccJSON, bccJSON, refsJSON string
	var bodyHTML, replyToConvID, inReplyTo sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&d.DraftID, &d.Account, &toJSON, &ccJSON, &bccJSON,
		&d.Subject, &d.BodyText, &bodyHTML,
		&replyToConvID, &inReplyTo, &refsJSON,
		&createdAt, &updatedAt)
	if err != nil {
		return d, err
	}

	d.To = jsonDecodeAddrs(toJSON)
	d.Cc = jsonDecodeAddrs(ccJSON)
	d.Bcc = jsonDecodeAddrs(bccJSON)
	d.References = jsonDecodeStrings(refsJSON)
	if bodyHTML.Valid {
		v := bodyHTML.String
		d.BodyHTML = &v
	}
	d.ReplyToConvID = replyToConvID.String
	d.InReplyTo = inReplyTo.String
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return d, nil
}

// ListDrafts lists all drafts, most recently updated first, optionally
// filtered by account.
func (s *Store) ListDrafts(account string) ([]model.Draft, error) {
	var rows *sql.Rows
	var err error
	base := `SELECT draft_id, account, to_json, cc_json, bcc_json, subject, body_text, body_html,
		reply_to_conv_id, in_reply_to, references_json, created_at, updated_at FROM drafts`
	if account != "" {
		rows, err = s.db.Query(base+` WHERE account = ? ORDER BY updated_at DESC`, account)
	} else {
		rows, err = s.db.Query(base + ` ORDER BY updated_at DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("list_drafts: %w", err)
	}
	defer rows.Close()

	var out []model.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDraft removes a draft, reporting whether it existed.
func (s *Store) DeleteDraft(draftID string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM drafts WHERE draft_id = ?`, draftID)
	if err != nil {
		return false, fmt.Errorf("delete_draft: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// LogSend appends a record to the send log.
func (s *Store) LogSend(account string, to, cc, bcc []model.Address, subject, messageID string) error {
	_, err := s.db.Exec(`
		INSERT INTO send_log (timestamp, account, to_json, cc_json, bcc_json, subject, message_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, time.Now().UTC().Format(time.RFC3339), account, jsonEncode(to), jsonEncode(cc), jsonEncode(bcc), subject, messageID)
	if err != nil {
		return fmt.Errorf("log_send: %w", err)
	}
	return nil
}
