// Package search implements clerk's operator-aware query DSL: a
// hand-written tokenizer, a SearchQuery builder, and compilers that
// turn a SearchQuery into an FTS5 match expression plus a list of SQL
// row predicates for internal/store's SearchAdvanced.
package search

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TokenKind classifies a single lexed token.
type TokenKind int

const (
	TokenWord TokenKind = iota
	TokenQuoted
	TokenOperator
)

// Token is one lexed unit of a raw query string.
type Token struct {
	Kind     TokenKind
	Value    string
	Operator string // set when Kind == TokenOperator
}

// operatorAliases maps every recognized operator name (including
// aliases) to its canonical form.
var operatorAliases = map[string]string{
	"from": "from", "f": "from",
	"to": "to", "t": "to",
	"subject": "subject", "subj": "subject", "s": "subject",
	"body": "body", "b": "body",
	"has":   "has",
	"is":    "is",
	"after": "after", "since": "after",
	"before": "before", "until": "before",
	"date": "date", "on": "date",
}

// Tokenize splits a raw query string into words, quoted phrases, and
// operator tokens. An unrecognized "name:value" pattern falls through
// to a literal word token carrying the whole "name:value" text.
func Tokenize(query string) []Token {
	var tokens []Token
	runes := []rune(query)
	n := len(runes)
	pos := 0

	for pos < n {
		for pos < n && isSpace(runes[pos]) {
			pos++
		}
		if pos >= n {
			break
		}

		if runes[pos] == '"' {
			end := indexRune(runes, pos+1, '"')
			var value string
			if end == -1 {
				value = string(runes[pos+1:])
				pos = n
			} else {
				value = string(runes[pos+1 : end])
				pos = end + 1
			}
			tokens = append(tokens, Token{Kind: TokenQuoted, Value: value})
			continue
		}

		start := pos
		for pos < n && runes[pos] != ':' && !isSpace(runes[pos]) {
			pos++
		}

		if pos < n && runes[pos] == ':' {
			opName := strings.ToLower(string(runes[start:pos]))
			pos++ // skip colon

			if canon, ok := operatorAliases[opName]; ok {
				var value string
				if pos < n && runes[pos] == '"' {
					pos++
					end := indexRune(runes, pos, '"')
					if end == -1 {
						value = string(runes[pos:])
						pos = n
					} else {
						value = string(runes[pos:end])
						pos = end + 1
					}
				} else {
					valueStart := pos
					for pos < n && !isSpace(runes[pos]) {
						pos++
					}
					value = string(runes[valueStart:pos])
				}
				tokens = append(tokens, Token{Kind: TokenOperator, Value: value, Operator: canon})
				continue
			}

			for pos < n && !isSpace(runes[pos]) {
				pos++
			}
			tokens = append(tokens, Token{Kind: TokenWord, Value: string(runes[start:pos])})
			continue
		}

		tokens = append(tokens, Token{Kind: TokenWord, Value: string(runes[start:pos])})
	}

	return tokens
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }

func indexRune(runes []rune, from int, target rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

// Query is a fully parsed search query.
type Query struct {
	TextTerms []string

	FromAddrs     []string
	ToAddrs       []string
	SubjectTerms  []string
	BodyTerms     []string

	HasAttachment *bool
	IsRead        *bool
	IsUnread      *bool
	IsFlagged     *bool

	AfterDate  *time.Time
	BeforeDate *time.Time
	OnDate     *time.Time

	Original string
}

// IsEmpty reports whether the query carries no constraints at all.
func (q Query) IsEmpty() bool {
	return len(q.TextTerms) == 0 && len(q.FromAddrs) == 0 && len(q.ToAddrs) == 0 &&
		len(q.SubjectTerms) == 0 && len(q.BodyTerms) == 0 &&
		q.HasAttachment == nil && q.IsRead == nil && q.IsUnread == nil && q.IsFlagged == nil &&
		q.AfterDate == nil && q.BeforeDate == nil && q.OnDate == nil
}

var relativeDatePattern = regexp.MustCompile(`^(\d+)([dwm])$`)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"02/01/2006",
	"20060102",
}

// ParseDate parses a date expression: "today", "yesterday", a
// relative form like "7d"/"1w"/"1m" (month approximated as 30 days),
// or one of the fixed-format layouts above.
func ParseDate(s string) *time.Time {
	s = strings.ToLower(strings.TrimSpace(s))
	now := time.Now().UTC()

	switch s {
	case "today":
		t := truncateToDay(now)
		return &t
	case "yesterday":
		t := truncateToDay(now.AddDate(0, 0, -1))
		return &t
	}

	if m := relativeDatePattern.FindStringSubmatch(s); m != nil {
		var num int
		fmt.Sscanf(m[1], "%d", &num)
		var t time.Time
		switch m[2] {
		case "d":
			t = now.AddDate(0, 0, -num)
		case "w":
			t = now.AddDate(0, 0, -num*7)
		case "m":
			t = now.AddDate(0, 0, -num*30)
		}
		return &t
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			utc := t.UTC()
			return &utc
		}
	}

	return nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Parse parses a raw query string into a Query.
func Parse(raw string) Query {
	q := Query{Original: raw}

	for _, tok := range Tokenize(raw) {
		switch tok.Kind {
		case TokenWord, TokenQuoted:
			if tok.Value != "" {
				q.TextTerms = append(q.TextTerms, tok.Value)
			}
		case TokenOperator:
			applyOperator(&q, tok.Operator, tok.Value)
		}
	}

	return q
}

func applyOperator(q *Query, op, value string) {
	switch op {
	case "from":
		q.FromAddrs = append(q.FromAddrs, value)
	case "to":
		q.ToAddrs = append(q.ToAddrs, value)
	case "subject":
		q.SubjectTerms = append(q.SubjectTerms, value)
	case "body":
		q.BodyTerms = append(q.BodyTerms, value)
	case "has":
		switch strings.ToLower(value) {
		case "attachment", "attachments", "attach":
			t := true
			q.HasAttachment = &t
		}
	case "is":
		switch strings.ToLower(value) {
		case "unread":
			t, f := true, false
			q.IsUnread, q.IsRead = &t, &f
		case "read":
			t, f := true, false
			q.IsRead, q.IsUnread = &t, &f
		case "flagged", "starred", "important":
			t := true
			q.IsFlagged = &t
		case "unflagged":
			f := false
			q.IsFlagged = &f
		}
	case "after":
		q.AfterDate = ParseDate(value)
	case "before":
		q.BeforeDate = ParseDate(value)
	case "date":
		q.OnDate = ParseDate(value)
	}
}

// BuildFTSQuery compiles a Query into an FTS5 match expression over
// the messages_fts virtual table. Returns "*" (match-all) when the
// query carries no text/from/subject/body terms, signalling the
// planner to fall through to a pure row-predicate scan.
func BuildFTSQuery(q Query) string {
	var parts []string

	for _, term := range q.TextTerms {
		parts = append(parts, fmt.Sprintf("%q", escapeFTS(term)))
	}
	for _, addr := range q.FromAddrs {
		e := escapeFTS(addr)
		parts = append(parts, fmt.Sprintf("(from_addr:%q OR from_name:%q)", e, e))
	}
	for _, term := range q.SubjectTerms {
		parts = append(parts, fmt.Sprintf("subject:%q", escapeFTS(term)))
	}
	for _, term := range q.BodyTerms {
		parts = append(parts, fmt.Sprintf("body_text:%q", escapeFTS(term)))
	}

	if len(parts) == 0 {
		return "*"
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, ") AND (") + ")"
}

func escapeFTS(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// Predicate is one SQL WHERE clause fragment with its bound
// parameters.
type Predicate struct {
	Clause string
	Args   []any
}

// BuildPredicates compiles the non-FTS constraints of a Query into a
// list of SQL predicates for internal/store to AND together.
func BuildPredicates(q Query) []Predicate {
	var preds []Predicate

	for _, addr := range q.ToAddrs {
		preds = append(preds, Predicate{Clause: "to_json LIKE ?", Args: []any{"%" + addr + "%"}})
	}

	if q.HasAttachment != nil {
		if *q.HasAttachment {
			preds = append(preds, Predicate{Clause: "attachments_json != '[]'"})
		} else {
			preds = append(preds, Predicate{Clause: "attachments_json = '[]'"})
		}
	}

	if q.IsRead != nil && *q.IsRead {
		preds = append(preds, Predicate{Clause: `flags_json LIKE '%"seen"%'`})
	} else if q.IsUnread != nil && *q.IsUnread {
		preds = append(preds, Predicate{Clause: `flags_json NOT LIKE '%"seen"%'`})
	}

	if q.IsFlagged != nil {
		if *q.IsFlagged {
			preds = append(preds, Predicate{Clause: `flags_json LIKE '%"flagged"%'`})
		} else {
			preds = append(preds, Predicate{Clause: `flags_json NOT LIKE '%"flagged"%'`})
		}
	}

	if q.AfterDate != nil {
		preds = append(preds, Predicate{Clause: "date_utc >= ?", Args: []any{q.AfterDate.Format(time.RFC3339)}})
	}
	if q.BeforeDate != nil {
		preds = append(preds, Predicate{Clause: "date_utc < ?", Args: []any{q.BeforeDate.Format(time.RFC3339)}})
	}
	if q.OnDate != nil {
		start := truncateToDay(*q.OnDate)
		end := start.AddDate(0, 0, 1)
		preds = append(preds, Predicate{
			Clause: "date_utc >= ? AND date_utc < ?",
			Args:   []any{start.Format(time.RFC3339), end.Format(time.RFC3339)},
		})
	}

	return preds
}
