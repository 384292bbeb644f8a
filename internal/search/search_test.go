package search

import (
	"testing"
	"time"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize(`from:alice "hello world" budget`)
	if len(tokens) != 3 {
		t.Fatalf("Tokenize() produced %d tokens, want 3: %+v", len(tokens), tokens)
	}
	if tokens[0].Kind != TokenOperator || tokens[0].Operator != "from" || tokens[0].Value != "alice" {
		t.Errorf("token[0] = %+v", tokens[0])
	}
	if tokens[1].Kind != TokenQuoted || tokens[1].Value != "hello world" {
		t.Errorf("token[1] = %+v", tokens[1])
	}
	if tokens[2].Kind != TokenWord || tokens[2].Value != "budget" {
		t.Errorf("token[2] = %+v", tokens[2])
	}
}

func TestTokenize_OperatorAliases(t *testing.T) {
	tokens := Tokenize("f:bob t:carol subj:hi s:hi b:body on:today")
	want := []string{"from", "to", "subject", "subject", "body", "date"}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(tokens), len(want))
	}
	for i, op := range want {
		if tokens[i].Operator != op {
			t.Errorf("token[%d].Operator = %q, want %q", i, tokens[i].Operator, op)
		}
	}
}

func TestParse_BuildsQuery(t *testing.T) {
	q := Parse(`from:alice@example.com is:unread budget report`)
	if q.IsEmpty() {
		t.Fatal("Parse() produced an empty query")
	}
	if len(q.FromAddrs) != 1 || q.FromAddrs[0] != "alice@example.com" {
		t.Errorf("FromAddrs = %v", q.FromAddrs)
	}
	if q.IsUnread == nil || !*q.IsUnread {
		t.Error("IsUnread = nil or false, want true")
	}
	if len(q.TextTerms) != 2 {
		t.Errorf("TextTerms = %v, want 2 entries", q.TextTerms)
	}
}

func TestParse_Empty(t *testing.T) {
	if !Parse("").IsEmpty() {
		t.Error("Parse(\"\") should be empty")
	}
}

func TestParseDate_Relative(t *testing.T) {
	if ParseDate("today") == nil {
		t.Error("ParseDate(today) = nil")
	}
	if ParseDate("yesterday") == nil {
		t.Error("ParseDate(yesterday) = nil")
	}
	if ParseDate("7d") == nil {
		t.Error("ParseDate(7d) = nil")
	}
	if ParseDate("2w") == nil {
		t.Error("ParseDate(2w) = nil")
	}
	if ParseDate("not-a-date") != nil {
		t.Error("ParseDate(not-a-date) should be nil")
	}
}

func TestParseDate_Fixed(t *testing.T) {
	got := ParseDate("2024-01-15")
	if got == nil {
		t.Fatal("ParseDate(2024-01-15) = nil")
	}
	if got.Year() != 2024 || got.Month() != time.January || got.Day() != 15 {
		t.Errorf("ParseDate() = %v", got)
	}
}

func TestBuildFTSQuery_EmptySentinel(t *testing.T) {
	q := Parse("is:read")
	if got := BuildFTSQuery(q); got != "*" {
		t.Errorf("BuildFTSQuery() = %q, want \"*\"", got)
	}
}

func TestBuildFTSQuery_WordsAndPhrases(t *testing.T) {
	q := Parse(`"hello world" budget`)
	got := BuildFTSQuery(q)
	if got == "" || got == "*" {
		t.Errorf("BuildFTSQuery() = %q", got)
	}
}

func TestBuildPredicates_Operators(t *testing.T) {
	q := Parse("to:bob@example.com has:attachment is:flagged")
	preds := BuildPredicates(q)
	if len(preds) != 3 {
		t.Fatalf("BuildPredicates() returned %d predicates, want 3: %+v", len(preds), preds)
	}
}
