// Package threading builds conversation threads out of a flat set of
// messages using a simplified JWZ algorithm: link messages by
// In-Reply-To/References, create dummy placeholder nodes for missing
// ancestors, and collect each resulting tree into a Conversation.
package threading

import (
	"regexp"
	"sort"
	"strings"

	"github.com/queelius/clerk/internal/model"
)

// node is one slot in the id-table arena. A node is a "dummy" when
// message is nil: it exists only to link real descendants together.
type node struct {
	messageID string
	message   *model.Message
	parent    *node
	children  []*node
}

func (n *node) isDummy() bool { return n.message == nil }

// Thread builds conversations from a flat slice of messages. Messages
// within each returned conversation are sorted date-ascending;
// conversations themselves are sorted by latest_date descending.
func Thread(messages []model.Message) []model.Conversation {
	idTable := make(map[string]*node)

	getOrCreate := func(id string) *node {
		if id == "" {
			return nil
		}
		if n, ok := idTable[id]; ok {
			return n
		}
		n := &node{messageID: id}
		idTable[id] = n
		return n
	}

	for i := range messages {
		msg := &messages[i]
		n := getOrCreate(msg.MessageID)
		n.message = msg

		refs := append([]string{}, msg.References...)
		if msg.InReplyTo != "" {
			found := false
			for _, r := range refs {
				if r == msg.InReplyTo {
					found = true
					break
				}
			}
			if !found {
				refs = append(refs, msg.InReplyTo)
			}
		}

		var prev *node
		for _, ref := range refs {
			cur := getOrCreate(ref)
			if prev != nil && cur.parent == nil && cur != prev {
				cur.parent = prev
				prev.children = append(prev.children, cur)
			}
			prev = cur
		}

		if prev != nil && prev != n && n.parent == nil {
			// Guard against self-parenting cycles silently.
			if !isAncestor(prev, n) {
				n.parent = prev
				prev.children = append(prev.children, n)
			}
		}
	}

	// Collect root nodes (no parent).
	var roots []*node
	seen := make(map[*node]bool)
	for _, n := range idTable {
		root := n
		for root.parent != nil {
			root = root.parent
		}
		if !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}

	// Promote a dummy root with exactly one child.
	for i, r := range roots {
		if r.isDummy() && len(r.children) == 1 {
			roots[i] = r.children[0]
			roots[i].parent = nil
		}
	}

	var conversations []model.Conversation
	for _, root := range roots {
		msgs := collectMessages(root)
		if len(msgs) == 0 {
			continue
		}
		conversations = append(conversations, buildConversation(root.messageID, msgs))
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LatestDate.After(conversations[j].LatestDate)
	})

	return conversations
}

// isAncestor reports whether candidate is already an ancestor of n,
// guarding thread-linking against cycles.
func isAncestor(candidate, n *node) bool {
	for cur := candidate; cur != nil; cur = cur.parent {
		if cur == n {
			return true
		}
	}
	return false
}

func collectMessages(n *node) []model.Message {
	var out []model.Message
	if !n.isDummy() {
		out = append(out, *n.message)
	}
	for _, c := range n.children {
		out = append(out, collectMessages(c)...)
	}
	return out
}

var subjectPrefix = regexp.MustCompile(`(?i)^(?:(?:re|fwd|fw):\s*)+`)

// NormalizeSubject strips any repeated chain of Re:/Fwd:/Fw: prefixes
// from a subject line in a single pass.
func NormalizeSubject(subject string) string {
	return subjectPrefix.ReplaceAllString(subject, "")
}

func buildConversation(rootID string, msgs []model.Message) model.Conversation {
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Date.Before(msgs[j].Date) })

	subject := ""
	for _, m := range msgs {
		if m.Subject != "" {
			subject = NormalizeSubject(m.Subject)
			break
		}
	}

	participantSet := make(map[string]bool)
	unread := 0
	var latest = msgs[0].Date
	account := ""
	for _, m := range msgs {
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
		ConvID:       model.ComputeConvID(rootID),
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
	if a.Addr == "" {
		return
	}
	set[strings.ToLower(a.Addr)] = true
}

// GroupBySubject is the fallback grouping strategy used only when a
// caller explicitly requests subject-based grouping; it never
// supersedes header-based threading.
func GroupBySubject(messages []model.Message) map[string][]model.Message {
	groups := make(map[string][]model.Message)
	for _, m := range messages {
		key := strings.ToLower(NormalizeSubject(m.Subject))
		groups[key] = append(groups[key], m)
	}
	return groups
}
