// Package triggers holds the seller-configured keyword replies.
package triggers

import (
	"sort"
	"strings"
)

// Trigger maps any of its keywords to a canned response.
type Trigger struct {
	ID       string   `json:"id"`
	OwnerID  string   `json:"owner_id,omitempty"`
	Keywords []string `json:"keywords"`
	Response string   `json:"response"`
}

func normalizeKeyword(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// Conflict describes a configuration that cannot be matched deterministically.
// Positions index into the submitted trigger list.
type Conflict struct {
	Keyword   string `json:"keyword"`
	Reason    string `json:"reason"`
	Positions []int  `json:"positions"`
}

const (
	ReasonDuplicateKeyword = "duplicate_keyword"
	ReasonEmptyKeyword     = "empty_keyword"
	ReasonEmptyResponse    = "empty_response"
)

// ValidationResult is {ok} or {conflict, details}.
type ValidationResult struct {
	OK        bool       `json:"ok"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// Validate checks a full trigger set before it is saved. The same normalized
// keyword on two different triggers is a conflict; a keyword repeated inside
// one trigger is not.
func Validate(set []Trigger) ValidationResult {
	var conflicts []Conflict
	owners := make(map[string][]int)
	var order []string

	for i, tr := range set {
		if strings.TrimSpace(tr.Response) == "" {
			conflicts = append(conflicts, Conflict{Reason: ReasonEmptyResponse, Positions: []int{i}})
		}
		if len(tr.Keywords) == 0 {
			conflicts = append(conflicts, Conflict{Reason: ReasonEmptyKeyword, Positions: []int{i}})
		}
		seen := make(map[string]bool, len(tr.Keywords))
		for _, raw := range tr.Keywords {
			k := normalizeKeyword(raw)
			if k == "" {
				conflicts = append(conflicts, Conflict{Reason: ReasonEmptyKeyword, Positions: []int{i}})
				continue
			}
			if seen[k] {
				continue
			}
			seen[k] = true
			if _, ok := owners[k]; !ok {
				order = append(order, k)
			}
			owners[k] = append(owners[k], i)
		}
	}
	for _, k := range order {
		if positions := owners[k]; len(positions) > 1 {
			conflicts = append(conflicts, Conflict{Keyword: k, Reason: ReasonDuplicateKeyword, Positions: positions})
		}
	}
	return ValidationResult{OK: len(conflicts) == 0, Conflicts: conflicts}
}

type entry struct {
	keyword  string
	response string
}

// Matcher picks the most specific trigger for a message: the longest matching
// keyword wins, ties go to the trigger configured first.
type Matcher struct {
	entries []entry
}

func NewMatcher(set []Trigger) *Matcher {
	var entries []entry
	for _, tr := range set {
		if strings.TrimSpace(tr.Response) == "" {
			continue
		}
		for _, raw := range tr.Keywords {
			k := normalizeKeyword(raw)
			if k == "" {
				continue
			}
			entries = append(entries, entry{keyword: k, response: tr.Response})
		}
	}
	// stable: equal lengths keep configured order
	sort.SliceStable(entries, func(i, j int) bool {
		return len(entries[i].keyword) > len(entries[j].keyword)
	})
	return &Matcher{entries: entries}
}

// Match returns the configured response verbatim, or false when nothing matches.
func (m *Matcher) Match(message string) (string, bool) {
	if m == nil {
		return "", false
	}
	text := strings.ToLower(message)
	for _, e := range m.entries {
		if strings.Contains(text, e.keyword) {
			return e.response, true
		}
	}
	return "", false
}
