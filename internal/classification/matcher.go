// Package classification suggests counterparties for ledger entries by
// matching their descriptions against an ordered list of patterns.
package classification

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/iho/estateledger/internal/domain"
)

// PatternError reports a counterparty pattern that does not compile.
type PatternError struct {
	CounterpartyID string
	Pattern        string
	Err            error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("counterparty %s: invalid pattern %q: %v", e.CounterpartyID, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

type rule struct {
	re           *regexp.Regexp
	counterparty domain.Counterparty
}

// Matcher is an ordered list of compiled (pattern, counterparty) pairs.
type Matcher struct {
	rules []rule
}

// Match is the first rule that fits a description.
type Match struct {
	CounterpartyID string `json:"counterpartyId"`
	CategoryTag    string `json:"categoryTag,omitempty"`
	Pattern        string `json:"pattern"`
}

// Compile orders counterparties by DisplayOrder (ties by ID) and compiles their
// patterns case-insensitively. Malformed patterns are skipped and returned.
func Compile(counterparties []domain.Counterparty) (*Matcher, []PatternError) {
	ordered := slices.Clone(counterparties)
	slices.SortStableFunc(ordered, func(a, b domain.Counterparty) int {
		if c := cmp.Compare(a.DisplayOrder, b.DisplayOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	m := &Matcher{}
	var errs []PatternError
	for _, cp := range ordered {
		pattern := strings.TrimSpace(cp.MatchPattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			errs = append(errs, PatternError{CounterpartyID: cp.ID, Pattern: cp.MatchPattern, Err: err})
			continue
		}
		m.rules = append(m.rules, rule{re: re, counterparty: cp})
	}
	return m, errs
}

// Len returns the number of usable patterns.
func (m *Matcher) Len() int { return len(m.rules) }

// Match returns the first rule whose pattern matches description.
func (m *Matcher) Match(description string) (Match, bool) {
	for _, r := range m.rules {
		if r.re.MatchString(description) {
			return Match{
				CounterpartyID: r.counterparty.ID,
				CategoryTag:    r.counterparty.DefaultCategoryTag,
				Pattern:        r.counterparty.MatchPattern,
			}, true
		}
	}
	return Match{}, false
}

// Suggestion is a proposed counterparty for an unreviewed entry.
type Suggestion struct {
	EntryID        string `json:"entryId"`
	CounterpartyID string `json:"counterpartyId"`
	CategoryTag    string `json:"categoryTag,omitempty"`
	Reason         string `json:"reason"`
}

// Unmatched is an entry no pattern matched.
type Unmatched struct {
	EntryID     string `json:"entryId"`
	Description string `json:"description"`
	AmountCents int64  `json:"amountCents"`
}

// Result of a classification run.
type Result struct {
	Suggestions []Suggestion `json:"suggestions"`
	Unmatched   []Unmatched  `json:"unmatched"`
	// Skipped counts reviewed entries, which are never overwritten.
	Skipped int `json:"skipped"`
}

// Classify suggests counterparties for unreviewed entries.
func (m *Matcher) Classify(entries []domain.LedgerEntry) Result {
	res := Result{Suggestions: []Suggestion{}, Unmatched: []Unmatched{}}
	for i := range entries {
		e := &entries[i]
		if e.ReviewStatus.IsReviewed() {
			res.Skipped++
			continue
		}
		match, ok := m.Match(e.Description)
		if !ok {
			res.Unmatched = append(res.Unmatched, Unmatched{
				EntryID:     e.ID,
				Description: e.Description,
				AmountCents: e.AmountCents,
			})
			continue
		}
		res.Suggestions = append(res.Suggestions, Suggestion{
			EntryID:        e.ID,
			CounterpartyID: match.CounterpartyID,
			CategoryTag:    match.CategoryTag,
			Reason:         fmt.Sprintf("pattern %q matched", match.Pattern),
		})
	}
	return res
}
