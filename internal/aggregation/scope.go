package aggregation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/iho/estateledger/internal/domain"
)

// GlobalScopeID identifies the unrestricted view.
const GlobalScopeID = "GLOBAL"

// DefaultCentralCostPatterns detect procedure costs that belong to no single location.
var DefaultCentralCostPatterns = []string{
	`verfahrenskosten`,
	`insolvenzverwalter`,
	`gerichtskosten`,
	`gutachter`,
	`rechtsanwalt.*insolvenz`,
	`steuerberater.*verfahren`,
	`zentral.*beratung`,
	`unternehmensberater`,
	`fortführungsbeitrag`,
}

// Scope restricts an aggregation to a set of locations. Empty LocationIDs means GLOBAL.
type Scope struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	LocationIDs []string `json:"locationIds,omitempty"`
}

// GlobalScope returns the unrestricted scope.
func GlobalScope() Scope {
	return Scope{ID: GlobalScopeID, Name: "Gesamt"}
}

// ResolveScope maps a scope ID to a scope of c. Empty and GLOBAL
// select the whole case; any other ID must name one of the case's locations.
func ResolveScope(c *domain.Case, id string) (Scope, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.EqualFold(id, GlobalScopeID) {
		return GlobalScope(), nil
	}
	if c != nil {
		for _, loc := range c.Locations {
			if loc.ID == id {
				return Scope{ID: loc.ID, Name: loc.Name, LocationIDs: []string{loc.ID}}, nil
			}
		}
	}
	return Scope{}, fmt.Errorf("%w: %s", domain.ErrScopeNotFound, id)
}

// IsGlobal reports whether the scope covers the whole case.
func (s Scope) IsGlobal() bool { return len(s.LocationIDs) == 0 }

type omission int

const (
	keep omission = iota
	omitOutOfScope
	omitUnlocated
	omitCentralCost
)

// ScopeFilter decides which entries and bank accounts belong to a scope.
type ScopeFilter struct {
	scope     Scope
	locations map[string]bool
	central   []*regexp.Regexp
}

// NewScopeFilter compiles the central cost patterns for a scoped view.
func NewScopeFilter(s Scope, centralPatterns []string) (*ScopeFilter, error) {
	f := &ScopeFilter{scope: s, locations: make(map[string]bool, len(s.LocationIDs))}
	for _, id := range s.LocationIDs {
		f.locations[id] = true
	}
	for _, p := range centralPatterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("central cost pattern %q: %w", p, err)
		}
		f.central = append(f.central, re)
	}
	return f, nil
}

// IsCentralCost reports whether e is a procedure cost borne by the whole estate.
func (f *ScopeFilter) IsCentralCost(e *domain.LedgerEntry) bool {
	if e.LegalBucket == domain.LegalBucketAbsonderung {
		return true
	}
	return slices.ContainsFunc(f.central, func(re *regexp.Regexp) bool {
		return re.MatchString(e.Description)
	})
}

func (f *ScopeFilter) decide(e *domain.LedgerEntry) omission {
	if f.scope.IsGlobal() {
		return keep
	}
	if e.LocationID == "" {
		if f.IsCentralCost(e) {
			return omitCentralCost
		}
		return omitUnlocated
	}
	if !f.locations[e.LocationID] {
		return omitOutOfScope
	}
	if f.IsCentralCost(e) {
		return omitCentralCost
	}
	return keep
}

// IncludesAccount reports whether a bank account belongs to the scope.
func (f *ScopeFilter) IncludesAccount(a *domain.BankAccount) bool {
	return f.scope.IsGlobal() || f.locations[a.LocationID]
}

// OpeningBalance sums the opening balances of in-scope bank accounts.
func (f *ScopeFilter) OpeningBalance(accounts []domain.BankAccount) int64 {
	var sum int64
	for i := range accounts {
		if f.IncludesAccount(&accounts[i]) {
			sum += accounts[i].OpeningBalanceCents
		}
	}
	return sum
}
