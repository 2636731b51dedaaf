package estate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iho/estateledger/internal/domain"
)

// RuleSpec is the external form of a contract rule. Shares are fractions ("1/3")
// or decimals ("0.25"); when one share is empty it is the complement of the other.
type RuleSpec struct {
	ContractType string `json:"contractType"`
	Period       string `json:"period"`
	AltShare     string `json:"altShare"`
	NeuShare     string `json:"neuShare"`
	Note         string `json:"note,omitempty"`
}

// ParseRules converts rule specs into domain rules.
func ParseRules(specs []RuleSpec) ([]domain.ContractRule, error) {
	rules := make([]domain.ContractRule, 0, len(specs))
	for i, s := range specs {
		r, err := parseRule(s)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	if _, err := NewRulesTable(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func parseRule(s RuleSpec) (domain.ContractRule, error) {
	if strings.TrimSpace(s.AltShare) == "" && strings.TrimSpace(s.NeuShare) == "" {
		return domain.ContractRule{}, fmt.Errorf("%w: no shares given", domain.ErrInvalidRule)
	}

	var alt, neu domain.Ratio
	var err error
	switch {
	case strings.TrimSpace(s.NeuShare) == "":
		if alt, err = domain.ParseRatio(s.AltShare); err != nil {
			return domain.ContractRule{}, err
		}
		neu = alt.Complement()
	case strings.TrimSpace(s.AltShare) == "":
		if neu, err = domain.ParseRatio(s.NeuShare); err != nil {
			return domain.ContractRule{}, err
		}
		alt = neu.Complement()
	default:
		if alt, err = domain.ParseRatio(s.AltShare); err != nil {
			return domain.ContractRule{}, err
		}
		if neu, err = domain.ParseRatio(s.NeuShare); err != nil {
			return domain.ContractRule{}, err
		}
	}

	return domain.ContractRule{
		ContractType: s.ContractType,
		Period:       s.Period,
		AltShare:     alt,
		NeuShare:     neu,
		Note:         s.Note,
	}, nil
}

type calendarRule struct {
	rule  domain.ContractRule
	start time.Time
	end   time.Time
	month bool
}

// RulesTable maps contract type and calendar period to a fixed estate split.
type RulesTable struct {
	byType map[string][]calendarRule
}

// NewRulesTable validates rules and indexes them by contract type.
func NewRulesTable(rules []domain.ContractRule) (*RulesTable, error) {
	t := &RulesTable{byType: make(map[string][]calendarRule)}
	seen := make(map[string]bool)

	for _, r := range rules {
		ct := normalizeType(r.ContractType)
		if ct == "" {
			return nil, fmt.Errorf("%w: empty contract type", domain.ErrInvalidRule)
		}
		if !r.AltShare.IsShare() || !r.NeuShare.IsShare() {
			return nil, fmt.Errorf("%w: %s %s shares outside [0,1]", domain.ErrInvalidRule, ct, r.Period)
		}
		sum, err := r.AltShare.Add(r.NeuShare)
		if err != nil || !sum.IsOne() {
			return nil, fmt.Errorf("%w: %s %s shares %s + %s do not sum to 1",
				domain.ErrInvalidRule, ct, r.Period, r.AltShare, r.NeuShare)
		}
		start, end, month, err := ParsePeriodKey(r.Period)
		if err != nil {
			return nil, err
		}
		key := ct + "|" + strings.ToUpper(strings.TrimSpace(r.Period))
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate rule %s", domain.ErrInvalidRule, key)
		}
		seen[key] = true
		t.byType[ct] = append(t.byType[ct], calendarRule{rule: r, start: start, end: end, month: month})
	}
	return t, nil
}

// Lookup finds the rule whose calendar period contains the whole service period.
// Month rules win over quarter rules.
func (t *RulesTable) Lookup(contractType string, sp domain.ServicePeriod) (domain.ContractRule, bool) {
	if t == nil {
		return domain.ContractRule{}, false
	}
	var found *calendarRule
	for i := range t.byType[normalizeType(contractType)] {
		c := &t.byType[normalizeType(contractType)][i]
		if domain.DateOf(sp.Start).Before(c.start) || domain.DateOf(sp.End).After(c.end) {
			continue
		}
		if found == nil || c.month && !found.month {
			found = c
		}
	}
	if found == nil {
		return domain.ContractRule{}, false
	}
	return found.rule, true
}

// Len returns the number of rules.
func (t *RulesTable) Len() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, rs := range t.byType {
		n += len(rs)
	}
	return n
}

// ParsePeriodKey parses "YYYY-MM" or "YYYY-Qn" into its inclusive date range.
func ParsePeriodKey(key string) (start, end time.Time, month bool, err error) {
	k := strings.ToUpper(strings.TrimSpace(key))
	if len(k) != 7 || k[4] != '-' {
		return start, end, false, fmt.Errorf("%w: period %q", domain.ErrInvalidRule, key)
	}
	year, err := strconv.Atoi(k[:4])
	if err != nil {
		return start, end, false, fmt.Errorf("%w: period %q", domain.ErrInvalidRule, key)
	}

	if k[5] == 'Q' {
		q := int(k[6] - '0')
		if q < 1 || q > 4 {
			return start, end, false, fmt.Errorf("%w: quarter %q", domain.ErrInvalidRule, key)
		}
		start = time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 3, -1), false, nil
	}

	m, err := strconv.Atoi(k[5:])
	if err != nil || m < 1 || m > 12 {
		return start, end, false, fmt.Errorf("%w: month %q", domain.ErrInvalidRule, key)
	}
	start = time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	return start, domain.MonthEnd(start), true, nil
}

func normalizeType(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
