package aggregation

import (
	"bufio"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/iho/estateledger/internal/domain"
)

// ContentHash fingerprints every input that influences the aggregate. Entries
// and counterparties are encoded in ID order, so the hash ignores input order.
func ContentHash(in Input, opts Options) string {
	h := sha256.New()
	w := bufio.NewWriter(h)
	writeConfig(w, in, opts)
	writeEntries(w, in.Entries)
	_ = w.Flush()
	return hex.EncodeToString(h.Sum(nil))
}

func writeConfig(w io.Writer, in Input, opts Options) {
	if in.Case != nil {
		fmt.Fprintf(w, "case|%s|%s\n", in.Case.ID, optDate(in.Case.CutoffDate))
		rules := slices.Clone(in.Case.ContractRules)
		slices.SortFunc(rules, func(a, b domain.ContractRule) int {
			return cmp.Or(cmp.Compare(a.ContractType, b.ContractType), cmp.Compare(a.Period, b.Period))
		})
		for _, r := range rules {
			fmt.Fprintf(w, "rule|%q|%q|%s|%s|%q\n", r.ContractType, r.Period, r.AltShare, r.NeuShare, r.Note)
		}
	}
	if in.Plan != nil {
		p := in.Plan
		fmt.Fprintf(w, "plan|%s|%s|%d|%s|%d\n", p.ID, p.PeriodType, p.PeriodCount, isoDate(p.StartDate), p.OpeningBalanceCents)
	}

	locs := slices.Clone(in.Scope.LocationIDs)
	slices.Sort(locs)
	fmt.Fprintf(w, "scope|%q|%s\n", in.Scope.ID, strings.Join(locs, ","))

	fmt.Fprintf(w, "opt|kinds=%v|statuses=%v|unklar=%d|central=%q\n",
		opts.ValueKinds, opts.ReviewStatuses, opts.UnklarThresholdCents, opts.CentralCostPatterns)

	cps := slices.Clone(in.Counterparties)
	slices.SortFunc(cps, func(a, b domain.Counterparty) int { return cmp.Compare(a.ID, b.ID) })
	for _, c := range cps {
		fmt.Fprintf(w, "cp|%s|%q|%q|%s\n", c.ID, c.Name, c.Type, c.FallbackRule)
	}

	accts := slices.Clone(in.BankAccounts)
	slices.SortFunc(accts, func(a, b domain.BankAccount) int { return cmp.Compare(a.ID, b.ID) })
	for _, a := range accts {
		fmt.Fprintf(w, "acct|%s|%s|%d|%s\n", a.ID, a.LocationID, a.OpeningBalanceCents, a.Status)
	}
}

func writeEntries(w io.Writer, entries []domain.LedgerEntry) {
	sorted := make([]*domain.LedgerEntry, len(entries))
	for i := range entries {
		sorted[i] = &entries[i]
	}
	slices.SortFunc(sorted, func(a, b *domain.LedgerEntry) int { return cmp.Compare(a.ID, b.ID) })

	for _, e := range sorted {
		sp := "-"
		if e.ServicePeriod != nil {
			sp = isoDate(e.ServicePeriod.Start) + ".." + isoDate(e.ServicePeriod.End)
		}
		ratio := "-"
		if e.EstateRatio != nil {
			ratio = e.EstateRatio.String()
		}
		tags := slices.Clone(e.SteeringTags)
		slices.Sort(tags)
		fmt.Fprintf(w, "entry|%s|%s|%s|%s|%d|%q|%s|%s|%s|%s|%s|%s|%s|%s|%q|%q|%s|%s|%s|%q\n",
			e.ID, isoDate(e.TransactionDate), sp, optDate(e.ServiceDate), e.AmountCents, e.Description,
			e.CounterpartyID, e.LocationID, e.BankAccountID, e.ValueKind, e.ReviewStatus,
			e.EstateAllocation, e.AllocationSource, ratio, e.CategoryTag, e.SuggestedCategoryTag,
			e.LegalBucket, e.TransferPartnerEntryID, e.ParentEntryID, strings.Join(tags, ","))
	}
}

func isoDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.DateOnly)
}

func optDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return isoDate(*t)
}
