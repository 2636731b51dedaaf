package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/iho/estateledger/internal/adapter/http/dto"
	"github.com/iho/estateledger/internal/aggregation"
	"github.com/iho/estateledger/internal/usecase"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func eur(cents int64) string {
	return dto.MoneyFromCents(cents).EUR
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func printPeriods(w io.Writer, res *aggregation.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PERIOD\tOPENING\tINFLOW\tOUTFLOW\tNET\tCLOSING\tENTRIES\t")
	for _, p := range res.Periods {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t\n",
			p.Label,
			eur(p.OpeningBalanceCents),
			eur(p.Inflow.Total()),
			eur(p.Outflow.Total()),
			eur(p.NetCents),
			eur(p.ClosingBalanceCents),
			p.EntryCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s: %s\n", warn.Type, warn.Message)
	}
	fmt.Fprintf(w, "hash: %s\n", res.ContentHash)
	return nil
}

func printEstate(w io.Writer, v *usecase.EstateSummaryView) error {
	s := v.Summary
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tALTMASSE\tNEUMASSE\tUNKLAR\t")
	fmt.Fprintf(tw, "inflow\t%s\t%s\t%s\t\n", eur(s.Inflow.AltCents), eur(s.Inflow.NeuCents), eur(s.Inflow.UnklarCents))
	fmt.Fprintf(tw, "outflow\t%s\t%s\t%s\t\n", eur(s.Outflow.AltCents), eur(s.Outflow.NeuCents), eur(s.Outflow.UnklarCents))
	fmt.Fprintf(tw, "net\t%s\t%s\t\t\n", eur(s.NetAltCents()), eur(s.NetNeuCents()))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "cutoff: %s\nunklar entries: %d\nmanual review: %d\n",
		v.Cutoff.Format("2006-01-02"), s.UnklarEntryCount, s.ManualReviewCount)
	for _, warn := range v.Warnings {
		fmt.Fprintf(w, "warning: %s: %s\n", warn.Type, warn.Message)
	}
	return nil
}

func printClassification(w io.Writer, out *usecase.ClassifyOutput) error {
	fmt.Fprintf(w, "suggestions: %d\nskipped: %d\nunmatched: %d\n", len(out.Suggestions), out.Skipped, len(out.Unmatched))

	if len(out.Unmatched) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ENTRY\tAMOUNT\tDESCRIPTION")
		for _, u := range out.Unmatched {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", u.EntryID, eur(u.AmountCents), truncate(u.Description, 48))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	for _, pe := range out.PatternErrors {
		fmt.Fprintf(w, "pattern error: %s\n", pe.Error())
	}
	return nil
}
