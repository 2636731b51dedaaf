package dto

import (
	"time"

	"github.com/iho/estateledger/internal/aggregation"
	"github.com/iho/estateledger/internal/bankbalance"
	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/usecase"
)

// EstateSplitResponse is an amount broken down by estate.
type EstateSplitResponse struct {
	Alt    Money `json:"alt"`
	Neu    Money `json:"neu"`
	Unklar Money `json:"unklar"`
	Total  Money `json:"total"`
}

func estateSplit(s aggregation.EstateSplit) EstateSplitResponse {
	return EstateSplitResponse{
		Alt:    MoneyFromCents(s.AltCents),
		Neu:    MoneyFromCents(s.NeuCents),
		Unklar: MoneyFromCents(s.UnklarCents),
		Total:  MoneyFromCents(s.Total()),
	}
}

// PeriodResponse is one bucket of the plan.
type PeriodResponse struct {
	Index          int                 `json:"index"`
	Label          string              `json:"label"`
	Start          string              `json:"start"`
	End            string              `json:"end"`
	OpeningBalance Money               `json:"opening_balance"`
	ClosingBalance Money               `json:"closing_balance"`
	Inflow         EstateSplitResponse `json:"inflow"`
	Outflow        EstateSplitResponse `json:"outflow"`
	Net            Money               `json:"net"`
	EntryCount     int                 `json:"entry_count"`
}

// LineResponse is a counterparty row of a category.
type LineResponse struct {
	CounterpartyID string  `json:"counterparty_id"`
	Name           string  `json:"name"`
	Periods        []Money `json:"periods"`
	Total          Money   `json:"total"`
}

// CategoryResponse sums one category in one flow direction.
type CategoryResponse struct {
	Flow    aggregation.Flow    `json:"flow"`
	Tag     string              `json:"tag"`
	Periods []Money             `json:"periods"`
	Total   Money               `json:"total"`
	Estate  EstateSplitResponse `json:"estate"`
	Lines   []LineResponse      `json:"lines"`
}

// WarningResponse is a non-fatal finding of an aggregation run.
type WarningResponse struct {
	Type        domain.WarningType `json:"type"`
	Severity    domain.Severity    `json:"severity"`
	Message     string             `json:"message"`
	Count       int                `json:"count"`
	Amount      Money              `json:"amount"`
	EntryIDs    []string           `json:"entry_ids,omitempty"`
	PeriodIndex *int               `json:"period_index,omitempty"`
}

// WarningsFromDomain converts warnings to responses.
func WarningsFromDomain(warnings []domain.Warning) []WarningResponse {
	out := make([]WarningResponse, len(warnings))
	for i, w := range warnings {
		out[i] = WarningResponse{
			Type:        w.Type,
			Severity:    w.Severity,
			Message:     w.Message,
			Count:       w.Count,
			Amount:      MoneyFromCents(w.AmountCents),
			EntryIDs:    w.EntryIDs,
			PeriodIndex: w.PeriodIndex,
		}
	}
	return out
}

// EstateSummaryResponse is the Altmasse/Neumasse overview.
type EstateSummaryResponse struct {
	CaseID            string              `json:"case_id,omitempty"`
	Scope             aggregation.Scope   `json:"scope"`
	Cutoff            string              `json:"cutoff_date,omitempty"`
	Inflow            EstateSplitResponse `json:"inflow"`
	Outflow           EstateSplitResponse `json:"outflow"`
	NetAlt            Money               `json:"net_alt"`
	NetNeu            Money               `json:"net_neu"`
	UnklarEntryCount  int                 `json:"unklar_entry_count"`
	ManualReviewCount int                 `json:"manual_review_count"`
	Warnings          []WarningResponse   `json:"warnings,omitempty"`
	ContentHash       string              `json:"content_hash,omitempty"`
	Status            string              `json:"status,omitempty"`
}

func estateSummary(s aggregation.EstateSummary) EstateSummaryResponse {
	return EstateSummaryResponse{
		Inflow:            estateSplit(s.Inflow),
		Outflow:           estateSplit(s.Outflow),
		NetAlt:            MoneyFromCents(s.NetAltCents()),
		NetNeu:            MoneyFromCents(s.NetNeuCents()),
		UnklarEntryCount:  s.UnklarEntryCount,
		ManualReviewCount: s.ManualReviewCount,
	}
}

// EstateSummaryFromView converts an estate summary view to a response.
func EstateSummaryFromView(v *usecase.EstateSummaryView) EstateSummaryResponse {
	resp := estateSummary(v.Summary)
	resp.CaseID = v.CaseID
	resp.Scope = v.Scope
	resp.Cutoff = v.Cutoff.Format(dateLayout)
	resp.Warnings = WarningsFromDomain(v.Warnings)
	resp.ContentHash = v.ContentHash
	resp.Status = string(v.Status)
	return resp
}

// AggregationResponse is a period aggregate.
type AggregationResponse struct {
	CaseID              string                `json:"case_id"`
	PlanID              string                `json:"plan_id"`
	Scope               aggregation.Scope     `json:"scope"`
	PeriodType          domain.PeriodType     `json:"period_type"`
	Status              string                `json:"status,omitempty"`
	PendingChanges      int                   `json:"pending_changes"`
	Cached              bool                  `json:"cached"`
	Periods             []PeriodResponse      `json:"periods"`
	Categories          []CategoryResponse    `json:"categories"`
	Inflow              EstateSplitResponse   `json:"inflow"`
	Outflow             EstateSplitResponse   `json:"outflow"`
	OpeningBalance      Money                 `json:"opening_balance"`
	ClosingBalance      Money                 `json:"closing_balance"`
	Estate              EstateSummaryResponse `json:"estate"`
	Warnings            []WarningResponse     `json:"warnings"`
	EntryCount          int                   `json:"entry_count"`
	ExcludedCount       int                   `json:"excluded_count"`
	PreStartCount       int                   `json:"pre_start_count"`
	CentralCostsOmitted bool                  `json:"central_costs_omitted"`
	OmittedEntryCount   int                   `json:"omitted_entry_count"`
	OmittedAmount       Money                 `json:"omitted_amount"`
	ContentHash         string                `json:"content_hash"`
	CalculatedAt        time.Time             `json:"calculated_at"`
}

// AggregationFromResult converts an aggregation result to a response.
func AggregationFromResult(res *aggregation.Result) *AggregationResponse {
	periods := make([]PeriodResponse, len(res.Periods))
	for i, p := range res.Periods {
		periods[i] = PeriodResponse{
			Index:          p.Index,
			Label:          p.Label,
			Start:          p.Start.Format(dateLayout),
			End:            p.End.Format(dateLayout),
			OpeningBalance: MoneyFromCents(p.OpeningBalanceCents),
			ClosingBalance: MoneyFromCents(p.ClosingBalanceCents),
			Inflow:         estateSplit(p.Inflow),
			Outflow:        estateSplit(p.Outflow),
			Net:            MoneyFromCents(p.NetCents),
			EntryCount:     p.EntryCount,
		}
	}

	categories := make([]CategoryResponse, len(res.Categories))
	for i, c := range res.Categories {
		lines := make([]LineResponse, len(c.Lines))
		for j, l := range c.Lines {
			lines[j] = LineResponse{
				CounterpartyID: l.CounterpartyID,
				Name:           l.Name,
				Periods:        moneySlice(l.PeriodCents),
				Total:          MoneyFromCents(l.TotalCents),
			}
		}
		categories[i] = CategoryResponse{
			Flow:    c.Flow,
			Tag:     c.Tag,
			Periods: moneySlice(c.PeriodCents),
			Total:   MoneyFromCents(c.TotalCents),
			Estate:  estateSplit(c.Estate),
			Lines:   lines,
		}
	}

	return &AggregationResponse{
		CaseID:              res.CaseID,
		PlanID:              res.PlanID,
		Scope:               res.Scope,
		PeriodType:          res.PeriodType,
		Periods:             periods,
		Categories:          categories,
		Inflow:              estateSplit(res.Inflow),
		Outflow:             estateSplit(res.Outflow),
		OpeningBalance:      MoneyFromCents(res.OpeningBalanceCents),
		ClosingBalance:      MoneyFromCents(res.ClosingBalanceCents),
		Estate:              estateSummary(res.Estate),
		Warnings:            WarningsFromDomain(res.Warnings),
		EntryCount:          res.EntryCount,
		ExcludedCount:       res.ExcludedCount,
		PreStartCount:       res.PreStartCount,
		CentralCostsOmitted: res.CentralCostsOmitted,
		OmittedEntryCount:   res.OmittedEntryCount,
		OmittedAmount:       MoneyFromCents(res.OmittedAmountCents),
		ContentHash:         res.ContentHash,
		CalculatedAt:        res.CalculatedAt,
	}
}

// AggregationFromView converts an aggregation view to a response.
func AggregationFromView(v *usecase.AggregationView) *AggregationResponse {
	resp := AggregationFromResult(v.Result)
	resp.Status = string(v.Status)
	resp.PendingChanges = v.PendingChanges
	resp.Cached = v.Cached
	return resp
}

// AggregationStatusResponse reports whether a case's aggregate is current.
type AggregationStatusResponse struct {
	CaseID         string     `json:"case_id"`
	Status         string     `json:"status"`
	PendingChanges int        `json:"pending_changes"`
	LastHash       string     `json:"last_hash,omitempty"`
	LastBuiltAt    *time.Time `json:"last_built_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// StatusFromDomain converts an aggregation state to a response.
func StatusFromDomain(s *domain.AggregationState) AggregationStatusResponse {
	return AggregationStatusResponse{
		CaseID:         s.CaseID,
		Status:         string(s.Status),
		PendingChanges: s.PendingChanges,
		LastHash:       s.LastHash,
		LastBuiltAt:    s.LastBuiltAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// RebuildResponse is returned after a rebuild.
type RebuildResponse struct {
	State       AggregationStatusResponse `json:"state"`
	Aggregation *AggregationResponse      `json:"aggregation"`
}

// AccountPeriodResponse is the balance of one account in one period.
type AccountPeriodResponse struct {
	Index               int                      `json:"index"`
	Balance             Money                    `json:"balance"`
	Net                 Money                    `json:"net"`
	EntryCount          int                      `json:"entry_count"`
	Status              bankbalance.PeriodStatus `json:"status"`
	LastTransactionDate string                   `json:"last_transaction_date,omitempty"`
}

// AccountBalanceResponse is the trajectory of one bank account.
type AccountBalanceResponse struct {
	AccountID      string                  `json:"account_id"`
	Name           string                  `json:"name"`
	BankName       string                  `json:"bank_name,omitempty"`
	LocationID     string                  `json:"location_id,omitempty"`
	Status         domain.AccountStatus    `json:"status"`
	OpeningBalance Money                   `json:"opening_balance"`
	StartBalance   Money                   `json:"start_balance"`
	Periods        []AccountPeriodResponse `json:"periods"`
	FinalBalance   Money                   `json:"final_balance"`
}

// PeriodTotalResponse sums all accounts for one period.
type PeriodTotalResponse struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	Total     Money  `json:"total"`
	Available Money  `json:"available"`
}

// BankBalancesResponse is a bank balance report.
type BankBalancesResponse struct {
	Scope              aggregation.Scope        `json:"scope"`
	Accounts           []AccountBalanceResponse `json:"accounts"`
	Totals             []PeriodTotalResponse    `json:"totals"`
	FinalTotal         Money                    `json:"final_total"`
	FinalAvailable     Money                    `json:"final_available"`
	UnassignedCount    int                      `json:"unassigned_count"`
	BeyondHorizonCount int                      `json:"beyond_horizon_count"`
}

// BankBalancesFromReport converts a balance report to a response.
func BankBalancesFromReport(r *bankbalance.Report) *BankBalancesResponse {
	accounts := make([]AccountBalanceResponse, len(r.Accounts))
	for i, a := range r.Accounts {
		periods := make([]AccountPeriodResponse, len(a.Periods))
		for j, p := range a.Periods {
			periods[j] = AccountPeriodResponse{
				Index:      p.Index,
				Balance:    MoneyFromCents(p.BalanceCents),
				Net:        MoneyFromCents(p.NetCents),
				EntryCount: p.EntryCount,
				Status:     p.Status,
			}
			if p.LastTransactionDate != nil {
				periods[j].LastTransactionDate = p.LastTransactionDate.Format(dateLayout)
			}
		}
		accounts[i] = AccountBalanceResponse{
			AccountID:      a.AccountID,
			Name:           a.Name,
			BankName:       a.BankName,
			LocationID:     a.LocationID,
			Status:         a.Status,
			OpeningBalance: MoneyFromCents(a.OpeningBalanceCents),
			StartBalance:   MoneyFromCents(a.StartBalanceCents),
			Periods:        periods,
			FinalBalance:   MoneyFromCents(a.FinalBalanceCents),
		}
	}

	totals := make([]PeriodTotalResponse, len(r.Totals))
	for i, t := range r.Totals {
		totals[i] = PeriodTotalResponse{
			Index:     t.Index,
			Label:     t.Label,
			Total:     MoneyFromCents(t.TotalCents),
			Available: MoneyFromCents(t.AvailableCents),
		}
	}

	return &BankBalancesResponse{
		Scope:              r.Scope,
		Accounts:           accounts,
		Totals:             totals,
		FinalTotal:         MoneyFromCents(r.FinalTotalCents),
		FinalAvailable:     MoneyFromCents(r.FinalAvailableCents),
		UnassignedCount:    r.UnassignedCount,
		BeyondHorizonCount: r.BeyondHorizonCount,
	}
}

// UnmatchedResponse is an unreviewed entry no pattern matched.
type UnmatchedResponse struct {
	EntryID     string `json:"entry_id"`
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
}

// PatternErrorResponse reports a malformed counterparty pattern.
type PatternErrorResponse struct {
	CounterpartyID string `json:"counterparty_id"`
	Pattern        string `json:"pattern"`
	Error          string `json:"error"`
}

// ClassificationResponse reports a classification run.
type ClassificationResponse struct {
	SuggestionCount int                    `json:"suggestion_count"`
	Applied         int                    `json:"applied"`
	Skipped         int                    `json:"skipped"`
	Unmatched       []UnmatchedResponse    `json:"unmatched"`
	PatternErrors   []PatternErrorResponse `json:"pattern_errors"`
}

// ClassificationFromOutput converts a classification run to a response.
func ClassificationFromOutput(out *usecase.ClassifyOutput) ClassificationResponse {
	unmatched := make([]UnmatchedResponse, len(out.Unmatched))
	for i, u := range out.Unmatched {
		unmatched[i] = UnmatchedResponse{EntryID: u.EntryID, Description: u.Description, Amount: MoneyFromCents(u.AmountCents)}
	}
	patternErrs := make([]PatternErrorResponse, len(out.PatternErrors))
	for i, pe := range out.PatternErrors {
		patternErrs[i] = PatternErrorResponse{CounterpartyID: pe.CounterpartyID, Pattern: pe.Pattern}
		if pe.Err != nil {
			patternErrs[i].Error = pe.Err.Error()
		}
	}
	return ClassificationResponse{
		SuggestionCount: len(out.Suggestions),
		Applied:         out.Applied,
		Skipped:         out.Skipped,
		Unmatched:       unmatched,
		PatternErrors:   patternErrs,
	}
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID                      string                  `json:"id"`
	CaseID                  string                  `json:"case_id"`
	TransactionDate         string                  `json:"transaction_date,omitempty"`
	ServicePeriodStart      string                  `json:"service_period_start,omitempty"`
	ServicePeriodEnd        string                  `json:"service_period_end,omitempty"`
	ServiceDate             string                  `json:"service_date,omitempty"`
	Amount                  Money                   `json:"amount"`
	Description             string                  `json:"description"`
	CounterpartyID          string                  `json:"counterparty_id,omitempty"`
	LocationID              string                  `json:"location_id,omitempty"`
	BankAccountID           string                  `json:"bank_account_id,omitempty"`
	ValueKind               domain.ValueKind        `json:"value_kind"`
	ReviewStatus            domain.ReviewStatus     `json:"review_status"`
	EstateAllocation        domain.EstateAllocation `json:"estate_allocation,omitempty"`
	AllocationSource        domain.AllocationSource `json:"allocation_source,omitempty"`
	EstateRatio             string                  `json:"estate_ratio,omitempty"`
	CategoryTag             string                  `json:"category_tag,omitempty"`
	LegalBucket             domain.LegalBucket      `json:"legal_bucket,omitempty"`
	SteeringTags            []string                `json:"steering_tags,omitempty"`
	ParentEntryID           string                  `json:"parent_entry_id,omitempty"`
	SuggestedCounterpartyID string                  `json:"suggested_counterparty_id,omitempty"`
	SuggestedCategoryTag    string                  `json:"suggested_category_tag,omitempty"`
	SuggestedReason         string                  `json:"suggested_reason,omitempty"`
	ReviewedBy              string                  `json:"reviewed_by,omitempty"`
	ReviewedAt              *time.Time              `json:"reviewed_at,omitempty"`
	ReviewNote              string                  `json:"review_note,omitempty"`
	CreatedAt               time.Time               `json:"created_at"`
	UpdatedAt               time.Time               `json:"updated_at"`
}

// EntryFromDomain converts a domain entry to a response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	resp := &EntryResponse{
		ID:                      e.ID,
		CaseID:                  e.CaseID,
		Amount:                  MoneyFromCents(e.AmountCents),
		Description:             e.Description,
		CounterpartyID:          e.CounterpartyID,
		LocationID:              e.LocationID,
		BankAccountID:           e.BankAccountID,
		ValueKind:               e.ValueKind,
		ReviewStatus:            e.ReviewStatus,
		EstateAllocation:        e.EstateAllocation,
		AllocationSource:        e.AllocationSource,
		CategoryTag:             e.CategoryTag,
		LegalBucket:             e.LegalBucket,
		SteeringTags:            e.SteeringTags,
		ParentEntryID:           e.ParentEntryID,
		SuggestedCounterpartyID: e.SuggestedCounterpartyID,
		SuggestedCategoryTag:    e.SuggestedCategoryTag,
		SuggestedReason:         e.SuggestedReason,
		ReviewedBy:              e.ReviewedBy,
		ReviewedAt:              e.ReviewedAt,
		ReviewNote:              e.ReviewNote,
		CreatedAt:               e.CreatedAt,
		UpdatedAt:               e.UpdatedAt,
	}
	if !e.TransactionDate.IsZero() {
		resp.TransactionDate = e.TransactionDate.Format(dateLayout)
	}
	if e.ServicePeriod != nil {
		resp.ServicePeriodStart = e.ServicePeriod.Start.Format(dateLayout)
		resp.ServicePeriodEnd = e.ServicePeriod.End.Format(dateLayout)
	}
	if e.ServiceDate != nil {
		resp.ServiceDate = e.ServiceDate.Format(dateLayout)
	}
	if e.EstateRatio != nil {
		resp.EstateRatio = e.EstateRatio.String()
	}
	return resp
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i := range entries {
		result[i] = EntryFromDomain(&entries[i])
	}
	return result
}

// ListEntriesResponse represents a page of entries.
type ListEntriesResponse struct {
	Entries []*EntryResponse `json:"entries"`
	Total   int64            `json:"total"`
}

// SplitResponse is a previewed or committed split.
type SplitResponse struct {
	Parent       *EntryResponse   `json:"parent"`
	Children     []*EntryResponse `json:"children"`
	PreviewToken string           `json:"preview_token"`
	Committed    bool             `json:"committed"`
}

// SplitFromOutput converts a split output to a response.
func SplitFromOutput(out *usecase.SplitOutput) SplitResponse {
	return SplitResponse{
		Parent:       EntryFromDomain(&out.Parent),
		Children:     EntriesFromDomain(out.Children),
		PreviewToken: out.PreviewToken,
		Committed:    out.Committed,
	}
}

// UnsplitResponse reports a restored split entry.
type UnsplitResponse struct {
	EntryID         string `json:"entry_id"`
	RemovedChildren int    `json:"removed_children"`
}

// AuditLogResponse represents an audit log entry.
type AuditLogResponse struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	RequestID    string         `json:"request_id,omitempty"`
	BeforeState  map[string]any `json:"before_state,omitempty"`
	AfterState   map[string]any `json:"after_state,omitempty"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditLogsFromDomain converts audit logs to responses.
func AuditLogsFromDomain(logs []*domain.AuditLog) []AuditLogResponse {
	out := make([]AuditLogResponse, len(logs))
	for i, l := range logs {
		out[i] = AuditLogResponse{
			ID:           l.ID,
			UserID:       l.UserID,
			Action:       string(l.Action),
			ResourceType: l.ResourceType,
			ResourceID:   l.ResourceID,
			RequestID:    l.RequestID,
			BeforeState:  l.BeforeState,
			AfterState:   l.AfterState,
			Status:       string(l.Status),
			ErrorMessage: l.ErrorMessage,
			CreatedAt:    l.CreatedAt,
		}
	}
	return out
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
