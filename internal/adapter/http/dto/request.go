package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/estateledger/internal/domain"
)

const dateLayout = "2006-01-02"

// ServicePeriodRequest is an inclusive date range.
type ServicePeriodRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (p *ServicePeriodRequest) toDomain() (*domain.ServicePeriod, error) {
	if p == nil {
		return nil, nil
	}
	start, err := time.Parse(dateLayout, p.Start)
	if err != nil {
		return nil, fmt.Errorf("%w: start %q", domain.ErrInvalidServicePeriod, p.Start)
	}
	end, err := time.Parse(dateLayout, p.End)
	if err != nil {
		return nil, fmt.Errorf("%w: end %q", domain.ErrInvalidServicePeriod, p.End)
	}
	return &domain.ServicePeriod{Start: start, End: end}, nil
}

// ReviewRequest confirms or adjusts an entry.
type ReviewRequest struct {
	Action           string                `json:"action"`
	Reviewer         string                `json:"reviewer"`
	Reason           string                `json:"reason,omitempty"`
	CounterpartyID   string                `json:"counterparty_id,omitempty"`
	CategoryTag      string                `json:"category_tag,omitempty"`
	LegalBucket      string                `json:"legal_bucket,omitempty"`
	EstateAllocation string                `json:"estate_allocation,omitempty"`
	EstateRatio      string                `json:"estate_ratio,omitempty"`
	ServicePeriod    *ServicePeriodRequest `json:"service_period,omitempty"`
}

// ToDomain converts to a domain review request.
func (r *ReviewRequest) ToDomain() (domain.ReviewRequest, error) {
	req := domain.ReviewRequest{
		Action:           domain.ReviewAction(r.Action),
		Reviewer:         r.Reviewer,
		Reason:           r.Reason,
		CounterpartyID:   r.CounterpartyID,
		CategoryTag:      r.CategoryTag,
		LegalBucket:      domain.LegalBucket(r.LegalBucket),
		EstateAllocation: domain.EstateAllocation(r.EstateAllocation),
	}

	if r.EstateRatio != "" {
		ratio, err := domain.ParseRatio(r.EstateRatio)
		if err != nil {
			return domain.ReviewRequest{}, err
		}
		req.EstateRatio = &ratio
	}

	period, err := r.ServicePeriod.toDomain()
	if err != nil {
		return domain.ReviewRequest{}, err
	}
	req.ServicePeriod = period

	return req, nil
}

// SplitChildRequest is one part of a split. Amount is either cents or a
// decimal EUR string; cents win when both are set.
type SplitChildRequest struct {
	AmountCents    int64                 `json:"amount_cents,omitempty"`
	Amount         string                `json:"amount,omitempty"`
	Description    string                `json:"description,omitempty"`
	CounterpartyID string                `json:"counterparty_id,omitempty"`
	LocationID     string                `json:"location_id,omitempty"`
	CategoryTag    string                `json:"category_tag,omitempty"`
	ServicePeriod  *ServicePeriodRequest `json:"service_period,omitempty"`
}

// SplitRequest divides an entry into children.
type SplitRequest struct {
	Reason       string              `json:"reason"`
	PreviewToken string              `json:"preview_token,omitempty"`
	Children     []SplitChildRequest `json:"children"`
}

// ToDomain converts to a domain split request.
func (r *SplitRequest) ToDomain() (domain.SplitRequest, error) {
	req := domain.SplitRequest{
		Reason:   r.Reason,
		Children: make([]domain.SplitChild, 0, len(r.Children)),
	}

	for i, c := range r.Children {
		cents := c.AmountCents
		if cents == 0 && c.Amount != "" {
			parsed, err := ParseEUR(c.Amount)
			if err != nil {
				return domain.SplitRequest{}, fmt.Errorf("child %d: %w", i, err)
			}
			cents = parsed
		}

		period, err := c.ServicePeriod.toDomain()
		if err != nil {
			return domain.SplitRequest{}, fmt.Errorf("child %d: %w", i, err)
		}

		req.Children = append(req.Children, domain.SplitChild{
			AmountCents:    cents,
			Description:    c.Description,
			CounterpartyID: c.CounterpartyID,
			LocationID:     c.LocationID,
			CategoryTag:    c.CategoryTag,
			ServicePeriod:  period,
		})
	}

	return req, nil
}

// UnsplitRequest restores a split entry.
type UnsplitRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ClassificationRunRequest starts a classification run.
type ClassificationRunRequest struct {
	DryRun bool `json:"dry_run"`
}

// ParseEUR converts a decimal EUR amount into cents. More than two decimal
// places are rejected.
func ParseEUR(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	cents := d.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("invalid amount %q: more than two decimal places", s)
	}
	return cents.IntPart(), nil
}
