package aggregation

import (
	"fmt"
	"time"

	"github.com/iho/estateledger/internal/domain"
)

// Position locates a date relative to the plan horizon.
type Position int

const (
	PositionBefore Position = iota
	PositionWithin
	PositionBeyond
)

func (p Position) String() string {
	switch p {
	case PositionBefore:
		return "BEFORE"
	case PositionWithin:
		return "WITHIN"
	default:
		return "BEYOND"
	}
}

var germanMonths = [12]string{"Jan", "Feb", "Mär", "Apr", "Mai", "Jun", "Jul", "Aug", "Sep", "Okt", "Nov", "Dez"}

// Bucketer maps dates to plan period indexes.
type Bucketer struct {
	periodType domain.PeriodType
	count      int
	start      time.Time
}

// NewBucketer validates p and builds a bucketer for it.
func NewBucketer(p *domain.Plan) (*Bucketer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Bucketer{periodType: p.PeriodType, count: p.PeriodCount, start: domain.DateOf(p.StartDate)}, nil
}

// Count returns the number of periods.
func (b *Bucketer) Count() int { return b.count }

// Index returns the period index of date. The index is only meaningful for PositionWithin.
func (b *Bucketer) Index(date time.Time) (int, Position) {
	date = domain.DateOf(date)
	if date.Before(b.start) {
		return -1, PositionBefore
	}
	var idx int
	if b.periodType == domain.PeriodWeekly {
		idx = int(domain.DaysBetween(b.start, date) / 7)
	} else {
		idx = domain.MonthsBetween(b.start, date)
	}
	if idx >= b.count {
		return idx, PositionBeyond
	}
	return idx, PositionWithin
}

// Bounds returns the inclusive first and last day of period idx.
func (b *Bucketer) Bounds(idx int) (time.Time, time.Time) {
	if b.periodType == domain.PeriodWeekly {
		start := b.start.AddDate(0, 0, 7*idx)
		return start, start.AddDate(0, 0, 6)
	}
	start := domain.AddMonths(b.start, idx)
	if idx == 0 {
		start = b.start
	}
	return start, domain.MonthEnd(start)
}

// Label renders "KW 05" for weeks and "Okt 25" for months.
func (b *Bucketer) Label(idx int) string {
	start, _ := b.Bounds(idx)
	if b.periodType == domain.PeriodWeekly {
		_, week := start.ISOWeek()
		return fmt.Sprintf("KW %02d", week)
	}
	return fmt.Sprintf("%s %02d", germanMonths[start.Month()-1], start.Year()%100)
}
