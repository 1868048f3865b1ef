package recurrence

import (
	"fmt"
	"time"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/id"
)

// Frequency is the repeat cadence of a rule.
type Frequency string

const (
	// FrequencyDaily repeats every Interval days.
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly repeats every Interval weeks.
	FrequencyWeekly Frequency = "weekly"
	// FrequencyMonthly repeats every Interval calendar months.
	FrequencyMonthly Frequency = "monthly"
	// FrequencyCustom walks calendar days and keeps those whose weekday is
	// in DaysOfWeek. Interval is not consulted.
	FrequencyCustom Frequency = "custom"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyCustom:
		return true
	default:
		return false
	}
}

// Rule is the generating rule for a recurring job series. Jobs reference
// rules by SeriesID; a rule may outlive any one occurrence.
//
// Exactly one bound must be supplied. When both Count and UntilDate are
// given, Count is authoritative and UntilDate is ignored. A rule with
// neither never validates: unbounded series are not permitted.
//
// UntilDate is inclusive at day granularity: an occurrence on the until
// day itself is kept regardless of its time-of-day.
type Rule struct {
	fieldline.Entity

	ID       id.SeriesID `json:"id"`
	TenantID id.TenantID `json:"tenant_id"`

	Frequency Frequency  `json:"frequency"`
	Interval  int        `json:"interval"`
	Count     *int       `json:"count,omitempty"`
	UntilDate *time.Time `json:"until_date,omitempty"`

	// DaysOfWeek is required for custom rules and rejected otherwise.
	// time.Weekday numbering (Sunday = 0).
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`
}

// Validate checks the structural invariants of a rule.
func (r *Rule) Validate() error {
	if r.TenantID.IsNil() {
		return fieldline.NewValidationError("tenant_id", "required")
	}
	if !r.Frequency.Valid() {
		return fieldline.NewValidationError("frequency", fmt.Sprintf("unknown frequency %q", r.Frequency))
	}
	if r.Interval < 1 {
		return fieldline.NewValidationError("interval", "must be a positive integer")
	}
	if r.Count == nil && r.UntilDate == nil {
		return fieldline.NewValidationError("count", "rule must carry a count or an until date; unbounded series are not permitted")
	}
	if r.Count != nil && *r.Count < 1 {
		return fieldline.NewValidationError("count", "must be at least 1")
	}

	if r.Frequency == FrequencyCustom {
		if len(r.DaysOfWeek) == 0 {
			return fieldline.NewValidationError("days_of_week", "required for custom frequency")
		}
		for _, d := range r.DaysOfWeek {
			if d < time.Sunday || d > time.Saturday {
				return fieldline.NewValidationError("days_of_week", fmt.Sprintf("invalid weekday %d", d))
			}
		}
	} else if len(r.DaysOfWeek) > 0 {
		return fieldline.NewValidationError("days_of_week", "only valid for custom frequency")
	}

	return nil
}

// Clone returns a deep copy.
func (r *Rule) Clone() *Rule {
	cp := *r
	if r.Count != nil {
		v := *r.Count
		cp.Count = &v
	}
	if r.UntilDate != nil {
		v := *r.UntilDate
		cp.UntilDate = &v
	}
	if r.DaysOfWeek != nil {
		cp.DaysOfWeek = append([]time.Weekday(nil), r.DaysOfWeek...)
	}

	return &cp
}
