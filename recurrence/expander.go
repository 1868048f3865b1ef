package recurrence

import (
	"fmt"
	"time"

	"github.com/fieldline/fieldline"
)

// maxOccurrences caps a single expansion. A rule that would produce more is
// rejected rather than truncated.
const maxOccurrences = 1000

// Anchor is the first occurrence a rule expands from: a concrete start
// instant and the duration every occurrence inherits.
type Anchor struct {
	Start    time.Time
	Duration time.Duration
}

// Window is one occurrence's half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Expand materializes the ordered, finite occurrence windows for a rule.
// The anchor is always a candidate for the first occurrence; for custom
// rules it is kept only if its weekday is in DaysOfWeek. Expansion is
// computed once at creation time; it is not a live iterator.
func Expand(anchor Anchor, rule *Rule) ([]Window, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if anchor.Start.IsZero() {
		return nil, fieldline.NewValidationError("start_time", "anchor start required")
	}
	if anchor.Duration < 0 {
		return nil, fieldline.NewValidationError("duration", "must not be negative")
	}

	var starts []time.Time
	switch rule.Frequency {
	case FrequencyDaily:
		starts = expandStepped(rule, func(i int) time.Time {
			return anchor.Start.AddDate(0, 0, i*rule.Interval)
		})
	case FrequencyWeekly:
		starts = expandStepped(rule, func(i int) time.Time {
			return anchor.Start.AddDate(0, 0, i*7*rule.Interval)
		})
	case FrequencyMonthly:
		starts = expandStepped(rule, func(i int) time.Time {
			return addMonthsClamped(anchor.Start, i*rule.Interval)
		})
	case FrequencyCustom:
		starts = expandCustom(anchor.Start, rule)
	}

	if len(starts) == 0 {
		return nil, fieldline.NewValidationError("until_date", "rule yields no occurrences")
	}
	if len(starts) > maxOccurrences {
		return nil, fieldline.NewValidationError("count", fmt.Sprintf("rule yields more than %d occurrences", maxOccurrences))
	}

	windows := make([]Window, len(starts))
	for i, s := range starts {
		windows[i] = Window{Start: s, End: s.Add(anchor.Duration)}
	}

	return windows, nil
}

// expandStepped generates occurrence starts for the fixed-step frequencies.
// gen(i) returns the i-th start counted from the anchor (gen(0) is the
// anchor itself).
func expandStepped(rule *Rule, gen func(i int) time.Time) []time.Time {
	var starts []time.Time
	for i := 0; ; i++ {
		s := gen(i)
		if !withinBounds(s, rule, len(starts)) {
			break
		}
		starts = append(starts, s)
		if len(starts) > maxOccurrences {
			break
		}
	}

	return starts
}

// expandCustom walks calendar days from the anchor, keeping days whose
// weekday is in the rule's set.
func expandCustom(anchorStart time.Time, rule *Rule) []time.Time {
	keep := make(map[time.Weekday]bool, len(rule.DaysOfWeek))
	for _, d := range rule.DaysOfWeek {
		keep[d] = true
	}

	var starts []time.Time
	for day := 0; ; day++ {
		s := anchorStart.AddDate(0, 0, day)
		if rule.Count != nil {
			if len(starts) >= *rule.Count {
				break
			}
			// A non-empty weekday set matches at least once per seven days,
			// so the walk is bounded even before the count fills.
			if day > (*rule.Count+1)*7 {
				break
			}
		} else if afterUntil(s, *rule.UntilDate) {
			break
		}
		if keep[s.Weekday()] {
			starts = append(starts, s)
		}
		if len(starts) > maxOccurrences {
			break
		}
	}

	return starts
}

// withinBounds reports whether a stepped occurrence belongs in the series.
// Count takes precedence over UntilDate when both are present.
func withinBounds(start time.Time, rule *Rule, have int) bool {
	if rule.Count != nil {
		return have < *rule.Count
	}

	return !afterUntil(start, *rule.UntilDate)
}

// afterUntil compares at day granularity in the occurrence's location:
// the until day itself is inclusive.
func afterUntil(start, until time.Time) bool {
	sy, sm, sd := start.Date()
	uy, um, ud := until.In(start.Location()).Date()
	sDay := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	uDay := time.Date(uy, um, ud, 0, 0, 0, 0, time.UTC)

	return sDay.After(uDay)
}

// addMonthsClamped advances by whole calendar months keeping the anchor's
// day-of-month. When the target month is shorter, the day clamps to that
// month's last day (an anchor on the 31st lands on Feb 28/29, Apr 30, and
// so on), so every month in the series produces exactly one occurrence.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}

	return time.Date(first.Year(), first.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
