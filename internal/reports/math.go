package reports

import (
	"math"
	"time"

	"equipborrow-backend/internal/capacity"
)

// Repair is one CORRECTIVE maintenance log. An open log has no End.
type Repair struct {
	EquipmentID string
	Start       time.Time
	End         *time.Time
}

// Usage is one checked-out interval. End is nil while the item is still out.
type Usage struct {
	EquipmentID string
	ClassID     *string
	BorrowerID  string
	Start       time.Time
	End         *time.Time
}

func hours(d time.Duration) float64 { return d.Hours() }

func round2(f float64) float64 { return math.Round(f*100) / 100 }

// closed returns the interval of an open-ended record, capped at now.
func closed(start time.Time, end *time.Time, now time.Time) capacity.Window {
	if end != nil {
		return capacity.Window{Start: start, End: *end}
	}
	return capacity.Window{Start: start, End: now}
}

// MTTR is the mean repair time in hours of repairs completed inside in.
// It is nil when nothing was completed.
func MTTR(repairs []Repair, in capacity.Window) *float64 {
	var (
		sum time.Duration
		n   int
	)
	for _, r := range repairs {
		if r.End == nil || r.End.Before(in.Start) || !r.End.Before(in.End) {
			continue
		}
		sum += r.End.Sub(r.Start)
		n++
	}
	if n == 0 {
		return nil
	}
	v := round2(hours(sum) / float64(n))
	return &v
}

// Downtime is the repair time that falls inside in, in hours. Open repairs
// count until now. Overlapping logs are not merged.
func Downtime(repairs []Repair, in capacity.Window, now time.Time) float64 {
	var sum time.Duration
	for _, r := range repairs {
		if c, ok := closed(r.Start, r.End, now).Clip(in); ok {
			sum += c.Duration()
		}
	}
	return hours(sum)
}

// Failures counts repairs that started inside in.
func Failures(repairs []Repair, in capacity.Window) int {
	n := 0
	for _, r := range repairs {
		if !r.Start.Before(in.Start) && r.Start.Before(in.End) {
			n++
		}
	}
	return n
}

// MTBF is (range hours minus downtime) divided by failures, in hours. It is
// nil when there were no failures.
func MTBF(repairs []Repair, in capacity.Window, now time.Time) *float64 {
	f := Failures(repairs, in)
	if f == 0 {
		return nil
	}
	up := hours(in.Duration()) - Downtime(repairs, in, now)
	if up < 0 {
		up = 0
	}
	v := round2(up / float64(f))
	return &v
}

// UsedHours sums the checked-out time inside in.
func UsedHours(usages []Usage, in capacity.Window, now time.Time) float64 {
	var sum time.Duration
	for _, u := range usages {
		if c, ok := closed(u.Start, u.End, now).Clip(in); ok {
			sum += c.Duration()
		}
	}
	return hours(sum)
}

// Utilization is used hours over available unit-hours, as a percentage.
// Hours after now are not available yet and stay out of the denominator.
func Utilization(usages []Usage, in capacity.Window, stock int, now time.Time) float64 {
	if now.Before(in.End) {
		in.End = now
	}
	if !in.Valid() {
		return 0
	}
	total := hours(in.Duration()) * float64(stock)
	if total <= 0 {
		return 0
	}
	return round2(UsedHours(usages, in, now) / total * 100)
}

// DistinctBorrowers counts borrowers with any usage inside in.
func DistinctBorrowers(usages []Usage, in capacity.Window, now time.Time) int {
	seen := map[string]bool{}
	for _, u := range usages {
		if closed(u.Start, u.End, now).Overlaps(in) {
			seen[u.BorrowerID] = true
		}
	}
	return len(seen)
}
