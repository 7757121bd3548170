// Package capacity answers how many units of one equipment item are tied up
// over a time window.
package capacity

import (
	"sort"
	"time"
)

// Window is half-open: [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Valid() bool { return w.Start.Before(w.End) }

func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// Clip returns the part of w inside in, and false when they do not overlap.
func (w Window) Clip(in Window) (Window, bool) {
	if !w.Overlaps(in) {
		return Window{}, false
	}
	out := w
	if out.Start.Before(in.Start) {
		out.Start = in.Start
	}
	if out.End.After(in.End) {
		out.End = in.End
	}
	return out, true
}

type event struct {
	at    time.Time
	delta int
}

// Peak is the largest number of windows that are simultaneously open at some
// instant inside in.
func Peak(windows []Window, in Window) int {
	events := make([]event, 0, len(windows)*2)
	for _, w := range windows {
		c, ok := w.Clip(in)
		if !ok {
			continue
		}
		events = append(events, event{c.Start, +1}, event{c.End, -1})
	}
	// Ends sort before starts at the same instant: back-to-back bookings
	// do not overlap.
	sort.Slice(events, func(i, j int) bool {
		if events[i].at.Equal(events[j].at) {
			return events[i].delta < events[j].delta
		}
		return events[i].at.Before(events[j].at)
	})

	cur, peak := 0, 0
	for _, e := range events {
		cur += e.delta
		if cur > peak {
			peak = cur
		}
	}
	return peak
}

// Fits reports whether qty more units can be booked over in.
func Fits(existing []Window, in Window, qty, stock int) bool {
	return Peak(existing, in)+qty <= stock
}

type Availability struct {
	Window    Window `json:"window"`
	Stock     int    `json:"stock"`
	Peak      int    `json:"peak_in_use"`
	Available int    `json:"available"`
}

func Compute(existing []Window, in Window, stock int) Availability {
	peak := Peak(existing, in)
	avail := stock - peak
	if avail < 0 {
		avail = 0
	}
	return Availability{Window: in, Stock: stock, Peak: peak, Available: avail}
}
