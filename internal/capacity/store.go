package capacity

import (
	"context"
	"database/sql"
	"time"

	"equipborrow-backend/internal/platform/db"
)

// BlockingStatuses hold a unit of stock.
var BlockingStatuses = []string{"APPROVED", "ACTIVE", "OVERDUE", "PENDING_RETURN"}

// farFuture closes open-ended windows. MySQL DATETIME stops at year 9999.
var farFuture = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// Booking is one blocking borrow as seen by capacity checks.
type Booking struct {
	BorrowID string
	Status   string
	Window   Window
	Out      bool
}

func isOut(status string, checkout *time.Time) bool {
	return checkout != nil && (status == "ACTIVE" || status == "OVERDUE" || status == "PENDING_RETURN")
}

// EffectiveWindow picks the approved window when present, else the requested
// one. Items already out block from their checkout time, and until now when
// their end has passed.
func EffectiveWindow(status string, reqStart, reqEnd time.Time, apStart, apEnd, checkout *time.Time, now time.Time) Window {
	w := Window{Start: reqStart, End: reqEnd}
	if apStart != nil && apEnd != nil {
		w = Window{Start: *apStart, End: *apEnd}
	}
	if isOut(status, checkout) {
		if checkout.Before(w.Start) {
			w.Start = *checkout
		}
		if w.End.Before(now) {
			w.End = now
		}
	}
	return w
}

// LoadBlocking returns the blocking bookings of one equipment item that may
// touch in. excludeIDs are left out, which lets callers re-check a row
// against everything else.
func LoadBlocking(ctx context.Context, q db.DBTX, equipmentID string, in Window, now time.Time, excludeIDs ...string) ([]Booking, error) {
	all, err := queryBlocking(ctx, q, equipmentID, in, now, excludeIDs)
	if err != nil {
		return nil, err
	}
	var out []Booking
	for _, b := range all {
		if b.Window.Overlaps(in) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Committed returns the most units the blocking bookings of one item hold at
// any instant from now on. A unit still out is held until it comes back.
func Committed(ctx context.Context, q db.DBTX, equipmentID string, now time.Time, excludeIDs ...string) (int, error) {
	ahead := Window{Start: now, End: farFuture}
	all, err := queryBlocking(ctx, q, equipmentID, ahead, now, excludeIDs)
	if err != nil {
		return 0, err
	}
	ws := make([]Window, 0, len(all))
	for _, b := range all {
		w := b.Window
		if b.Out && !w.End.After(now) {
			w.End = farFuture
		}
		ws = append(ws, w)
	}
	return Peak(ws, ahead), nil
}

func queryBlocking(ctx context.Context, q db.DBTX, equipmentID string, in Window, now time.Time, excludeIDs []string) ([]Booking, error) {
	// Checked-out rows may run past their end and start before their
	// window, so they are loaded on checkout time and trimmed by the caller.
	query := `
SELECT id, status, requested_start, requested_end, approved_start, approved_end, checkout_time
FROM borrows
WHERE equipment_id = ?
  AND status IN (` + db.InPlaceholders(len(BlockingStatuses)) + `)
  AND (COALESCE(approved_start, requested_start) < ? OR checkout_time < ?)
  AND (COALESCE(approved_end, requested_end) > ? OR checkout_time IS NOT NULL)`
	args := []any{equipmentID}
	args = append(args, db.StringArgs(BlockingStatuses)...)
	args = append(args, in.End, in.End, in.Start)
	if len(excludeIDs) > 0 {
		query += ` AND id NOT IN (` + db.InPlaceholders(len(excludeIDs)) + `)`
		args = append(args, db.StringArgs(excludeIDs)...)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []Booking
	for rows.Next() {
		var (
			b              Booking
			rs, re         time.Time
			apStart, apEnd sql.NullTime
			checkout       sql.NullTime
		)
		if err := rows.Scan(&b.BorrowID, &b.Status, &rs, &re, &apStart, &apEnd, &checkout); err != nil {
			return nil, err
		}
		co := db.TimePtr(checkout)
		b.Window = EffectiveWindow(b.Status, rs, re, db.TimePtr(apStart), db.TimePtr(apEnd), co, now)
		b.Out = isOut(b.Status, co)
		all = append(all, b)
	}
	return all, rows.Err()
}

func Windows(bs []Booking) []Window {
	out := make([]Window, len(bs))
	for i, b := range bs {
		out[i] = b.Window
	}
	return out
}
