package borrows

import (
	"time"

	"equipborrow-backend/internal/capacity"
	"equipborrow-backend/internal/platform/apierr"
	"equipborrow-backend/internal/platform/auth"
)

const (
	// MaxWindow is the longest reservation that can be requested.
	MaxWindow = 30 * 24 * time.Hour
	// StartGrace lets a request start slightly in the past to absorb clock skew.
	StartGrace = 5 * time.Minute
)

type Action string

const (
	ActionApprove       Action = "approve"
	ActionReject        Action = "reject"
	ActionCheckout      Action = "checkout"
	ActionRequestReturn Action = "request-return"
	ActionReturn        Action = "return"
	ActionComplete      Action = "complete"
	ActionCancel        Action = "cancel"
)

type transition struct {
	from []Status
	to   Status
}

var transitions = map[Action]transition{
	ActionApprove:       {from: []Status{StatusPending}, to: StatusApproved},
	ActionReject:        {from: []Status{StatusPending, StatusApproved}, to: StatusRejectedStaff},
	ActionCheckout:      {from: []Status{StatusApproved}, to: StatusActive},
	ActionRequestReturn: {from: []Status{StatusActive, StatusOverdue}, to: StatusPendingReturn},
	ActionReturn:        {from: []Status{StatusActive, StatusOverdue, StatusPendingReturn}, to: StatusReturned},
	ActionComplete:      {from: []Status{StatusReturned}, to: StatusCompleted},
	ActionCancel:        {from: []Status{StatusPending, StatusApproved}, to: StatusCancelled},
}

func ParseAction(s string) (Action, bool) {
	a := Action(s)
	_, ok := transitions[a]
	return a, ok
}

// CanApply reports whether action is legal from status.
func CanApply(a Action, from Status) bool {
	t, ok := transitions[a]
	if !ok {
		return false
	}
	for _, s := range t.from {
		if s == from {
			return true
		}
	}
	return false
}

// Target is the status a row lands in. Faculty rejections are recorded
// separately from staff ones.
func Target(a Action, actor auth.Actor) Status {
	if a == ActionReject && actor.Role == auth.RoleFaculty {
		return StatusRejectedFIC
	}
	return transitions[a].to
}

// Authorize checks the caller may run action on b. mates holds the user ids
// of b's borrow group.
func Authorize(a Action, actor auth.Actor, b *Borrow, mates map[string]bool) error {
	switch a {
	case ActionApprove, ActionReject:
		if actor.IsStaff() {
			return nil
		}
		if actor.IsFaculty() && b.FICID != nil && *b.FICID == actor.UserID {
			return nil
		}
		return apierr.ErrForbidden("only staff or the faculty in charge can " + string(a) + " this borrow")
	case ActionCheckout, ActionReturn, ActionComplete:
		if actor.IsStaff() {
			return nil
		}
		return apierr.ErrForbidden("only staff can " + string(a) + " borrows")
	case ActionRequestReturn:
		if b.BorrowerID == actor.UserID || mates[actor.UserID] {
			return nil
		}
		return apierr.ErrForbidden("only the borrower or a group mate can request a return")
	case ActionCancel:
		if b.BorrowerID == actor.UserID {
			return nil
		}
		return apierr.ErrForbidden("only the borrower can cancel")
	}
	return apierr.ErrInvalid("unknown action")
}

// ValidateWindow applies the request-time rules on a reservation window.
func ValidateWindow(w capacity.Window, now time.Time) error {
	if !w.Valid() {
		return apierr.ErrInvalid("start must be before end")
	}
	if w.Start.Before(now.Add(-StartGrace)) {
		return apierr.ErrInvalid("start cannot be in the past")
	}
	if w.Duration() > MaxWindow {
		return apierr.ErrInvalid("a reservation cannot exceed 30 days")
	}
	return nil
}

// CanView reports whether actor may read b.
func CanView(actor auth.Actor, b *Borrow, mates map[string]bool) bool {
	switch {
	case actor.IsStaff():
		return true
	case b.BorrowerID == actor.UserID, mates[actor.UserID]:
		return true
	case actor.IsFaculty() && b.FICID != nil && *b.FICID == actor.UserID:
		return true
	}
	return false
}

// Candidate is a PENDING borrow that may lose its slot after an approval.
type Candidate struct {
	BorrowID string
	Window   capacity.Window
}

// AutoRejectCandidates returns the pending borrows that can no longer be
// served: at some instant inside their window the blocking bookings already
// use all of stock.
func AutoRejectCandidates(pending []Candidate, blocking []capacity.Window, stock int) []string {
	var out []string
	for _, c := range pending {
		if capacity.Peak(blocking, c.Window) >= stock {
			out = append(out, c.BorrowID)
		}
	}
	return out
}

// IsLate reports a return after the due time.
func IsLate(b *Borrow, returnedAt time.Time) bool {
	return returnedAt.After(b.DueAt())
}
