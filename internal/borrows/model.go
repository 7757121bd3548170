package borrows

import "time"

type Status string

const (
	StatusPending           Status = "PENDING"
	StatusApproved          Status = "APPROVED"
	StatusRejectedFIC       Status = "REJECTED_FIC"
	StatusRejectedStaff     Status = "REJECTED_STAFF"
	StatusRejectedAutomatic Status = "REJECTED_AUTOMATIC"
	StatusActive            Status = "ACTIVE"
	StatusOverdue           Status = "OVERDUE"
	StatusPendingReturn     Status = "PENDING_RETURN"
	StatusReturned          Status = "RETURNED"
	StatusCompleted         Status = "COMPLETED"
	StatusCancelled         Status = "CANCELLED"
)

var Statuses = []string{
	string(StatusPending), string(StatusApproved), string(StatusRejectedFIC), string(StatusRejectedStaff),
	string(StatusRejectedAutomatic), string(StatusActive), string(StatusOverdue), string(StatusPendingReturn),
	string(StatusReturned), string(StatusCompleted), string(StatusCancelled),
}

// Blocking statuses hold a unit of stock.
func (s Status) Blocking() bool {
	switch s {
	case StatusApproved, StatusActive, StatusOverdue, StatusPendingReturn:
		return true
	}
	return false
}

// CheckedOut is true while the item is physically with the borrower.
func (s Status) CheckedOut() bool {
	return s == StatusActive || s == StatusOverdue || s == StatusPendingReturn
}

type ReservationType string

const (
	InClass    ReservationType = "IN_CLASS"
	OutOfClass ReservationType = "OUT_OF_CLASS"
)

var ReservationTypes = []string{string(InClass), string(OutOfClass)}

type ReturnCondition string

const (
	ConditionGood    ReturnCondition = "GOOD"
	ConditionDamaged ReturnCondition = "DAMAGED"
	ConditionLost    ReturnCondition = "LOST"
)

var ReturnConditions = []string{string(ConditionGood), string(ConditionDamaged), string(ConditionLost)}

type Borrow struct {
	ID                string
	GroupID           *string
	EquipmentID       string
	BorrowerID        string
	ClassID           *string
	FICID             *string
	Status            Status
	ReservationType   ReservationType
	Purpose           *string
	RequestedStart    time.Time
	RequestedEnd      time.Time
	ApprovedStart     *time.Time
	ApprovedEnd       *time.Time
	ApprovedByID      *string
	RejectedByID      *string
	RejectReason      *string
	CheckoutTime      *time.Time
	CheckedOutByID    *string
	ReturnRequestedAt *time.Time
	ActualReturnTime  *time.Time
	ReceivedByID      *string
	ReturnCondition   *ReturnCondition
	ReturnRemarks     *string
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Joined for display.
	EquipmentCode string
	EquipmentName string
	BorrowerName  string
}

// DueAt is the end of the approved window, or the requested one before approval.
func (b *Borrow) DueAt() time.Time {
	if b.ApprovedEnd != nil {
		return *b.ApprovedEnd
	}
	return b.RequestedEnd
}

type GroupMate struct {
	UserID  string    `json:"user_id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	AddedAt time.Time `json:"added_at"`
}
