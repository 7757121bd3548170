package borrows

import "time"

// ===== Requests =====

type CreateBorrowRequest struct {
	EquipmentID     string    `json:"equipment_id" binding:"required"`
	Start           time.Time `json:"start" binding:"required"`
	End             time.Time `json:"end" binding:"required"`
	Purpose         *string   `json:"purpose,omitempty" binding:"omitempty,max=2000"`
	ReservationType *string   `json:"reservation_type,omitempty" binding:"omitempty,reservation_type"`
	ClassID         *string   `json:"class_id,omitempty"`
	BorrowerID      *string   `json:"borrower_id,omitempty"` // staff only: book on behalf of someone
}

type BulkItem struct {
	EquipmentID string `json:"equipment_id" binding:"required"`
	Quantity    int    `json:"quantity,omitempty" binding:"omitempty,min=1,max=50"`
}

type CreateBulkRequest struct {
	Items           []BulkItem `json:"items" binding:"required,min=1,max=50,dive"`
	Start           time.Time  `json:"start" binding:"required"`
	End             time.Time  `json:"end" binding:"required"`
	Purpose         *string    `json:"purpose,omitempty" binding:"omitempty,max=2000"`
	ReservationType *string    `json:"reservation_type,omitempty" binding:"omitempty,reservation_type"`
	ClassID         *string    `json:"class_id,omitempty"`
	GroupMateIDs    []string   `json:"group_mate_ids,omitempty" binding:"omitempty,max=50,dive,required"`
	BorrowerID      *string    `json:"borrower_id,omitempty"`
}

// ActionRequest is the optional body of a single-row transition.
type ActionRequest struct {
	Reason    *string `json:"reason,omitempty" binding:"omitempty,max=255"`
	Condition *string `json:"condition,omitempty" binding:"omitempty,return_condition"`
	Remarks   *string `json:"remarks,omitempty" binding:"omitempty,max=2000"`
}

// BulkActionRequest selects rows by group or by ids; exactly one must be set.
type BulkActionRequest struct {
	BorrowGroupID *string  `json:"borrowGroupId,omitempty"`
	BorrowIDs     []string `json:"borrowIds,omitempty" binding:"omitempty,max=200,dive,required"`
	ActionRequest
}

// ===== Responses =====

type BorrowResponse struct {
	ID                string           `json:"id"`
	BorrowGroupID     *string          `json:"borrow_group_id,omitempty"`
	EquipmentID       string           `json:"equipment_id"`
	EquipmentCode     string           `json:"equipment_code"`
	EquipmentName     string           `json:"equipment_name"`
	BorrowerID        string           `json:"borrower_id"`
	BorrowerName      string           `json:"borrower_name"`
	ClassID           *string          `json:"class_id,omitempty"`
	FICID             *string          `json:"fic_id,omitempty"`
	Status            Status           `json:"status"`
	ReservationType   ReservationType  `json:"reservation_type"`
	Purpose           *string          `json:"purpose,omitempty"`
	RequestedStart    time.Time        `json:"requested_start"`
	RequestedEnd      time.Time        `json:"requested_end"`
	ApprovedStart     *time.Time       `json:"approved_start,omitempty"`
	ApprovedEnd       *time.Time       `json:"approved_end,omitempty"`
	ApprovedByID      *string          `json:"approved_by_id,omitempty"`
	RejectedByID      *string          `json:"rejected_by_id,omitempty"`
	RejectReason      *string          `json:"reject_reason,omitempty"`
	CheckoutTime      *time.Time       `json:"checkout_time,omitempty"`
	CheckedOutByID    *string          `json:"checked_out_by_id,omitempty"`
	ReturnRequestedAt *time.Time       `json:"return_requested_at,omitempty"`
	ActualReturnTime  *time.Time       `json:"actual_return_time,omitempty"`
	ReceivedByID      *string          `json:"received_by_id,omitempty"`
	ReturnCondition   *ReturnCondition `json:"return_condition,omitempty"`
	ReturnRemarks     *string          `json:"return_remarks,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

type GroupResponse struct {
	BorrowGroupID string           `json:"borrow_group_id"`
	Borrows       []BorrowResponse `json:"borrows"`
	Mates         []GroupMate      `json:"group_mates"`
}

type SkippedBorrow struct {
	BorrowID string `json:"borrow_id"`
	Status   Status `json:"status"`
	Reason   string `json:"reason"`
}

type BulkResult struct {
	Action       Action           `json:"action"`
	Updated      []BorrowResponse `json:"updated"`
	Skipped      []SkippedBorrow  `json:"skipped"`
	AutoRejected []string         `json:"auto_rejected,omitempty"`
	Deficiencies []string         `json:"deficiencies,omitempty"`
}

type OverdueResult struct {
	Marked    int      `json:"marked"`
	BorrowIDs []string `json:"borrow_ids"`
}

// ===== Listing helpers =====

type BorrowQuery struct {
	Status      *string
	EquipmentID *string
	BorrowerID  *string
	ClassID     *string
	GroupID     *string
	From        *time.Time // requested window overlaps [From, To)
	To          *time.Time

	// visibility, set by the service
	visibleTo  *string
	visibleFIC bool
}

func toResponse(b *Borrow) BorrowResponse {
	return BorrowResponse{
		ID:                b.ID,
		BorrowGroupID:     b.GroupID,
		EquipmentID:       b.EquipmentID,
		EquipmentCode:     b.EquipmentCode,
		EquipmentName:     b.EquipmentName,
		BorrowerID:        b.BorrowerID,
		BorrowerName:      b.BorrowerName,
		ClassID:           b.ClassID,
		FICID:             b.FICID,
		Status:            b.Status,
		ReservationType:   b.ReservationType,
		Purpose:           b.Purpose,
		RequestedStart:    b.RequestedStart,
		RequestedEnd:      b.RequestedEnd,
		ApprovedStart:     b.ApprovedStart,
		ApprovedEnd:       b.ApprovedEnd,
		ApprovedByID:      b.ApprovedByID,
		RejectedByID:      b.RejectedByID,
		RejectReason:      b.RejectReason,
		CheckoutTime:      b.CheckoutTime,
		CheckedOutByID:    b.CheckedOutByID,
		ReturnRequestedAt: b.ReturnRequestedAt,
		ActualReturnTime:  b.ActualReturnTime,
		ReceivedByID:      b.ReceivedByID,
		ReturnCondition:   b.ReturnCondition,
		ReturnRemarks:     b.ReturnRemarks,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
}

func toResponses(bs []Borrow) []BorrowResponse {
	out := make([]BorrowResponse, len(bs))
	for i := range bs {
		out[i] = toResponse(&bs[i])
	}
	return out
}
