package deficiencies

import "time"

type CreateRequest struct {
	BorrowID    string  `json:"borrow_id" binding:"required,ulid"`
	Type        string  `json:"type" binding:"required,deficiency_type"`
	Description *string `json:"description,omitempty" binding:"omitempty,max=2000"`
}

type ResolveRequest struct {
	Resolution string `json:"resolution" binding:"required,max=2000"`
}

type Query struct {
	Status   *string
	Type     *string
	UserID   *string
	BorrowID *string
}

type Response struct {
	ID            string     `json:"id"`
	BorrowID      string     `json:"borrow_id"`
	UserID        string     `json:"user_id"`
	UserName      string     `json:"user_name"`
	EquipmentCode string     `json:"equipment_code"`
	EquipmentName string     `json:"equipment_name"`
	TaggedByID    *string    `json:"tagged_by_id,omitempty"`
	Type          Type       `json:"type"`
	Status        Status     `json:"status"`
	Description   *string    `json:"description,omitempty"`
	Resolution    *string    `json:"resolution,omitempty"`
	ResolvedByID  *string    `json:"resolved_by_id,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toResponse(d *Deficiency) Response {
	return Response{
		ID:            d.ID,
		BorrowID:      d.BorrowID,
		UserID:        d.UserID,
		UserName:      d.UserName,
		EquipmentCode: d.EquipmentCode,
		EquipmentName: d.EquipmentName,
		TaggedByID:    d.TaggedByID,
		Type:          d.Type,
		Status:        d.Status,
		Description:   d.Description,
		Resolution:    d.Resolution,
		ResolvedByID:  d.ResolvedByID,
		ResolvedAt:    d.ResolvedAt,
		CreatedAt:     d.CreatedAt,
	}
}
