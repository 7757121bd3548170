package equipment

import "time"

// ===== Requests =====

type CreateEquipmentRequest struct {
	EquipmentCode string     `json:"equipment_code" binding:"required,max=64"`
	Name          string     `json:"name" binding:"required,max=200"`
	Description   *string    `json:"description,omitempty"`
	Category      string     `json:"category" binding:"required,equipment_category"`
	Status        *string    `json:"status,omitempty" binding:"omitempty,equipment_status"`
	StockCount    *int       `json:"stock_count,omitempty" binding:"omitempty,min=1"`
	Location      *string    `json:"location,omitempty" binding:"omitempty,max=120"`
	PurchasedAt   *time.Time `json:"purchased_at,omitempty"`
}

type UpdateEquipmentRequest struct {
	EquipmentCode *string    `json:"equipment_code,omitempty" binding:"omitempty,min=1,max=64"`
	Name          *string    `json:"name,omitempty" binding:"omitempty,min=1,max=200"`
	Description   *string    `json:"description,omitempty"`
	Category      *string    `json:"category,omitempty" binding:"omitempty,equipment_category"`
	Status        *string    `json:"status,omitempty" binding:"omitempty,equipment_status"`
	StockCount    *int       `json:"stock_count,omitempty" binding:"omitempty,min=1"`
	Location      *string    `json:"location,omitempty" binding:"omitempty,max=120"`
	PurchasedAt   *time.Time `json:"purchased_at,omitempty"`
}

type CreateMaintenanceRequest struct {
	Type        string     `json:"type" binding:"required,maintenance_type"`
	Description string     `json:"description" binding:"required"`
	PerformedBy *string    `json:"performed_by,omitempty" binding:"omitempty,max=120"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type CompleteMaintenanceRequest struct {
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ===== Responses =====

type EquipmentResponse struct {
	ID            string     `json:"id"`
	EquipmentCode string     `json:"equipment_code"`
	Name          string     `json:"name"`
	Description   *string    `json:"description,omitempty"`
	Category      Category   `json:"category"`
	Status        Status     `json:"status"`
	StockCount    int        `json:"stock_count"`
	Location      *string    `json:"location,omitempty"`
	PurchasedAt   *time.Time `json:"purchased_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type MaintenanceResponse struct {
	ID          string          `json:"id"`
	EquipmentID string          `json:"equipment_id"`
	Type        MaintenanceType `json:"type"`
	Description string          `json:"description"`
	PerformedBy *string         `json:"performed_by,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ===== Listing helpers =====

type EquipmentQuery struct {
	Q        *string // name or code
	Category *string
	Status   *string
	Location *string
}

func toResponse(e *Equipment) EquipmentResponse {
	return EquipmentResponse{
		ID:            e.ID,
		EquipmentCode: e.EquipmentCode,
		Name:          e.Name,
		Description:   e.Description,
		Category:      e.Category,
		Status:        e.Status,
		StockCount:    e.StockCount,
		Location:      e.Location,
		PurchasedAt:   e.PurchasedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toMaintenanceResponse(m *MaintenanceLog) MaintenanceResponse {
	return MaintenanceResponse{
		ID:          m.ID,
		EquipmentID: m.EquipmentID,
		Type:        m.Type,
		Description: m.Description,
		PerformedBy: m.PerformedBy,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
		CreatedAt:   m.CreatedAt,
	}
}
