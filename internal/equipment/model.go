package equipment

import "time"

type Status string

const (
	StatusAvailable        Status = "AVAILABLE"
	StatusBorrowed         Status = "BORROWED"
	StatusUnderMaintenance Status = "UNDER_MAINTENANCE"
	StatusDefective        Status = "DEFECTIVE"
	StatusLost             Status = "LOST"
	StatusRetired          Status = "RETIRED"
)

var Statuses = []string{
	string(StatusAvailable), string(StatusBorrowed), string(StatusUnderMaintenance),
	string(StatusDefective), string(StatusLost), string(StatusRetired),
}

// Borrowable statuses accept new reservations.
func (s Status) Borrowable() bool { return s == StatusAvailable || s == StatusBorrowed }

type Category string

var Categories = []string{
	"COMPUTER", "NETWORKING", "ELECTRONICS", "LAB_INSTRUMENT", "AUDIO_VISUAL", "TOOL", "OTHER",
}

type MaintenanceType string

const (
	MaintenancePreventive MaintenanceType = "PREVENTIVE"
	MaintenanceCorrective MaintenanceType = "CORRECTIVE"
)

var MaintenanceTypes = []string{string(MaintenancePreventive), string(MaintenanceCorrective)}

type Equipment struct {
	ID            string
	EquipmentCode string
	Name          string
	Description   *string
	Category      Category
	Status        Status
	StockCount    int
	Location      *string
	PurchasedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type MaintenanceLog struct {
	ID          string
	EquipmentID string
	Type        MaintenanceType
	Description string
	PerformedBy *string
	StartedAt   time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}
