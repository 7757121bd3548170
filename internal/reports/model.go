package reports

import "time"

type Type string

const (
	TypeMTTRMTBF      Type = "mttr_mtbf"
	TypeUtilization   Type = "utilization"
	TypeContactHours  Type = "contact_hours"
	TypeBorrowHistory Type = "borrow_history"
	TypeDeficiencies  Type = "deficiencies"
)

var Types = []string{
	string(TypeMTTRMTBF), string(TypeUtilization), string(TypeContactHours),
	string(TypeBorrowHistory), string(TypeDeficiencies),
}

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

var Formats = []string{string(FormatJSON), string(FormatCSV), string(FormatPDF)}

// CSV encodings.
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF8BOM = "utf-8-bom"
	EncodingSJIS    = "shift_jis"
)

var Encodings = []string{EncodingUTF8, EncodingUTF8BOM, EncodingSJIS}

// MaxRange bounds a report window.
const MaxRange = 366 * 24 * time.Hour

type Dashboard struct {
	BorrowsByStatus        map[string]int `json:"borrows_by_status"`
	EquipmentByStatus      map[string]int `json:"equipment_by_status"`
	PendingUsers           int            `json:"pending_users"`
	UnresolvedDeficiencies int            `json:"unresolved_deficiencies"`
	Overdue                int            `json:"overdue"`
	GeneratedAt            time.Time      `json:"generated_at"`
}

type ReliabilityRow struct {
	EquipmentID   string   `json:"equipment_id"`
	EquipmentCode string   `json:"equipment_code"`
	Name          string   `json:"name"`
	Failures      int      `json:"failures"`
	DowntimeHours float64  `json:"downtime_hours"`
	MTTRHours     *float64 `json:"mttr_hours"`
	MTBFHours     *float64 `json:"mtbf_hours"`
}

type UtilizationRow struct {
	EquipmentID   string  `json:"equipment_id"`
	EquipmentCode string  `json:"equipment_code"`
	Name          string  `json:"name"`
	StockCount    int     `json:"stock_count"`
	UsedHours     float64 `json:"used_hours"`
	Utilization   float64 `json:"utilization_pct"`
}

type ContactHoursRow struct {
	ClassID      string  `json:"class_id"`
	CourseCode   string  `json:"course_code"`
	Section      string  `json:"section"`
	Name         string  `json:"name"`
	ContactHours float64 `json:"contact_hours"`
	Borrowers    int     `json:"distinct_borrowers"`
}

type HistoryRow struct {
	BorrowID      string     `json:"borrow_id"`
	EquipmentCode string     `json:"equipment_code"`
	EquipmentName string     `json:"equipment_name"`
	BorrowerName  string     `json:"borrower_name"`
	CourseCode    *string    `json:"course_code,omitempty"`
	Status        string     `json:"status"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	CheckoutTime  *time.Time `json:"checkout_time,omitempty"`
	ReturnedAt    *time.Time `json:"returned_at,omitempty"`
	Condition     *string    `json:"return_condition,omitempty"`
}

type DeficiencyRow struct {
	DeficiencyID  string     `json:"deficiency_id"`
	BorrowID      string     `json:"borrow_id"`
	UserName      string     `json:"user_name"`
	EquipmentCode string     `json:"equipment_code"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Description   *string    `json:"description,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// Report is the result of Generate. Rows holds the typed rows for JSON;
// Table is the same data flattened for CSV and PDF.
type Report struct {
	Type        Type      `json:"type"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	GeneratedAt time.Time `json:"generated_at"`
	Rows        any       `json:"rows"`
	Table       Table     `json:"-"`
}

type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

type GenerateRequest struct {
	Type     Type
	From     time.Time
	To       time.Time
	Format   Format
	Encoding string
}
