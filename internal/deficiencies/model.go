package deficiencies

import "time"

type Type string

const (
	TypeDamage     Type = "DAMAGE"
	TypeLoss       Type = "LOSS"
	TypeLateReturn Type = "LATE_RETURN"
	TypeOther      Type = "OTHER"
)

var Types = []string{string(TypeDamage), string(TypeLoss), string(TypeLateReturn), string(TypeOther)}

type Status string

const (
	StatusUnresolved Status = "UNRESOLVED"
	StatusResolved   Status = "RESOLVED"
)

var Statuses = []string{string(StatusUnresolved), string(StatusResolved)}

// Deficiency is an issue charged to the borrower of a borrow.
type Deficiency struct {
	ID           string
	BorrowID     string
	UserID       string
	TaggedByID   *string
	Type         Type
	Status       Status
	Description  *string
	Resolution   *string
	ResolvedByID *string
	ResolvedAt   *time.Time
	CreatedAt    time.Time

	EquipmentCode string
	EquipmentName string
	UserName      string
}
