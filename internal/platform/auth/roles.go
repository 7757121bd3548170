package auth

import "github.com/gin-gonic/gin"

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleFaculty Role = "FACULTY"
	RoleStaff   Role = "STAFF"
	RoleAdmin   Role = "ADMIN"
)

var Roles = []string{string(RoleStudent), string(RoleFaculty), string(RoleStaff), string(RoleAdmin)}

type UserStatus string

const (
	StatusPendingApproval UserStatus = "PENDING_APPROVAL"
	StatusActive          UserStatus = "ACTIVE"
	StatusInactive        UserStatus = "INACTIVE"
)

var UserStatuses = []string{string(StatusPendingApproval), string(StatusActive), string(StatusInactive)}

// Actor is the authenticated caller as seen by services.
type Actor struct {
	UserID    string
	Role      Role
	SessionID string
}

// IsStaff is true for STAFF and ADMIN, the roles that run the equipment desk.
func (a Actor) IsStaff() bool { return a.Role == RoleStaff || a.Role == RoleAdmin }

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

func (a Actor) IsFaculty() bool { return a.Role == RoleFaculty }

// ActorFrom reads what RequireAuth stored on the context.
func ActorFrom(c *gin.Context) Actor {
	return Actor{
		UserID:    c.GetString(CtxUserIDKey),
		Role:      Role(c.GetString(CtxRoleKey)),
		SessionID: c.GetString(CtxSessionKey),
	}
}
