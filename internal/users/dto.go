package users

import "equipborrow-backend/internal/platform/auth"

type CreateUserRequest struct {
	Email         string  `json:"email" binding:"required,email,max=255"`
	Password      string  `json:"password" binding:"required,min=8,max=72"`
	FirstName     string  `json:"first_name" binding:"required,max=100"`
	LastName      string  `json:"last_name" binding:"required,max=100"`
	StudentNumber *string `json:"student_number,omitempty" binding:"omitempty,max=32"`
	Role          string  `json:"role" binding:"required,role"`
}

type UpdateUserRequest struct {
	FirstName     *string `json:"first_name,omitempty" binding:"omitempty,min=1,max=100"`
	LastName      *string `json:"last_name,omitempty" binding:"omitempty,min=1,max=100"`
	StudentNumber *string `json:"student_number,omitempty" binding:"omitempty,max=32"`
	Role          *string `json:"role,omitempty" binding:"omitempty,role"`
	Status        *string `json:"status,omitempty" binding:"omitempty,user_status"`
}

type UserQuery struct {
	Q      *string // name, email or student number
	Role   *auth.Role
	Status *auth.UserStatus
}
