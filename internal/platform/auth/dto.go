package auth

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email         string  `json:"email" binding:"required,email,max=255"`
	Password      string  `json:"password" binding:"required,min=8,max=72"`
	FirstName     string  `json:"first_name" binding:"required,max=100"`
	LastName      string  `json:"last_name" binding:"required,max=100"`
	StudentNumber *string `json:"student_number,omitempty" binding:"omitempty,max=32"`
	Role          string  `json:"role,omitempty" binding:"omitempty,role"` // STUDENT (default) or FACULTY
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}
