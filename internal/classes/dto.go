package classes

import "time"

type Class struct {
	ID           string
	CourseCode   string
	Name         string
	Section      string
	Semester     string
	AcademicYear string
	Schedule     *string
	Venue        *string
	FICID        *string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ===== Requests =====

type CreateClassRequest struct {
	CourseCode   string  `json:"course_code" binding:"required,max=32"`
	Name         string  `json:"name" binding:"required,max=200"`
	Section      string  `json:"section" binding:"required,max=32"`
	Semester     string  `json:"semester" binding:"required,max=16"`
	AcademicYear string  `json:"academic_year" binding:"required,max=16"`
	Schedule     *string `json:"schedule,omitempty" binding:"omitempty,max=120"`
	Venue        *string `json:"venue,omitempty" binding:"omitempty,max=120"`
	FICID        *string `json:"fic_id,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

type UpdateClassRequest struct {
	CourseCode   *string `json:"course_code,omitempty" binding:"omitempty,min=1,max=32"`
	Name         *string `json:"name,omitempty" binding:"omitempty,min=1,max=200"`
	Section      *string `json:"section,omitempty" binding:"omitempty,min=1,max=32"`
	Semester     *string `json:"semester,omitempty" binding:"omitempty,min=1,max=16"`
	AcademicYear *string `json:"academic_year,omitempty" binding:"omitempty,min=1,max=16"`
	Schedule     *string `json:"schedule,omitempty" binding:"omitempty,max=120"`
	Venue        *string `json:"venue,omitempty" binding:"omitempty,max=120"`
	FICID        *string `json:"fic_id,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

type EnrollRequest struct {
	UserIDs []string `json:"user_ids" binding:"required,min=1,max=500,dive,required"`
}

// ===== Responses =====

type ClassResponse struct {
	ID              string    `json:"id"`
	CourseCode      string    `json:"course_code"`
	Name            string    `json:"name"`
	Section         string    `json:"section"`
	Semester        string    `json:"semester"`
	AcademicYear    string    `json:"academic_year"`
	Schedule        *string   `json:"schedule,omitempty"`
	Venue           *string   `json:"venue,omitempty"`
	FICID           *string   `json:"fic_id,omitempty"`
	FICName         *string   `json:"fic_name,omitempty"`
	IsActive        bool      `json:"is_active"`
	EnrollmentCount int       `json:"enrollment_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type EnrollmentResponse struct {
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	StudentNumber *string   `json:"student_number,omitempty"`
	EnrolledAt    time.Time `json:"enrolled_at"`
}

type EnrollResult struct {
	Added   []string      `json:"added"`
	Skipped []SkippedUser `json:"skipped"`
}

type SkippedUser struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// ===== Listing helpers =====

type ClassQuery struct {
	Q            *string // course code or name
	Semester     *string
	AcademicYear *string
	FICID        *string
	Active       *bool
	EnrolledUser *string // restrict to classes this user is enrolled in
}
