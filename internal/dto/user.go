package dto

import "github.com/noah-isme/timetable-api/internal/models"

// CreateUserRequest registers an ADMIN or HOD account.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN HOD"`
	Password string          `json:"password" validate:"required,min=8"`
	Active   *bool           `json:"active"`
}

// UpdateUserRequest changes an account's profile, role or status.
type UpdateUserRequest struct {
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN HOD"`
	Active   *bool           `json:"active"`
}

// UserQuery binds the account listing query string.
type UserQuery struct {
	Role      string `form:"role"`
	Active    *bool  `form:"active"`
	Search    string `form:"search"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}
