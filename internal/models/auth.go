package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the access token payload. Role gates course and timetable routes.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// ClientInfo identifies the device a session was opened from.
type ClientInfo struct {
	IP        string
	UserAgent string
}
