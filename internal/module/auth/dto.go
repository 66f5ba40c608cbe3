package auth

import "time"

// LoginRequest represents the credentials submitted by the login form or API.
type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required"`
	// Next is where the login page returns to; ignored by the API.
	Next string `json:"-" form:"next"`
}

// User is the signed-in account as reported by the remote API.
type User struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// LoginResult is a verified session.
type LoginResult struct {
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}
