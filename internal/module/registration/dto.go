package registration

import "encoding/json"

// StartRequest is the first registration step.
type StartRequest struct {
	Name    string          `json:"name" form:"name" binding:"required,min=2,max=100"`
	Email   string          `json:"email" form:"email" binding:"required,email"`
	Phone   string          `json:"phone" form:"phone" binding:"omitempty,max=32"`
	Company string          `json:"company" form:"company" binding:"omitempty,max=200"`
	Profile json.RawMessage `json:"profile" form:"-"`
}

// VerifyRequest carries the one-time password sent by email.
type VerifyRequest struct {
	OTP string `json:"otp" form:"otp" binding:"required,min=4,max=10,numeric"`
}

// PendingResponse is the public view of a pending registration.
type PendingResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	ExpiresAt int64  `json:"expires_at"`
}
