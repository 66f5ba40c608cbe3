package registration

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gemfront/internal/domain"
	"github.com/simp-lee/gemfront/internal/pkg"
)

// RegistrationHandler serves the registration API and pages.
type RegistrationHandler struct {
	svc Service
}

// NewHandler creates a RegistrationHandler.
func NewHandler(svc Service) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
}

// Start handles POST /api/v1/registration.
func (h *RegistrationHandler) Start(c *gin.Context) {
	var req StartRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}
	p, err := h.svc.Start(c.Request.Context(), req)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, pkg.Response{
		Code:    http.StatusCreated,
		Message: "verification code sent",
		Data:    toPendingResponse(p),
	})
}

// Verify handles POST /api/v1/registration/:id/verify.
func (h *RegistrationHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}
	p, err := h.svc.Verify(c.Request.Context(), c.Param("id"), req.OTP)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, gin.H{"email": p.Email, "verified": true})
}

// Resend handles POST /api/v1/registration/:id/resend.
func (h *RegistrationHandler) Resend(c *gin.Context) {
	p, err := h.svc.Resend(c.Request.Context(), c.Param("id"))
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, toPendingResponse(p))
}

func toPendingResponse(p *domain.PendingRegistration) PendingResponse {
	return PendingResponse{ID: p.ID, Email: p.Email, ExpiresAt: p.ExpiresAt.Unix()}
}
