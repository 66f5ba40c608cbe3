package registration

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gemfront/internal/domain"
	"github.com/simp-lee/gemfront/internal/middleware"
	"github.com/simp-lee/gemfront/internal/pkg"
)

// StartPage renders the registration form.
// GET /register
func (h *RegistrationHandler) StartPage(c *gin.Context) {
	c.HTML(http.StatusOK, "registration/start.html", gin.H{
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

// StartSubmit handles the registration form and moves on to the OTP step.
// POST /register
func (h *RegistrationHandler) StartSubmit(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderStart(c, req, "Please check the highlighted fields")
		return
	}
	p, err := h.svc.Start(c.Request.Context(), req)
	if err != nil {
		_, msg := pkg.ErrorStatus(err)
		h.renderStart(c, req, msg)
		return
	}
	redirect(c, "/register/"+p.ID+"/verify")
}

// VerifyPage renders the OTP form for a pending registration.
// GET /register/:id/verify
func (h *RegistrationHandler) VerifyPage(c *gin.Context) {
	p, err := h.svc.Pending(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderGone(c, err)
		return
	}
	h.renderVerify(c, p, "", "")
}

// VerifySubmit checks the OTP. A wrong code keeps the user on the form.
// POST /register/:id/verify
func (h *RegistrationHandler) VerifySubmit(c *gin.Context) {
	id := c.Param("id")
	p, err := h.svc.Pending(c.Request.Context(), id)
	if err != nil {
		h.renderGone(c, err)
		return
	}

	if c.PostForm("action") == "resend" {
		if _, err := h.svc.Resend(c.Request.Context(), id); err != nil {
			_, msg := pkg.ErrorStatus(err)
			h.renderVerify(c, p, msg, "")
			return
		}
		h.renderVerify(c, p, "", "A new code has been sent to "+p.Email)
		return
	}

	var req VerifyRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderVerify(c, p, "Please enter the code from your email", "")
		return
	}
	if _, err := h.svc.Verify(c.Request.Context(), id, req.OTP); err != nil {
		if domain.IsNotFound(err) || domain.IsExpired(err) {
			h.renderGone(c, err)
			return
		}
		_, msg := pkg.ErrorStatus(err)
		h.renderVerify(c, p, msg, "")
		return
	}
	redirect(c, "/login?registered=1")
}

func (h *RegistrationHandler) renderStart(c *gin.Context, req StartRequest, msg string) {
	c.HTML(http.StatusOK, "registration/start.html", gin.H{
		"Form":      req,
		"Error":     msg,
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

func (h *RegistrationHandler) renderVerify(c *gin.Context, p *domain.PendingRegistration, msg, notice string) {
	c.HTML(http.StatusOK, "registration/verify.html", gin.H{
		"ID":        p.ID,
		"Email":     p.Email,
		"ExpiresAt": p.ExpiresAt,
		"Error":     msg,
		"Notice":    notice,
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

// renderGone sends the user back to the first step.
func (h *RegistrationHandler) renderGone(c *gin.Context, err error) {
	status := http.StatusNotFound
	msg := "This registration link is no longer valid."
	if domain.IsExpired(err) {
		status = http.StatusGone
		msg = "This registration has expired. Please start again."
	} else if !domain.IsNotFound(err) {
		status, msg = pkg.ErrorStatus(err)
	}
	c.HTML(status, "registration/start.html", gin.H{
		"Error":     msg,
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

func redirect(c *gin.Context, target string) {
	if c.GetHeader("HX-Request") == "true" {
		c.Header("HX-Redirect", target)
		c.Status(http.StatusOK)
		return
	}
	c.Redirect(http.StatusSeeOther, target)
}
