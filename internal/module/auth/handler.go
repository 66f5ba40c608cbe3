package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gemfront/internal/middleware"
	"github.com/simp-lee/gemfront/internal/pkg"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler handles the login API and pages.
type AuthHandler struct {
	svc    Service
	cookie CookieConfig
}

// NewHandler creates a new AuthHandler with the given service.
func NewHandler(svc Service, cookie CookieConfig) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "session"
	}
	return &AuthHandler{svc: svc, cookie: cookie}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	h.setCookie(c, result.Token, result.ExpiresAt)
	pkg.Success(c, result)
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.clearCookie(c)
	pkg.NoContent(c)
}

// LoginPage renders the login form.
// GET /login
func (h *AuthHandler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "auth/login.html", gin.H{
		"Next":      safeNext(c.Query("next")),
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

// LoginSubmit handles the login form.
// POST /login
func (h *AuthHandler) LoginSubmit(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderForm(c, req, "Please enter a valid email and password")
		return
	}

	result, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		_, msg := pkg.ErrorStatus(err)
		h.renderForm(c, req, msg)
		return
	}

	h.setCookie(c, result.Token, result.ExpiresAt)
	next := safeNext(req.Next)
	if c.GetHeader("HX-Request") == "true" {
		c.Header("HX-Redirect", next)
		c.Status(http.StatusOK)
		return
	}
	c.Redirect(http.StatusSeeOther, next)
}

// LogoutSubmit clears the session and returns home.
// POST /logout
func (h *AuthHandler) LogoutSubmit(c *gin.Context) {
	h.clearCookie(c)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *AuthHandler) renderForm(c *gin.Context, req LoginRequest, msg string) {
	c.HTML(http.StatusOK, "auth/login.html", gin.H{
		"Email":     req.Email,
		"Next":      safeNext(req.Next),
		"Error":     msg,
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

func (h *AuthHandler) setCookie(c *gin.Context, token string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, token, maxAge, "/", "", h.cookie.Secure, true)
}

func (h *AuthHandler) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
