package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	csrfCookieName = "_csrf_token"
	csrfFormField  = "_csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfContextKey = "CSRFToken"
	csrfNonceBytes = 32
)

// CSRF protects page forms and htmx requests with a signed double-submit
// cookie. Tokens are hex(nonce) "." base64url(HMAC-SHA256(nonce, secret)).
//
// Safe methods issue a token (reusing a valid cookie) and expose it to
// templates as "CSRFToken". Unsafe methods must echo the cookie in the
// _csrf_token form field or the X-CSRF-Token header, which app.js sets on
// every htmx request from the page's meta tag.
//
// A rejected htmx request gets HX-Refresh so the page reloads with a fresh
// token instead of swapping an error into a grid.
func CSRF(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return func(c *gin.Context) {
			abortWithError(c, http.StatusInternalServerError, "csrf secret is required")
		}
	}
	g := csrfGuard{key: []byte(secret), secure: gin.Mode() == gin.ReleaseMode}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			g.issue(c)
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			g.verify(c)
		default:
			c.Next()
		}
	}
}

type csrfGuard struct {
	key    []byte
	secure bool
}

func (g csrfGuard) issue(c *gin.Context) {
	token, err := c.Cookie(csrfCookieName)
	if err != nil || !g.valid(token) {
		token, err = g.newToken()
		if err != nil {
			abortWithError(c, http.StatusInternalServerError, "failed to generate csrf token")
			return
		}
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     csrfCookieName,
			Value:    token,
			Path:     "/",
			Secure:   g.secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
	c.Set(csrfContextKey, token)
	c.Next()
}

func (g csrfGuard) verify(c *gin.Context) {
	cookie, _ := c.Cookie(csrfCookieName)
	sent := c.GetHeader(csrfHeaderName)
	if sent == "" {
		sent = c.PostForm(csrfFormField)
	}

	var reason string
	switch {
	case cookie == "" || sent == "":
		reason = "csrf token missing"
	case !g.valid(cookie) || subtle.ConstantTimeCompare([]byte(cookie), []byte(sent)) != 1:
		reason = "csrf token invalid"
	}
	if reason != "" {
		if isHTMX(c) {
			c.Header("HX-Refresh", "true")
		}
		abortWithError(c, http.StatusForbidden, reason)
		return
	}

	c.Set(csrfContextKey, cookie)
	c.Next()
}

func (g csrfGuard) newToken() (string, error) {
	nonce := make([]byte, csrfNonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	n := hex.EncodeToString(nonce)
	return n + "." + g.sign(n), nil
}

func (g csrfGuard) sign(nonce string) string {
	mac := hmac.New(sha256.New, g.key)
	mac.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (g csrfGuard) valid(token string) bool {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" || sig == "" {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(g.sign(nonce)))
}

// GetCSRFToken returns the token CSRF stored for this request, or "".
func GetCSRFToken(c *gin.Context) string {
	return c.GetString(csrfContextKey)
}
