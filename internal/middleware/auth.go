package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	claimsContextKey = "auth_claims"
	tokenContextKey  = "auth_token"
)

// ErrNoToken is returned by ParseToken when no token was presented.
var ErrNoToken = errors.New("no session token")

// Claims is the session token payload issued by the remote API.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity names the session holder: the token subject, else its email.
func (c *Claims) Identity() string {
	if c == nil {
		return ""
	}
	if c.Subject != "" {
		return c.Subject
	}
	return c.Email
}

// AuthConfig configures session verification.
type AuthConfig struct {
	// Secret is the HS256 key shared with the remote API.
	Secret []byte
	// CookieName carries the token for browser sessions; the Authorization
	// bearer header is checked first.
	CookieName string
	// LoginPath is where page requests without a valid session are sent.
	LoginPath string
}

// ParseToken verifies an HS256 token and returns its claims.
func ParseToken(secret []byte, raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrNoToken
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// SignToken issues an HS256 token for claims, defaulting the expiry to now+ttl.
func SignToken(secret []byte, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// tokenFromRequest returns the bearer token or, failing that, the session cookie.
func tokenFromRequest(c *gin.Context, cookieName string) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if cookieName == "" {
		return ""
	}
	tok, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return tok
}

// Authenticate attaches the session claims to the context when a valid
// token is present. It never rejects a request.
func Authenticate(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c, cfg.CookieName)
		if claims, err := ParseToken(cfg.Secret, raw); err == nil {
			c.Set(claimsContextKey, claims)
			c.Set(tokenContextKey, raw)
		}
		c.Next()
	}
}

// RequireRole rejects requests without a valid session whose role is one of
// roles (any role when roles is empty).
//
// API clients get a 401/403 JSON envelope. Page requests without a session
// are redirected to LoginPath with the original URL in "next"; htmx requests
// get HX-Redirect instead, since a 303 would be swapped into the page.
func RequireRole(cfg AuthConfig, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			raw := tokenFromRequest(c, cfg.CookieName)
			var err error
			claims, err = ParseToken(cfg.Secret, raw)
			if err != nil {
				unauthenticated(c, cfg.LoginPath)
				return
			}
			c.Set(claimsContextKey, claims)
			c.Set(tokenContextKey, raw)
		}

		if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
			abortWithError(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

func unauthenticated(c *gin.Context, loginPath string) {
	if loginPath != "" && !isAPIPath(c) {
		target := loginPath + "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
		if isHTMX(c) {
			c.Header("HX-Redirect", target)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if acceptsHTML(c) {
			c.Redirect(http.StatusSeeOther, target)
			c.Abort()
			return
		}
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "unauthorized", "data": nil})
}

// GetClaims returns the session claims stored by Authenticate or RequireRole.
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok && claims != nil
}

// GetToken returns the verified raw token, for forwarding to the remote API.
func GetToken(c *gin.Context) string {
	return c.GetString(tokenContextKey)
}
