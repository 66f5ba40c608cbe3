package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/simp-lee/gemfront/internal/domain"
	"github.com/simp-lee/gemfront/internal/middleware"
	"github.com/simp-lee/gemfront/internal/remote"
)

// Service defines the authentication operations.
type Service interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
}

// authService signs in against the remote API and verifies the token it
// issues with the shared secret.
type authService struct {
	client    remote.Client
	loginPath string
	secret    []byte
}

// NewService creates a new auth Service.
func NewService(client remote.Client, loginPath string, secret []byte) Service {
	return &authService{client: client, loginPath: loginPath, secret: secret}
}

// loginResponse accepts the token and user either at the top level or
// inside "data".
type loginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
	Data  *struct {
		Token string `json:"token"`
		User  *User  `json:"user"`
	} `json:"data"`
}

// Login exchanges credentials for a session token.
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	body, err := s.client.Post(ctx, s.loginPath, map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	if err != nil {
		if status := remote.StatusOf(err); status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, domain.NewAppError(domain.CodeUnauthorized, remote.UserMessage(err), err)
		}
		return nil, domain.NewAppError(domain.CodeUpstream, remote.UserMessage(err), err)
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewAppError(domain.CodeUpstream, "unexpected login response", err)
	}
	token, user := resp.Token, resp.User
	if resp.Data != nil {
		if resp.Data.Token != "" {
			token = resp.Data.Token
		}
		if resp.Data.User != nil {
			user = resp.Data.User
		}
	}
	if token == "" {
		return nil, domain.NewAppError(domain.CodeUpstream, "login response carried no token", nil)
	}

	claims, err := middleware.ParseToken(s.secret, token)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeUpstream, "login token could not be verified", err)
	}

	result := &LoginResult{Token: token, ExpiresAt: claims.ExpiresAt.Time}
	if user != nil {
		result.User = *user
	}
	if result.User.Email == "" {
		result.User.Email = claims.Email
	}
	if result.User.Name == "" {
		result.User.Name = claims.Name
	}
	if result.User.ID == "" {
		result.User.ID = claims.Subject
	}
	// The token is what the middleware trusts.
	result.User.Role = claims.Role
	return result, nil
}
