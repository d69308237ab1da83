// Package api implements the HTTP surface of the CLRP solver service.
package api

import (
	"net/http"
	"strings"
)

type Principal struct {
	Subject string
	Role    string // admin, operator
}

// getPrincipal extracts the caller from the Authorization header using the
// configured verifier (dev/hmac), falling back to dev headers.
func (s *Server) getPrincipal(r *http.Request) Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return Principal{Subject: pr.Subject, Role: pr.Role}
		}
	}
	sub := r.Header.Get("X-Subject")
	role := r.Header.Get("X-Role")
	if sub == "" {
		sub = "dev"
	}
	if role == "" {
		role = "admin"
	}
	return Principal{Subject: sub, Role: strings.ToLower(role)}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }
