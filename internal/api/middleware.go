// ABOUTME: Authentication and authorization middleware
// ABOUTME: Resolves bearer tokens to accounts and gates approved/admin routes

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/sjoekim64/dxchart/internal/store"
)

type contextKey string

const accountKey contextKey = "account"

// requireAuth resolves the bearer token to an account and stores it in the
// request context. The token must verify and the account must still exist.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeErrorMsg(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		acct, err := s.accounts.VerifyToken(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, acct)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireApproved rejects accounts still awaiting approval.
func (s *Server) requireApproved(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requestAccount(r).IsApproved {
			writeErrorMsg(w, http.StatusForbidden, "account is pending approval")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin rejects non-administrator accounts.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requestAccount(r).IsAdmin {
			writeErrorMsg(w, http.StatusForbidden, "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestAccount returns the authenticated account. Only valid on routes
// behind requireAuth.
func requestAccount(r *http.Request) *store.Account {
	return r.Context().Value(accountKey).(*store.Account)
}
