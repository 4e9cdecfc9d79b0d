package middleware

import (
	"context"
	"net/http"

	"github.com/mtarnawa/hanashi/internal/model"
	"github.com/mtarnawa/hanashi/internal/store"
)

// identityHeader carries the caller's external user id, set by the fronting
// gateway after it has authenticated the request. The service trusts it
// blindly, so the listener must never be reachable except through the
// gateway.
const identityHeader = "X-User-ID"

type contextKey struct{}

// WithAccount returns ctx carrying the account.
func WithAccount(ctx context.Context, a *model.Account) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// AccountFrom returns the account attached to ctx by RequireIdentity.
func AccountFrom(ctx context.Context) (*model.Account, bool) {
	a, ok := ctx.Value(contextKey{}).(*model.Account)
	return a, ok
}

// RequireIdentity resolves the identity header to an account, creating one on
// first sight, and attaches it to the request context. Requests without the
// header are rejected.
func RequireIdentity(accounts *store.AccountStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			externalID := r.Header.Get(identityHeader)
			if externalID == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			a, err := accounts.GetOrCreateByExternalID(externalID)
			if err != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), a)))
		})
	}
}
