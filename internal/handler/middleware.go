package handler

import (
	"context"
	"net/http"

	"blog-service/internal/model"
	"blog-service/internal/service"
)

const sessionCookieName = "session_id"

type contextKey string

const sessionContextKey contextKey = "session"

// RequireSession resolves the session cookie and injects the live session
// into the request context. Requests without a valid session are rejected
// before the handler runs.
func RequireSession(accounts *service.AccountService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil {
				writeError(w, http.StatusUnauthorized, CodeSessionErr, "authentication required")
				return
			}

			session, err := accounts.Authenticate(r.Context(), cookie.Value)
			if err != nil {
				writeServiceError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionFromContext returns the session injected by RequireSession
func sessionFromContext(ctx context.Context) *model.Session {
	session, _ := ctx.Value(sessionContextKey).(*model.Session)
	return session
}
