package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"plan-chat/errors"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// TokenFromRequest reads "Authorization: Bearer <token>", falling back to the
// token query parameter for websocket clients that cannot set headers.
func TokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return "", errors.ErrInvalidToken
		}
		return strings.TrimSpace(token), nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", errors.ErrMissingToken
}

// Middleware rejects unauthenticated requests with 401 and injects the user id in the context.
func (i *TokenIssuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := TokenFromRequest(r)
		if err == nil {
			var claims *CustomClaims
			if claims, err = i.ValidateToken(token); err == nil {
				next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": err.Error()})
	})
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}
