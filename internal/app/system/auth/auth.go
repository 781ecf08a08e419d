// internal/app/system/auth/auth.go

// Package auth resolves the calling user from a request.
//
// Production deployments verify Firebase ID tokens sent as
// "Authorization: Bearer <token>". The memory backend has no token
// issuer, so when no verifier is configured the middleware accepts the
// X-Debug-UID / X-Debug-Email / X-Debug-Name headers instead. The debug
// path is only ever wired for backend=memory.
package auth

import (
	"context"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/auth"
	"go.uber.org/zap"

	"github.com/virtualstudy/studypoint/internal/domain/models"
)

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the authenticated user injected by LoadUser.
func CurrentUser(r *http.Request) (models.User, bool) {
	u, ok := r.Context().Value(currentUserKey).(models.User)
	return u, ok
}

// Verifier turns a bearer token into a user identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (models.User, error)
}

// FirebaseVerifier validates Firebase ID tokens.
type FirebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier wraps a Firebase auth client.
func NewFirebaseVerifier(client *fbauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

// Verify implements Verifier.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (models.User, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return models.User{}, err
	}
	u := models.User{UID: tok.UID}
	if email, ok := tok.Claims["email"].(string); ok {
		u.Email = email
	}
	if name, ok := tok.Claims["name"].(string); ok {
		u.DisplayName = name
	}
	return u, nil
}

// Middleware authenticates requests.
type Middleware struct {
	verifier Verifier
	log      *zap.Logger
}

// NewMiddleware builds the auth middleware. A nil verifier enables the
// debug-header identity path.
func NewMiddleware(verifier Verifier, logger *zap.Logger) *Middleware {
	return &Middleware{verifier: verifier, log: logger}
}

// LoadUser injects the caller's identity into the request context when
// credentials are present and valid. Requests without credentials pass
// through unauthenticated; RequireSignedIn decides what that means per
// route.
func (m *Middleware) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.verifier == nil {
			if uid := strings.TrimSpace(r.Header.Get("X-Debug-UID")); uid != "" {
				r = withUser(r, models.User{
					UID:         uid,
					Email:       strings.TrimSpace(r.Header.Get("X-Debug-Email")),
					DisplayName: strings.TrimSpace(r.Header.Get("X-Debug-Name")),
				})
			}
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		u, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			m.log.Debug("token rejected", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, withUser(r, u))
	})
}

// RequireSignedIn rejects unauthenticated requests with a JSON 401.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func withUser(r *http.Request, u models.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}
