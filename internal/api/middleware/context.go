package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const (
	ownerIDKey    contextKey = "owner_id"
	authMethodKey contextKey = "auth_method"
)

// Authentication methods recorded in the request context.
const (
	AuthMethodFirebase    = "firebase"
	AuthMethodAccessToken = "access_token"
)

func SetOwnerID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ownerIDKey, uid)
}

// GetOwnerID returns the authenticated user's ID from the request context.
func GetOwnerID(r *http.Request) (string, bool) {
	uid, ok := r.Context().Value(ownerIDKey).(string)
	return uid, ok && uid != ""
}

func setAuthMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, authMethodKey, method)
}

// GetAuthMethod reports how the request was authenticated.
func GetAuthMethod(r *http.Request) (string, bool) {
	m, ok := r.Context().Value(authMethodKey).(string)
	return m, ok
}
