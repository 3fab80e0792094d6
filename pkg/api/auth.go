package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
)

// AuthConfig holds the credentials accepted by the API.
type AuthConfig struct {
	Users   map[string]string // username -> password
	APIKeys map[string]bool
}

// openPaths are served without credentials so that probes and scrapers
// need no secrets.
var openPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

type principalKey struct{}

// Principal returns who authenticated the request, "user NAME" or
// "api-key", or "" when authentication is off.
func Principal(ctx context.Context) string {
	p, _ := ctx.Value(principalKey{}).(string)
	return p
}

type authenticator struct {
	users map[string]string
	keys  [][]byte
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	a := &authenticator{users: cfg.Users}
	for k, ok := range cfg.APIKeys {
		if ok {
			a.keys = append(a.keys, []byte(k))
		}
	}
	return a
}

// authMiddleware accepts HTTP Basic credentials, "Authorization: Bearer
// KEY" or "X-API-Key: KEY".
func authMiddleware(cfg AuthConfig, next http.Handler) http.Handler {
	a := newAuthenticator(cfg)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if openPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		who, ok := a.identify(r)
		if !ok {
			slog.Debug("api request rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Basic realm="aclc API"`)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, who)))
	})
}

func (a *authenticator) identify(r *http.Request) (string, bool) {
	if key := r.Header.Get("X-API-Key"); key != "" && a.validKey(key) {
		return "api-key", true
	}
	scheme, cred, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok {
		return "", false
	}
	switch strings.ToLower(scheme) {
	case "bearer":
		if a.validKey(cred) {
			return "api-key", true
		}
	case "basic":
		if user, ok := a.basic(cred); ok {
			return "user " + user, true
		}
	}
	return "", false
}

// validKey checks key against all configured keys in constant time.
func (a *authenticator) validKey(key string) bool {
	found := 0
	for _, k := range a.keys {
		found |= subtle.ConstantTimeCompare([]byte(key), k)
	}
	return found == 1
}

func (a *authenticator) basic(cred string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(cred)
	if err != nil {
		return "", false
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", false
	}
	want, exists := a.users[user]
	if !exists || subtle.ConstantTimeCompare([]byte(pass), []byte(want)) != 1 {
		return "", false
	}
	return user, true
}
