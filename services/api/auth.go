package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const actorKey contextKey = "actor"

type tokenEntry struct {
	WorkerID int64
	Expires  time.Time
}

// tokenStore issues short-lived worker-scoped bearer tokens. Expired entries
// are reaped lazily on issue.
type tokenStore struct {
	ttl    time.Duration
	mu     sync.Mutex
	tokens map[string]tokenEntry
}

func newTokenStore(ttl time.Duration) *tokenStore {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &tokenStore{
		ttl:    ttl,
		tokens: make(map[string]tokenEntry),
	}
}

func (ts *tokenStore) issue(workerID int64) (string, time.Time) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := time.Now()
	for key, entry := range ts.tokens {
		if now.After(entry.Expires) {
			delete(ts.tokens, key)
		}
	}

	token := uuid.New().String()
	expires := now.Add(ts.ttl)
	ts.tokens[token] = tokenEntry{WorkerID: workerID, Expires: expires}
	return token, expires
}

func (ts *tokenStore) lookup(token string) (tokenEntry, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tokens[token]
	if !ok || time.Now().After(entry.Expires) {
		return tokenEntry{}, false
	}
	return entry, true
}

// requireAuth accepts either the configured service token or an issued worker
// token. The worker id, when present, becomes the actor recorded on pauses.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, errors.New("bearer token required"))
			return
		}

		if token == a.config.ServiceToken {
			next.ServeHTTP(w, r)
			return
		}

		entry, ok := a.tokens.lookup(token)
		if !ok {
			respondError(w, http.StatusUnauthorized, errors.New("invalid or expired token"))
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, entry.WorkerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// actorID returns the worker bound to the request token, or zero for the
// service token.
func actorID(ctx context.Context) int64 {
	if id, ok := ctx.Value(actorKey).(int64); ok {
		return id
	}
	return 0
}
