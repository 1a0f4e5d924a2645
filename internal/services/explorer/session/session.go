// Package session tracks the dataset each browser session has uploaded.
//
// A session moves from empty (no upload) to loaded (a dataset is registered)
// and stays loaded while the user views tables. A new upload replaces and
// closes the previous dataset; sessions idle past the TTL are closed and
// forgotten.
package session

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/sqlitedesk/internal/platform/id"
	"github.com/louisbranch/sqlitedesk/internal/services/explorer/dataset"
	"github.com/louisbranch/sqlitedesk/internal/services/shared/requestmeta"
)

// CookieName stores the browser session id.
const CookieName = "sqlitedesk_session"

// DefaultTTL is the idle lifetime used when none is configured.
const DefaultTTL = time.Hour

type entry struct {
	dataset  *dataset.Dataset
	lastSeen time.Time
}

// Registry maps session ids to uploaded datasets.
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*entry
}

// NewRegistry returns an empty registry. A non-positive ttl uses DefaultTTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]*entry{},
	}
}

// Get returns the dataset for sessionID and refreshes its idle timer.
func (r *Registry) Get(sessionID string) (*dataset.Dataset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	current, ok := r.entries[sessionID]
	if !ok {
		return nil, false
	}
	current.lastSeen = r.now()
	return current.dataset, true
}

// Put registers ds for sessionID, closing any dataset it replaces.
func (r *Registry) Put(sessionID string, ds *dataset.Dataset) {
	if ds == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	if previous, ok := r.entries[sessionID]; ok && previous.dataset != ds {
		closeDataset(sessionID, previous.dataset)
	}
	r.entries[sessionID] = &entry{dataset: ds, lastSeen: r.now()}
}

// Remove closes and forgets the dataset for sessionID.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.entries[sessionID]; ok {
		closeDataset(sessionID, current.dataset)
		delete(r.entries, sessionID)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	return len(r.entries)
}

// Close closes every registered dataset.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for sessionID, current := range r.entries {
		if err := current.dataset.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.entries, sessionID)
	}
	return errors.Join(errs...)
}

func (r *Registry) evictLocked() {
	cutoff := r.now().Add(-r.ttl)
	for sessionID, current := range r.entries {
		if current.lastSeen.Before(cutoff) {
			closeDataset(sessionID, current.dataset)
			delete(r.entries, sessionID)
		}
	}
}

func closeDataset(sessionID string, ds *dataset.Dataset) {
	if err := ds.Close(); err != nil {
		log.Printf("close dataset session=%s: %v", sessionID, err)
	}
}

// Cookies reads and issues session cookies under a fixed scheme policy.
type Cookies struct {
	Policy requestmeta.SchemePolicy
}

// ID returns the well-formed session id carried by r, if any.
func (c Cookies) ID(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	if !id.Valid(value) {
		return "", false
	}
	return value, true
}

// Ensure returns the request's session id, issuing a new one in a cookie
// when the request has none.
func (c Cookies) Ensure(w http.ResponseWriter, r *http.Request) (string, error) {
	if sessionID, ok := c.ID(r); ok {
		return sessionID, nil
	}
	sessionID, err := id.NewID()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestmeta.IsHTTPSWithPolicy(r, c.Policy),
		SameSite: http.SameSiteLaxMode,
	})
	return sessionID, nil
}
