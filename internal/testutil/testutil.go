package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/jeromeabel/lapreuveduconcept/internal/store"
)

// MemoryStore is an in-process vote store with the same uniqueness and
// toggle semantics as store.VoteStore.
type MemoryStore struct {
	mu    sync.Mutex
	votes map[[2]string]bool

	// Err, when set, is returned by every operation.
	Err error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{votes: make(map[[2]string]bool)}
}

// Add records a vote directly, bypassing toggle semantics.
func (m *MemoryStore) Add(comicID, visitorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votes[[2]string{comicID, visitorID}] = true
}

// Rows reports how many rows exist for the pair (0 or 1).
func (m *MemoryStore) Rows(comicID, visitorID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.votes[[2]string{comicID, visitorID}] {
		return 1
	}
	return 0
}

func (m *MemoryStore) Counts(_ context.Context, comicIDs []string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	counts := make(map[string]int64)
	for _, id := range comicIDs {
		if n := m.countLocked(id); n > 0 {
			counts[id] = n
		}
	}
	return counts, nil
}

func (m *MemoryStore) VotedComics(_ context.Context, comicIDs []string, visitorID string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	voted := make(map[string]bool)
	for _, id := range comicIDs {
		if m.votes[[2]string{id, visitorID}] {
			voted[id] = true
		}
	}
	return voted, nil
}

func (m *MemoryStore) Toggle(_ context.Context, comicID, visitorID string) (store.ToggleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return store.ToggleResult{}, m.Err
	}
	key := [2]string{comicID, visitorID}
	var res store.ToggleResult
	if m.votes[key] {
		delete(m.votes, key)
	} else {
		m.votes[key] = true
		res.Voted = true
	}
	res.Count = m.countLocked(comicID)
	return res, nil
}

func (m *MemoryStore) countLocked(comicID string) int64 {
	var n int64
	for key := range m.votes {
		if key[0] == comicID {
			n++
		}
	}
	return n
}

// FakeDatabase satisfies database.Service with a fixed health status.
type FakeDatabase struct {
	Status string
}

func (f FakeDatabase) Health(context.Context) map[string]string {
	return map[string]string{"status": f.Status}
}

func (FakeDatabase) Close() error     { return nil }
func (FakeDatabase) GetDB() *gorm.DB { return nil }

// DiscardLogger returns a logrus logger that writes nowhere.
func DiscardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// MakeRequest creates an HTTP test request. A string body is sent verbatim,
// anything else is JSON-encoded.
func MakeRequest(method, path string, body interface{}, cookies ...*http.Cookie) *http.Request {
	var req *http.Request
	switch b := body.(type) {
	case nil:
		req = httptest.NewRequest(method, path, nil)
	case string:
		req = httptest.NewRequest(method, path, strings.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	default:
		jsonBody, _ := json.Marshal(b)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	}

	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

// DecodeJSON decodes the response body into v.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v. Body: %s", err, w.Body.String())
	}
}

// FindCookie returns the named cookie set by the response, or nil.
func FindCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
