package oauth

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/notewell/notewell-go/pkg/session"
)

// pendingKeyPrefix namespaces pending-authorization records inside the
// session KV space.
const pendingKeyPrefix = "pending_auth:"

// pendingTTL bounds how long an interrupted authorization stays resumable.
const pendingTTL = time.Hour

// PendingAuthorization is the persisted state of one in-flight
// authorization attempt. It survives process recreation so the flow can be
// resumed after the external authorization surface returns.
type PendingAuthorization struct {
	ID            string `json:"id"`
	Host          string `json:"host"`
	RequestToken  string `json:"request_token"`
	RequestSecret string `json:"request_secret"`
	CreatedAt     int64  `json:"created_at"`
}

// PendingStore persists pending authorizations through the session's KV
// space, keyed by attempt id.
type PendingStore struct {
	kv session.KV
}

// NewPendingStore wraps a KV as a pending-authorization store.
func NewPendingStore(kv session.KV) *PendingStore {
	return &PendingStore{kv: kv}
}

// Save persists the record.
func (s *PendingStore) Save(p *PendingAuthorization) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal pending authorization: %w", err)
	}
	if err := s.kv.Put(pendingKeyPrefix+p.ID, string(blob)); err != nil {
		return fmt.Errorf("failed to stage pending authorization: %w", err)
	}
	if err := s.kv.Commit(); err != nil {
		return fmt.Errorf("failed to commit pending authorization: %w", err)
	}
	return nil
}

// Load returns the record for an attempt id, or nil when absent or stale.
// Stale records are purged on access.
func (s *PendingStore) Load(id string) (*PendingAuthorization, error) {
	blob, ok, err := s.kv.Get(pendingKeyPrefix + id)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending authorization: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var p PendingAuthorization
	if err := json.Unmarshal([]byte(blob), &p); err != nil {
		return nil, fmt.Errorf("corrupt pending authorization: %w", err)
	}

	if time.Since(time.UnixMilli(p.CreatedAt)) > pendingTTL {
		_ = s.Remove(id)
		return nil, nil
	}
	return &p, nil
}

// Remove deletes the record for an attempt id.
func (s *PendingStore) Remove(id string) error {
	if err := s.kv.Remove(pendingKeyPrefix + id); err != nil {
		return fmt.Errorf("failed to stage pending authorization removal: %w", err)
	}
	if err := s.kv.Commit(); err != nil {
		return fmt.Errorf("failed to commit pending authorization removal: %w", err)
	}
	return nil
}
