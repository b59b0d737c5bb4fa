package session

import (
	"fmt"
	"strconv"
)

// Keys the credential record maps onto in the KV space. This mapping is
// owned here and nowhere else.
const (
	keyAuthToken            = "auth_token"
	keyNoteStoreURL         = "notestore_url"
	keyWebAPIURLPrefix      = "web_api_url_prefix"
	keyHost                 = "host"
	keyUserID               = "user_id"
	keyLinkedSandbox        = "linked_sandbox"
	keyBusinessID           = "business_id"
	keyBusinessName         = "business_name"
	keyBusinessToken        = "business_token"
	keyBusinessTokenExpiry  = "business_token_expiry"
	keyBusinessNoteStoreURL = "business_notestore_url"
)

var credentialKeys = []string{
	keyAuthToken,
	keyNoteStoreURL,
	keyWebAPIURLPrefix,
	keyHost,
	keyUserID,
	keyLinkedSandbox,
	keyBusinessID,
	keyBusinessName,
	keyBusinessToken,
	keyBusinessTokenExpiry,
	keyBusinessNoteStoreURL,
}

// CredentialStore persists a Credential into a KV space.
type CredentialStore struct {
	kv KV
}

// NewCredentialStore wraps a KV as a credential store.
func NewCredentialStore(kv KV) *CredentialStore {
	return &CredentialStore{kv: kv}
}

// Save writes every credential field and commits.
func (s *CredentialStore) Save(cred *Credential) error {
	if !cred.Exists() {
		return fmt.Errorf("refusing to persist a credential without an auth token")
	}

	fields := map[string]string{
		keyAuthToken:            cred.AuthToken,
		keyNoteStoreURL:         cred.NoteStoreURL,
		keyWebAPIURLPrefix:      cred.WebAPIURLPrefix,
		keyHost:                 cred.Host,
		keyUserID:               strconv.FormatInt(int64(cred.UserID), 10),
		keyLinkedSandbox:        strconv.FormatBool(cred.LinkedSandbox),
		keyBusinessID:           strconv.FormatInt(int64(cred.BusinessID), 10),
		keyBusinessName:         cred.BusinessName,
		keyBusinessToken:        cred.BusinessToken,
		keyBusinessTokenExpiry:  strconv.FormatInt(cred.BusinessTokenExpiration, 10),
		keyBusinessNoteStoreURL: cred.BusinessNoteStoreURL,
	}
	for key, value := range fields {
		if err := s.kv.Put(key, value); err != nil {
			return fmt.Errorf("failed to stage credential field %s: %w", key, err)
		}
	}
	if err := s.kv.Commit(); err != nil {
		return fmt.Errorf("failed to commit credential: %w", err)
	}
	return nil
}

// Load restores the persisted credential. Returns nil when no credential
// (no auth token) is stored.
func (s *CredentialStore) Load() (*Credential, error) {
	token, ok, err := s.kv.Get(keyAuthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}
	if !ok || token == "" {
		return nil, nil
	}

	cred := &Credential{AuthToken: token}
	cred.NoteStoreURL, _ = s.getString(keyNoteStoreURL)
	cred.WebAPIURLPrefix, _ = s.getString(keyWebAPIURLPrefix)
	cred.Host, _ = s.getString(keyHost)
	cred.BusinessName, _ = s.getString(keyBusinessName)
	cred.BusinessToken, _ = s.getString(keyBusinessToken)
	cred.BusinessNoteStoreURL, _ = s.getString(keyBusinessNoteStoreURL)

	userID, err := s.getInt(keyUserID)
	if err != nil {
		return nil, err
	}
	cred.UserID = int32(userID)

	businessID, err := s.getInt(keyBusinessID)
	if err != nil {
		return nil, err
	}
	cred.BusinessID = int32(businessID)

	cred.BusinessTokenExpiration, err = s.getInt(keyBusinessTokenExpiry)
	if err != nil {
		return nil, err
	}

	if raw, ok := s.getString(keyLinkedSandbox); ok {
		cred.LinkedSandbox, _ = strconv.ParseBool(raw)
	}

	return cred, nil
}

// Clear removes every credential key and commits.
func (s *CredentialStore) Clear() error {
	for _, key := range credentialKeys {
		if err := s.kv.Remove(key); err != nil {
			return fmt.Errorf("failed to stage removal of %s: %w", key, err)
		}
	}
	if err := s.kv.Commit(); err != nil {
		return fmt.Errorf("failed to commit credential removal: %w", err)
	}
	return nil
}

func (s *CredentialStore) getString(key string) (string, bool) {
	value, ok, err := s.kv.Get(key)
	if err != nil || !ok {
		return "", false
	}
	return value, true
}

func (s *CredentialStore) getInt(key string) (int64, error) {
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt value for %s: %w", key, err)
	}
	return parsed, nil
}
