package session

import "time"

// Credential is the authenticated session's token and endpoint bundle.
//
// A credential without an auth token does not exist: the session is logged
// out and no partially-authenticated state is ever visible. The business
// fields are attached later by the client factory's business refresh and
// are empty on accounts without business access.
type Credential struct {
	// AuthToken is the long-lived personal access token. Secret.
	AuthToken string

	// NoteStoreURL is the account's note-service endpoint.
	NoteStoreURL string

	// WebAPIURLPrefix prefixes web API calls (note thumbnails, shard data).
	WebAPIURLPrefix string

	// Host is the resolved account service host.
	Host string

	// UserID is the numeric account id.
	UserID int32

	// LinkedSandbox marks a session authorized to access linked sandbox
	// notebooks.
	LinkedSandbox bool

	// BusinessID is the id of the account's business, when one is attached.
	BusinessID int32

	// BusinessName is the display name of the attached business.
	BusinessName string

	// BusinessToken is the secondary token scoped to the business. Secret.
	BusinessToken string

	// BusinessTokenExpiration is the business token's expiry, epoch millis.
	BusinessTokenExpiration int64

	// BusinessNoteStoreURL is the business note-service endpoint.
	BusinessNoteStoreURL string
}

// Exists reports whether the credential represents a logged-in session.
func (c *Credential) Exists() bool {
	return c != nil && c.AuthToken != ""
}

// BusinessTokenValid reports whether the cached business token can still be
// used at the given instant.
func (c *Credential) BusinessTokenValid(now time.Time) bool {
	if c == nil || c.BusinessToken == "" {
		return false
	}
	return now.UnixMilli() < c.BusinessTokenExpiration
}

// clone returns a copy so callers cannot mutate the manager's record.
func (c *Credential) clone() *Credential {
	if c == nil {
		return nil
	}
	copied := *c
	return &copied
}
