// Package rpc defines the boundary to the generated RPC stub layer.
//
// The wire codec lives in generated code supplied by the embedding
// application; this package fixes the data types, service interfaces, and
// error contract that generated stubs must satisfy. Everything above this
// package (bootstrap, client factory, dispatch) consumes these interfaces
// only.
package rpc

// Protocol version declared by this client build. The bootstrap version
// check sends these; servers reject clients whose major/minor pair is no
// longer supported.
const (
	VersionMajor int16 = 1
	VersionMinor int16 = 28
)

// BootstrapProfile describes one deployment a client may bind to.
type BootstrapProfile struct {
	// Name identifies the profile, e.g. "Notewell" or "Notewell-China".
	Name     string
	Settings BootstrapSettings
}

// BootstrapSettings carries the service URLs for a bootstrap profile.
type BootstrapSettings struct {
	ServiceHost      string
	MarketingURL     string
	SupportURL       string
	AccountEmailHost string
	EnableSharing    bool
	EnableBusiness   bool
}

// BootstrapInfo is the server's answer to a bootstrap query: the profiles
// applicable to the requesting client, most preferred first.
type BootstrapInfo struct {
	Profiles []*BootstrapProfile
}

// AuthenticationResult is returned by every token-producing operation.
// Expiration is epoch milliseconds.
type AuthenticationResult struct {
	CurrentTime         int64
	AuthenticationToken string
	Expiration          int64
	NoteStoreURL        string
	WebAPIURLPrefix     string
	User                *User
}

// User is the account profile attached to an authentication result.
type User struct {
	ID       int32
	Username string
	Name     string
	Email    string
	Business *BusinessUserInfo
}

// BusinessUserInfo is present on accounts that belong to a business.
type BusinessUserInfo struct {
	BusinessID   int32
	BusinessName string
	Email        string
}

// LinkedNotebook references a notebook shared into this account from
// another one. Its note content lives on the owner's shard, reachable at
// NoteStoreURL.
type LinkedNotebook struct {
	GUID            string
	ShareName       string
	Username        string
	ShardID         string
	ShareKey        string
	NoteStoreURL    string
	WebAPIURLPrefix string
}

// SharedNotebook is the owner-side record of a notebook share. The
// recipient's LinkedNotebook references it through the share key.
type SharedNotebook struct {
	ID             int64
	UserID         int32
	NotebookGUID   string
	Email          string
	Privilege      int32
	ServiceCreated int64
	ServiceUpdated int64
}

// SyncState summarizes the account's server-side state.
type SyncState struct {
	CurrentTime    int64
	FullSyncBefore int64
	UpdateCount    int32
	Uploaded       int64
}

// Notebook is a collection of notes.
type Notebook struct {
	GUID           string
	Name           string
	DefaultFlag    bool
	ServiceCreated int64
	ServiceUpdated int64
}

// Note is a single note. Content is only populated when requested.
type Note struct {
	GUID         string
	Title        string
	Content      string
	ContentHash  []byte
	NotebookGUID string
	Created      int64
	Updated      int64
	Active       bool
}
