package rpc

import (
	"context"
	"time"
)

// UserService is the account/auth half of the protocol. Implementations are
// synchronous; every method blocks for the network round-trip. Callers route
// invocations through the dispatch gateway rather than calling from a
// UI-bound context.
type UserService interface {
	// CheckVersion reports whether the server still supports the given
	// client protocol version.
	CheckVersion(ctx context.Context, clientName string, major, minor int16) (bool, error)

	// GetBootstrapInfo returns the deployment profiles for the locale,
	// most preferred first.
	GetBootstrapInfo(ctx context.Context, locale string) (*BootstrapInfo, error)

	// AuthenticateToBusiness exchanges a personal token for a business
	// token scoped to the account's business.
	AuthenticateToBusiness(ctx context.Context, authToken string) (*AuthenticationResult, error)

	// GetUser returns the profile of the token's account.
	GetUser(ctx context.Context, authToken string) (*User, error)

	// RevokeLongSession invalidates the token server-side.
	RevokeLongSession(ctx context.Context, authToken string) error
}

// NoteService is the content half of the protocol, bound to one shard.
type NoteService interface {
	// AuthenticateToSharedNotebook exchanges a share key for a token
	// scoped to the shared notebook on this shard.
	AuthenticateToSharedNotebook(ctx context.Context, shareKeyOrGlobalID, authToken string) (*AuthenticationResult, error)

	// GetSyncState returns the account's sync state on this shard.
	GetSyncState(ctx context.Context, authToken string) (*SyncState, error)

	// ListNotebooks returns all notebooks in the account.
	ListNotebooks(ctx context.Context, authToken string) ([]*Notebook, error)

	// GetNotebook returns one notebook by GUID.
	GetNotebook(ctx context.Context, authToken, guid string) (*Notebook, error)

	// GetNote returns one note, with content when withContent is set.
	GetNote(ctx context.Context, authToken, guid string, withContent bool) (*Note, error)

	// ListLinkedNotebooks returns the notebooks shared into this account.
	ListLinkedNotebooks(ctx context.Context, authToken string) ([]*LinkedNotebook, error)
}

// ClientConfig carries everything a dialer needs to build a stub.
type ClientConfig struct {
	// EndpointURL is the full service URL, e.g. "https://host/edam/user".
	EndpointURL string

	// UserAgent is the client descriptor attached to every call.
	UserAgent string

	// Timeout bounds connect and round-trip per call.
	Timeout time.Duration

	// AllowHTTP permits plain http endpoints (sandbox and tests only).
	AllowHTTP bool
}

// UserServiceDialer builds a UserService stub bound to the endpoint in cfg.
type UserServiceDialer func(cfg ClientConfig) (UserService, error)

// NoteServiceDialer builds a NoteService stub bound to the endpoint in cfg.
type NoteServiceDialer func(cfg ClientConfig) (NoteService, error)

// Dialers bundles the stub constructors the SDK threads through bootstrap
// and the client factory.
type Dialers struct {
	UserService UserServiceDialer
	NoteService NoteServiceDialer
}

// UserServiceURL derives the account-service endpoint for a resolved host.
func UserServiceURL(host string) string {
	return "https://" + host + "/edam/user"
}
