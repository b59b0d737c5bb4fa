// Package clients creates and caches the RPC client handles feature code
// talks through.
//
// Handles are expensive to build and bound to an (endpoint, token) pair, so
// the factory guarantees at most one handle per pair for its lifetime. The
// factory is recreated together with the session manager; nothing is ever
// evicted within a process lifetime.
package clients

import (
	"context"

	"github.com/notewell/notewell-go/pkg/rpc"
)

// UserClient is an account-service handle bound to a token.
type UserClient struct {
	svc       rpc.UserService
	authToken string
}

// GetUser returns the profile of this client's account.
func (c *UserClient) GetUser(ctx context.Context) (*rpc.User, error) {
	user, err := c.svc.GetUser(ctx, c.authToken)
	if err != nil {
		return nil, rpc.TranslateError(err)
	}
	return user, nil
}

// AuthenticateToBusiness exchanges this client's personal token for a
// business token.
func (c *UserClient) AuthenticateToBusiness(ctx context.Context) (*rpc.AuthenticationResult, error) {
	result, err := c.svc.AuthenticateToBusiness(ctx, c.authToken)
	if err != nil {
		return nil, rpc.TranslateError(err)
	}
	return result, nil
}

// RevokeLongSession invalidates this client's token server-side.
func (c *UserClient) RevokeLongSession(ctx context.Context) error {
	return rpc.TranslateError(c.svc.RevokeLongSession(ctx, c.authToken))
}

// NoteClient is a note-service handle bound to one shard endpoint and one
// token.
type NoteClient struct {
	svc         rpc.NoteService
	endpointURL string
	authToken   string
}

// EndpointURL returns the shard endpoint this handle is bound to.
func (c *NoteClient) EndpointURL() string {
	return c.endpointURL
}

// GetSyncState returns the account's sync state on this shard.
func (c *NoteClient) GetSyncState(ctx context.Context) (*rpc.SyncState, error) {
	state, err := c.svc.GetSyncState(ctx, c.authToken)
	if err != nil {
		return nil, rpc.TranslateError(err)
	}
	return state, nil
}

// ListNotebooks returns all notebooks in the account.
func (c *NoteClient) ListNotebooks(ctx context.Context) ([]*rpc.Notebook, error) {
	notebooks, err := c.svc.ListNotebooks(ctx, c.authToken)
	if err != nil {
		return nil, rpc.TranslateError(err)
	}
	return notebooks, nil
}

// GetNotebook returns one notebook by GUID.
func (c *NoteClient) GetNotebook(ctx context.Context, guid string) (*rpc.Notebook, error) {
	notebook, err := c.svc.GetNotebook(ctx, c.authToken, guid)
	if err != nil {
		return nil, rpc.TranslateError(err)
	}
	return notebook, nil
}

// GetNote returns one note, with content when withContent is set.
func (c *NoteClient) GetNote(ctx context.Context, guid string, withContent bool) (*rpc.Note, error) {
	note, err := c.svc.GetNote(ctx, c.authToken, guid, withContent)
	if err != nil {
		return nil, rpc.TranslateError(err)
	}
	return note, nil
}

// ListLinkedNotebooks returns the notebooks shared into this account.
func (c *NoteClient) ListLinkedNotebooks(ctx context.Context) ([]*rpc.LinkedNotebook, error) {
	notebooks, err := c.svc.ListLinkedNotebooks(ctx, c.authToken)
	if err != nil {
		return nil, rpc.TranslateError(err)
	}
	return notebooks, nil
}

// AuthenticateToSharedNotebook exchanges a share key for a token scoped to
// the shared notebook on this shard.
func (c *NoteClient) AuthenticateToSharedNotebook(ctx context.Context, shareKey string) (*rpc.AuthenticationResult, error) {
	result, err := c.svc.AuthenticateToSharedNotebook(ctx, shareKey, c.authToken)
	if err != nil {
		return nil, rpc.TranslateError(err)
	}
	return result, nil
}
