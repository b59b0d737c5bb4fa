package clients

import (
	"context"

	"github.com/notewell/notewell-go/pkg/errors"
	"github.com/notewell/notewell-go/pkg/logger"
	"github.com/notewell/notewell-go/pkg/rpc"
)

// LinkedNotebookDelegate is a note-service handle re-authenticated against
// a notebook shared from another account, bound to the owner's shard.
type LinkedNotebookDelegate struct {
	client   *NoteClient
	notebook *rpc.LinkedNotebook
	shareID  string
}

// Client returns the handle scoped to the shared notebook.
func (d *LinkedNotebookDelegate) Client() *NoteClient {
	return d.client
}

// Notebook returns the linked notebook this delegate is scoped to.
func (d *LinkedNotebookDelegate) Notebook() *rpc.LinkedNotebook {
	return d.notebook
}

// BusinessDelegate is a note-service handle bound to the account's
// business space via the secondary business token.
type BusinessDelegate struct {
	client       *NoteClient
	businessID   int32
	businessName string
}

// Client returns the handle scoped to the business note store.
func (d *BusinessDelegate) Client() *NoteClient {
	return d.client
}

// BusinessID returns the id of the business the delegate is scoped to.
func (d *BusinessDelegate) BusinessID() int32 {
	return d.businessID
}

// BusinessName returns the display name of the business.
func (d *BusinessDelegate) BusinessName() string {
	return d.businessName
}

// GetLinkedNotebookDelegate returns the delegate for a linked notebook,
// deriving it on first request: the notebook's own shard is asked to
// exchange the share key for a notebook-scoped token, and the resulting
// handle is cached under the notebook's GUID.
//
// Derivation blocks on network calls; route it through the dispatch
// gateway rather than calling from a UI-bound context. Coalesced callers
// share one derivation, which is detached from any single caller's
// cancellation so one abandoned request cannot fail the rest.
func (f *Factory) GetLinkedNotebookDelegate(ctx context.Context, notebook *rpc.LinkedNotebook) (*LinkedNotebookDelegate, error) {
	if notebook == nil || notebook.GUID == "" {
		return nil, errors.NewInvalidStateError("linked notebook with a GUID is required", nil)
	}

	f.mu.Lock()
	f.syncGenerationLocked()
	cached, ok := f.linked[notebook.GUID]
	f.mu.Unlock()
	if ok {
		return cached, nil
	}

	derivationCtx := context.WithoutCancel(ctx)
	result, err, _ := f.flight.Do("linked:"+notebook.GUID, func() (any, error) {
		// Another caller may have populated the cache while we queued.
		f.mu.Lock()
		cached, ok := f.linked[notebook.GUID]
		f.mu.Unlock()
		if ok {
			return cached, nil
		}
		return f.deriveLinkedDelegate(derivationCtx, notebook)
	})
	if err != nil {
		return nil, err
	}
	return result.(*LinkedNotebookDelegate), nil
}

func (f *Factory) deriveLinkedDelegate(ctx context.Context, notebook *rpc.LinkedNotebook) (*LinkedNotebookDelegate, error) {
	generation := f.session.Generation()
	cred := f.session.GetCredential()
	if !cred.Exists() {
		return nil, errors.NewInvalidStateError("no active session", nil)
	}

	// The share-key exchange happens on the notebook owner's shard,
	// authenticated with our primary token.
	ownerClient, err := f.GetNoteServiceClientFor(notebook.NoteStoreURL, cred.AuthToken)
	if err != nil {
		return nil, err
	}

	auth, err := ownerClient.AuthenticateToSharedNotebook(ctx, notebook.ShareKey)
	if err != nil {
		return nil, err
	}

	endpointURL := auth.NoteStoreURL
	if endpointURL == "" {
		endpointURL = notebook.NoteStoreURL
	}
	scoped, err := f.GetNoteServiceClientFor(endpointURL, auth.AuthenticationToken)
	if err != nil {
		return nil, err
	}

	delegate := &LinkedNotebookDelegate{
		client:   scoped,
		notebook: notebook,
		shareID:  notebook.ShareKey,
	}

	// Only cache if the session the delegate was derived from is still the
	// installed one; a logout during derivation makes it stale on arrival.
	f.mu.Lock()
	f.syncGenerationLocked()
	if f.generation == generation {
		f.linked[notebook.GUID] = delegate
	}
	f.mu.Unlock()

	logger.Debugw("derived linked notebook delegate", "guid", notebook.GUID, "share", notebook.ShareName)
	return delegate, nil
}

// GetBusinessDelegate returns the delegate for the account's business
// space. The secondary business token is re-exchanged when absent or past
// its expiry; concurrent callers share a single refresh, detached from any
// single caller's cancellation.
//
// Accounts without business access surface whatever error the exchange
// produces; there is no distinct "not a business account" error kind.
func (f *Factory) GetBusinessDelegate(ctx context.Context) (*BusinessDelegate, error) {
	derivationCtx := context.WithoutCancel(ctx)
	result, err, _ := f.flight.Do("business", func() (any, error) {
		return f.currentBusinessDelegate(derivationCtx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*BusinessDelegate), nil
}

func (f *Factory) currentBusinessDelegate(ctx context.Context) (*BusinessDelegate, error) {
	cred := f.session.GetCredential()
	if !cred.Exists() {
		return nil, errors.NewInvalidStateError("no active session", nil)
	}

	if cred.BusinessTokenValid(f.now()) {
		client, err := f.GetNoteServiceClientFor(cred.BusinessNoteStoreURL, cred.BusinessToken)
		if err != nil {
			return nil, err
		}
		return &BusinessDelegate{
			client:       client,
			businessID:   cred.BusinessID,
			businessName: cred.BusinessName,
		}, nil
	}

	userClient, err := f.GetUserServiceClient()
	if err != nil {
		return nil, err
	}
	auth, err := userClient.AuthenticateToBusiness(ctx)
	if err != nil {
		return nil, err
	}

	var businessID int32
	var businessName string
	if auth.User != nil && auth.User.Business != nil {
		businessID = auth.User.Business.BusinessID
		businessName = auth.User.Business.BusinessName
	}

	if err := f.session.UpdateBusinessCredential(
		businessID, businessName, auth.AuthenticationToken, auth.Expiration, auth.NoteStoreURL,
	); err != nil {
		return nil, err
	}

	client, err := f.GetNoteServiceClientFor(auth.NoteStoreURL, auth.AuthenticationToken)
	if err != nil {
		return nil, err
	}

	logger.Infow("refreshed business credential", "business_id", businessID)
	return &BusinessDelegate{
		client:       client,
		businessID:   businessID,
		businessName: businessName,
	}, nil
}
