package clients

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/notewell/notewell-go/pkg/errors"
	"github.com/notewell/notewell-go/pkg/logger"
	"github.com/notewell/notewell-go/pkg/networking"
	"github.com/notewell/notewell-go/pkg/rpc"
	"github.com/notewell/notewell-go/pkg/session"
)

// clientKey identifies one cached note-service handle.
type clientKey struct {
	url   string
	token string
}

// Factory builds and caches client handles for one session.
type Factory struct {
	session *session.Manager
	now     func() time.Time

	mu          sync.Mutex
	generation  uint64
	userClient  *UserClient
	noteClients map[clientKey]*NoteClient
	linked      map[string]*LinkedNotebookDelegate

	// flight collapses concurrent delegate derivations: one in-flight
	// business refresh, one linked-notebook auth per notebook.
	flight singleflight.Group
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithClock overrides the time source used for business token expiry.
func WithClock(now func() time.Time) FactoryOption {
	return func(f *Factory) {
		f.now = now
	}
}

// NewFactory builds a Factory bound to a session manager.
func NewFactory(sess *session.Manager, opts ...FactoryOption) *Factory {
	f := &Factory{
		session:     sess,
		now:         time.Now,
		generation:  sess.Generation(),
		noteClients: make(map[clientKey]*NoteClient),
		linked:      make(map[string]*LinkedNotebookDelegate),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// syncGenerationLocked drops every cached handle when the session's
// credential generation moved since they were built. Handles capture their
// auth token at construction, so a logout or re-login makes all of them
// stale at once. Callers must hold f.mu.
func (f *Factory) syncGenerationLocked() {
	gen := f.session.Generation()
	if gen == f.generation {
		return
	}
	f.generation = gen
	f.userClient = nil
	f.noteClients = make(map[clientKey]*NoteClient)
	f.linked = make(map[string]*LinkedNotebookDelegate)
	logger.Debugw("session changed, client cache dropped", "generation", gen)
}

// clientConfig assembles the stub config for an endpoint.
func (f *Factory) clientConfig(endpointURL string) rpc.ClientConfig {
	return rpc.ClientConfig{
		EndpointURL: endpointURL,
		UserAgent:   f.session.UserAgent(),
		Timeout:     f.session.Timeout(),
		AllowHTTP:   f.session.AllowHTTP(),
	}
}

// GetUserServiceClient returns the account-service handle for the current
// session, building it lazily from the session's resolved host.
func (f *Factory) GetUserServiceClient() (*UserClient, error) {
	cred := f.session.GetCredential()
	if !cred.Exists() {
		return nil, errors.NewInvalidStateError("no active session", nil)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncGenerationLocked()

	if f.userClient != nil {
		return f.userClient, nil
	}

	svc, err := f.session.Dialers().UserService(f.clientConfig(rpc.UserServiceURL(cred.Host)))
	if err != nil {
		return nil, errors.NewTransportError("failed to build user service client", err)
	}
	f.userClient = &UserClient{svc: svc, authToken: cred.AuthToken}
	return f.userClient, nil
}

// GetNoteServiceClient returns the note-service handle for the session's
// own shard and token.
func (f *Factory) GetNoteServiceClient() (*NoteClient, error) {
	cred := f.session.GetCredential()
	if !cred.Exists() {
		return nil, errors.NewInvalidStateError("no active session", nil)
	}
	return f.GetNoteServiceClientFor(cred.NoteStoreURL, cred.AuthToken)
}

// GetNoteServiceClientFor returns the handle for an (endpoint, token) pair,
// creating it on first request. Creation and insertion share one critical
// section so concurrent callers always observe the same instance.
func (f *Factory) GetNoteServiceClientFor(endpointURL, authToken string) (*NoteClient, error) {
	if err := networking.ValidateEndpointURL(endpointURL); err != nil {
		return nil, errors.NewInvalidStateError("bad note service endpoint", err)
	}
	key := clientKey{url: endpointURL, token: authToken}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncGenerationLocked()

	if client, ok := f.noteClients[key]; ok {
		return client, nil
	}

	svc, err := f.session.Dialers().NoteService(f.clientConfig(endpointURL))
	if err != nil {
		return nil, errors.NewTransportError("failed to build note service client", err)
	}
	client := &NoteClient{svc: svc, endpointURL: endpointURL, authToken: authToken}
	f.noteClients[key] = client
	logger.Debugw("created note service client", "endpoint", endpointURL)
	return client, nil
}
