package session

import (
	"context"
	"sync"
	"time"

	"github.com/notewell/notewell-go/pkg/bootstrap"
	"github.com/notewell/notewell-go/pkg/config"
	"github.com/notewell/notewell-go/pkg/errors"
	"github.com/notewell/notewell-go/pkg/logger"
	"github.com/notewell/notewell-go/pkg/rpc"
)

// CookieClearer removes browser-level cookies scoped to a host. The SDK
// does not own a browser; embedding applications that authorized through a
// webview supply an implementation.
type CookieClearer interface {
	ClearCookies(host string) error
}

type noopCookieClearer struct{}

func (noopCookieClearer) ClearCookies(string) error { return nil }

// Manager owns the current credential and the session lifecycle. Build
// exactly one per process via Builder; teardown is only ever Logout, never
// destruction of the manager.
type Manager struct {
	kv            KV
	store         *CredentialStore
	env           bootstrap.Environment
	userAgent     string
	clientName    string
	dialers       rpc.Dialers
	cookies       CookieClearer
	loginHandler  func()
	timeout       time.Duration
	allowHTTP     bool
	bootstrapOpts []bootstrap.ResolverOption

	mu         sync.RWMutex
	cred       *Credential
	generation uint64
}

// Builder assembles a Manager. The credential store, target environment,
// and user-agent descriptor are required wiring; the rest has defaults.
type Builder struct {
	kv            KV
	env           bootstrap.Environment
	userAgent     string
	clientName    string
	dialers       rpc.Dialers
	cookies       CookieClearer
	loginHandler  func()
	timeout       time.Duration
	allowHTTP     bool
	bootstrapOpts []bootstrap.ResolverOption
}

// NewBuilder starts a Builder. Defaults come from the configuration keys in
// pkg/config when set; explicit WithX options always win.
func NewBuilder() *Builder {
	b := &Builder{
		env:     bootstrap.Production,
		cookies: noopCookieClearer{},
		timeout: config.DefaultNetworkTimeout,
	}
	if env := config.Environment(); env != "" {
		b.env = bootstrap.Environment(env)
	}
	if timeout := config.NetworkTimeout(); timeout > 0 {
		b.timeout = timeout
	}
	return b
}

// WithStore sets the durable KV space credentials persist into. Required.
func (b *Builder) WithStore(kv KV) *Builder {
	b.kv = kv
	return b
}

// WithEnvironment sets the deployment environment to resolve against.
func (b *Builder) WithEnvironment(env bootstrap.Environment) *Builder {
	b.env = env
	return b
}

// WithUserAgent sets the client descriptor attached to every call. Required.
func (b *Builder) WithUserAgent(userAgent string) *Builder {
	b.userAgent = userAgent
	return b
}

// WithClientName sets the application name sent in the version check.
func (b *Builder) WithClientName(name string) *Builder {
	b.clientName = name
	return b
}

// WithDialers sets the RPC stub constructors. Required.
func (b *Builder) WithDialers(dialers rpc.Dialers) *Builder {
	b.dialers = dialers
	return b
}

// WithCookieClearer sets the collaborator that clears account cookies on
// logout.
func (b *Builder) WithCookieClearer(c CookieClearer) *Builder {
	b.cookies = c
	return b
}

// WithLoginHandler sets the callback that presents the login surface. It is
// invoked by Authenticate and after a forced re-authentication.
func (b *Builder) WithLoginHandler(h func()) *Builder {
	b.loginHandler = h
	return b
}

// WithTimeout bounds every network round-trip the session issues.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	if timeout > 0 {
		b.timeout = timeout
	}
	return b
}

// WithAllowHTTP permits plain http endpoints (tests only).
func (b *Builder) WithAllowHTTP(allow bool) *Builder {
	b.allowHTTP = allow
	return b
}

// WithBootstrapOptions forwards options to the endpoint resolver built for
// authentication attempts.
func (b *Builder) WithBootstrapOptions(opts ...bootstrap.ResolverOption) *Builder {
	b.bootstrapOpts = append(b.bootstrapOpts, opts...)
	return b
}

// Build wires the manager and restores any persisted credential.
func (b *Builder) Build() (*Manager, error) {
	if b.kv == nil {
		return nil, errors.NewInvalidStateError("session builder requires a store", nil)
	}
	if b.userAgent == "" {
		return nil, errors.NewInvalidStateError("session builder requires a user agent", nil)
	}
	if b.dialers.UserService == nil || b.dialers.NoteService == nil {
		return nil, errors.NewInvalidStateError("session builder requires RPC dialers", nil)
	}

	m := &Manager{
		kv:            b.kv,
		store:         NewCredentialStore(b.kv),
		env:           b.env,
		userAgent:     b.userAgent,
		clientName:    b.clientName,
		dialers:       b.dialers,
		cookies:       b.cookies,
		loginHandler:  b.loginHandler,
		timeout:       b.timeout,
		allowHTTP:     b.allowHTTP,
		bootstrapOpts: b.bootstrapOpts,
	}

	cred, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	m.cred = cred
	if cred.Exists() {
		logger.Debugw("restored persisted session", "user_id", cred.UserID, "host", cred.Host)
	}

	return m, nil
}

// IsLoggedIn reports whether a credential with an auth token is installed.
func (m *Manager) IsLoggedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred.Exists()
}

// GetCredential returns a copy of the current credential, or nil when
// logged out.
func (m *Manager) GetCredential() *Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.cred.Exists() {
		return nil
	}
	return m.cred.clone()
}

// Generation identifies the current credential epoch. It advances on every
// install and clear, letting callers detect that a forced logout already
// happened for the credential they saw fail.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// SetCredential persists and installs a freshly exchanged credential.
func (m *Manager) SetCredential(cred *Credential) error {
	if !cred.Exists() {
		return errors.NewInvalidStateError("cannot install a credential without an auth token", nil)
	}
	if err := m.store.Save(cred); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = cred.clone()
	m.generation++
	logger.Infow("session established", "user_id", cred.UserID, "host", cred.Host)
	return nil
}

// UpdateBusinessCredential attaches a refreshed business token bundle to
// the current credential as one atomic, persisted update.
func (m *Manager) UpdateBusinessCredential(
	businessID int32, businessName, token string, expiration int64, noteStoreURL string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cred.Exists() {
		return errors.NewInvalidStateError("no session to attach a business credential to", nil)
	}

	updated := m.cred.clone()
	updated.BusinessID = businessID
	updated.BusinessName = businessName
	updated.BusinessToken = token
	updated.BusinessTokenExpiration = expiration
	updated.BusinessNoteStoreURL = noteStoreURL

	if err := m.store.Save(updated); err != nil {
		return err
	}
	m.cred = updated
	return nil
}

// Logout revokes the session server-side (best effort), clears the
// persisted credential and account cookies, and drops the in-memory
// record. Calling it while logged out is a programmer error.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	cred := m.cred
	if !cred.Exists() {
		m.mu.Unlock()
		return errors.NewInvalidStateError("logout called while not logged in", nil)
	}
	m.cred = nil
	m.generation++
	m.mu.Unlock()

	m.revokeSession(ctx, cred)

	if err := m.store.Clear(); err != nil {
		return err
	}
	if err := m.cookies.ClearCookies(cred.Host); err != nil {
		logger.Warnw("failed to clear account cookies", "host", cred.Host, "error", err)
	}

	logger.Infow("session logged out", "user_id", cred.UserID)
	return nil
}

// revokeSession invalidates the token server-side. Failures only get
// logged; local teardown proceeds regardless.
func (m *Manager) revokeSession(ctx context.Context, cred *Credential) {
	svc, err := m.dialers.UserService(rpc.ClientConfig{
		EndpointURL: rpc.UserServiceURL(cred.Host),
		UserAgent:   m.userAgent,
		Timeout:     m.timeout,
		AllowHTTP:   m.allowHTTP,
	})
	if err != nil {
		logger.Warnw("failed to reach account service for revocation", "error", err)
		return
	}
	if err := svc.RevokeLongSession(ctx, cred.AuthToken); err != nil {
		logger.Warnw("failed to revoke session server-side", "error", err)
	}
}

// Authenticate presents the login surface by invoking the configured login
// handler. The handler drives the delegated-authorization flow and installs
// the resulting credential via SetCredential.
func (m *Manager) Authenticate() error {
	if m.loginHandler == nil {
		return errors.NewInvalidStateError("no login handler configured", nil)
	}
	m.loginHandler()
	return nil
}

// ForceReauthentication tears the session down after the server reported
// the auth token expired, then re-presents the login surface. Unlike
// Logout it tolerates an already-cleared session, and it collapses
// concurrent triggers for the same credential generation into one.
//
// generation is the value of Generation() observed when the failing call
// was issued. A trigger whose generation no longer matches the installed
// credential is a stale report about a token that is already gone (or
// already replaced by a fresh login) and is ignored entirely.
func (m *Manager) ForceReauthentication(generation uint64) {
	m.mu.Lock()
	if !m.cred.Exists() || m.generation != generation {
		m.mu.Unlock()
		return
	}
	cred := m.cred
	m.cred = nil
	m.generation++
	m.mu.Unlock()

	// The token is already invalid server-side; only local state and
	// cookies need tearing down.
	if err := m.store.Clear(); err != nil {
		logger.Warnw("failed to clear credential store", "error", err)
	}
	if err := m.cookies.ClearCookies(cred.Host); err != nil {
		logger.Warnw("failed to clear account cookies", "host", cred.Host, "error", err)
	}
	logger.Warnw("session expired, re-authentication required", "user_id", cred.UserID)

	if m.loginHandler != nil {
		m.loginHandler()
	}
}

// Environment returns the deployment environment this session targets.
func (m *Manager) Environment() bootstrap.Environment {
	return m.env
}

// UserAgent returns the client descriptor.
func (m *Manager) UserAgent() string {
	return m.userAgent
}

// ClientName returns the application name used for version checks.
func (m *Manager) ClientName() string {
	return m.clientName
}

// Dialers returns the RPC stub constructors.
func (m *Manager) Dialers() rpc.Dialers {
	return m.dialers
}

// Timeout returns the per-call network timeout.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// AllowHTTP reports whether plain http endpoints are permitted.
func (m *Manager) AllowHTTP() bool {
	return m.allowHTTP
}

// NewResolver builds the endpoint resolver for an authentication attempt.
func (m *Manager) NewResolver() *bootstrap.Resolver {
	opts := append([]bootstrap.ResolverOption{
		bootstrap.WithTimeout(m.timeout),
		bootstrap.WithAllowHTTP(m.allowHTTP),
	}, m.bootstrapOpts...)
	return bootstrap.NewResolver(m.dialers, m.clientName, m.userAgent, opts...)
}

// KVStore exposes the durable key-value space for collaborators that
// persist adjacent state (pending authorizations).
func (m *Manager) KVStore() KV {
	return m.kv
}
