package clients

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notewell/notewell-go/pkg/errors"
	"github.com/notewell/notewell-go/pkg/rpc"
	"github.com/notewell/notewell-go/pkg/session"
)

// fakeNoteService counts share-key exchanges.
type fakeNoteService struct {
	rpc.NoteService

	mu            sync.Mutex
	sharedAuths   []string
	sharedTokens  []string
	sharedAuthRes *rpc.AuthenticationResult
	sharedAuthErr error
}

func (f *fakeNoteService) AuthenticateToSharedNotebook(ctx context.Context, shareKey, authToken string) (*rpc.AuthenticationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sharedAuths = append(f.sharedAuths, shareKey)
	f.sharedTokens = append(f.sharedTokens, authToken)
	if f.sharedAuthErr != nil {
		return nil, f.sharedAuthErr
	}
	return f.sharedAuthRes, nil
}

// fakeUserService counts business exchanges and records the tokens calls
// were made with.
type fakeUserService struct {
	rpc.UserService

	businessCalls atomic.Int64
	businessRes   *rpc.AuthenticationResult
	businessErr   error
	businessDelay time.Duration

	mu         sync.Mutex
	userTokens []string
}

func (*fakeUserService) RevokeLongSession(context.Context, string) error { return nil }

func (f *fakeUserService) GetUser(_ context.Context, authToken string) (*rpc.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userTokens = append(f.userTokens, authToken)
	return &rpc.User{ID: 42}, nil
}

func (f *fakeUserService) AuthenticateToBusiness(context.Context, string) (*rpc.AuthenticationResult, error) {
	f.businessCalls.Add(1)
	if f.businessDelay > 0 {
		time.Sleep(f.businessDelay)
	}
	if f.businessErr != nil {
		return nil, f.businessErr
	}
	return f.businessRes, nil
}

// testEnv bundles a session manager, factory, and dial counters.
type testEnv struct {
	manager   *session.Manager
	factory   *Factory
	noteSvc   *fakeNoteService
	userSvc   *fakeUserService
	noteDials atomic.Int64
}

func newTestEnv(t *testing.T, opts ...FactoryOption) *testEnv {
	t.Helper()

	env := &testEnv{
		noteSvc: &fakeNoteService{},
		userSvc: &fakeUserService{},
	}

	dialers := rpc.Dialers{
		UserService: func(rpc.ClientConfig) (rpc.UserService, error) {
			return env.userSvc, nil
		},
		NoteService: func(rpc.ClientConfig) (rpc.NoteService, error) {
			env.noteDials.Add(1)
			return env.noteSvc, nil
		},
	}

	manager, err := session.NewBuilder().
		WithStore(session.NewMemoryKV()).
		WithUserAgent("test/1.0").
		WithDialers(dialers).
		Build()
	require.NoError(t, err)

	require.NoError(t, manager.SetCredential(&session.Credential{
		AuthToken:    "primary-token",
		NoteStoreURL: "https://shard-001.notewell.com/edam/note/s1",
		Host:         "www.notewell.com",
		UserID:       42,
	}))

	env.manager = manager
	env.factory = NewFactory(manager, opts...)
	return env
}

func TestGetNoteServiceClientIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	first, err := env.factory.GetNoteServiceClient()
	require.NoError(t, err)
	second, err := env.factory.GetNoteServiceClient()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), env.noteDials.Load())
}

func TestGetNoteServiceClientForDistinctKeys(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	a, err := env.factory.GetNoteServiceClientFor("https://shard-a/edam/note", "tok-1")
	require.NoError(t, err)
	b, err := env.factory.GetNoteServiceClientFor("https://shard-a/edam/note", "tok-2")
	require.NoError(t, err)
	c, err := env.factory.GetNoteServiceClientFor("https://shard-b/edam/note", "tok-1")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, int64(3), env.noteDials.Load())
}

// TestGetNoteServiceClientForConcurrent exercises the at-most-one-instance
// guarantee under concurrent access to the same key.
func TestGetNoteServiceClientForConcurrent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	const goroutines = 32
	clientsSeen := make([]*NoteClient, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client, err := env.factory.GetNoteServiceClientFor("https://shard-x/edam/note", "tok")
			assert.NoError(t, err)
			clientsSeen[i] = client
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, clientsSeen[0], clientsSeen[i])
	}
	assert.Equal(t, int64(1), env.noteDials.Load())
}

func TestGetNoteServiceClientForRejectsBadEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	_, err := env.factory.GetNoteServiceClientFor("not-a-url", "tok")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidState(err))
	assert.Equal(t, int64(0), env.noteDials.Load())
}

// TestFactoryDropsCachesOnRelogin: after logout and a fresh login through
// the same manager, cached handles built for the old token must not be
// served again.
func TestFactoryDropsCachesOnRelogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.noteSvc.sharedAuthRes = &rpc.AuthenticationResult{
		AuthenticationToken: "linked-token",
		NoteStoreURL:        "https://shard-owner/edam/note/s7",
	}
	notebook := &rpc.LinkedNotebook{
		GUID:         "nb-guid",
		ShareKey:     "share-key",
		NoteStoreURL: "https://shard-owner/edam/note/s7",
	}

	first, err := env.factory.GetUserServiceClient()
	require.NoError(t, err)
	_, err = first.GetUser(context.Background())
	require.NoError(t, err)

	firstDelegate, err := env.factory.GetLinkedNotebookDelegate(context.Background(), notebook)
	require.NoError(t, err)

	require.NoError(t, env.manager.Logout(context.Background()))
	require.NoError(t, env.manager.SetCredential(&session.Credential{
		AuthToken:    "new-token",
		NoteStoreURL: "https://shard-002.notewell.com/edam/note/s2",
		Host:         "www.notewell.com",
		UserID:       42,
	}))

	second, err := env.factory.GetUserServiceClient()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	_, err = second.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"primary-token", "new-token"}, env.userSvc.userTokens)

	// The linked delegate is re-derived with the new primary token.
	secondDelegate, err := env.factory.GetLinkedNotebookDelegate(context.Background(), notebook)
	require.NoError(t, err)
	assert.NotSame(t, firstDelegate, secondDelegate)
	assert.Equal(t, []string{"primary-token", "new-token"}, env.noteSvc.sharedTokens)
}

// TestGetLinkedNotebookDelegateIgnoresCallerCancellation: the shared
// derivation must not ride a single caller's context.
func TestGetLinkedNotebookDelegateIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.noteSvc.sharedAuthRes = &rpc.AuthenticationResult{
		AuthenticationToken: "linked-token",
		NoteStoreURL:        "https://shard-owner/edam/note/s7",
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	delegate, err := env.factory.GetLinkedNotebookDelegate(ctx, &rpc.LinkedNotebook{
		GUID:         "nb-guid",
		ShareKey:     "share-key",
		NoteStoreURL: "https://shard-owner/edam/note/s7",
	})
	require.NoError(t, err)
	require.NotNil(t, delegate)
}

func TestGetUserServiceClientRequiresSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	require.NoError(t, env.manager.Logout(context.Background()))

	_, err := env.factory.GetUserServiceClient()
	assert.True(t, errors.IsInvalidState(err))
}

func TestGetLinkedNotebookDelegate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.noteSvc.sharedAuthRes = &rpc.AuthenticationResult{
		AuthenticationToken: "linked-token",
		NoteStoreURL:        "https://shard-owner/edam/note/s7",
	}

	notebook := &rpc.LinkedNotebook{
		GUID:         "nb-guid",
		ShareName:    "Shared Recipes",
		ShareKey:     "share-key",
		NoteStoreURL: "https://shard-owner/edam/note/s7",
	}

	delegate, err := env.factory.GetLinkedNotebookDelegate(context.Background(), notebook)
	require.NoError(t, err)
	require.NotNil(t, delegate)
	assert.Equal(t, []string{"share-key"}, env.noteSvc.sharedAuths)
	assert.Equal(t, "https://shard-owner/edam/note/s7", delegate.Client().EndpointURL())

	// Second request is served from the cache: no further exchange.
	again, err := env.factory.GetLinkedNotebookDelegate(context.Background(), notebook)
	require.NoError(t, err)
	assert.Same(t, delegate, again)
	assert.Len(t, env.noteSvc.sharedAuths, 1)
}

func TestGetLinkedNotebookDelegateExchangeError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.noteSvc.sharedAuthErr = &rpc.ServiceError{
		Kind: rpc.KindNotFound, Message: "shared notebook not found",
	}

	_, err := env.factory.GetLinkedNotebookDelegate(context.Background(), &rpc.LinkedNotebook{
		GUID:         "nb-guid",
		ShareKey:     "share-key",
		NoteStoreURL: "https://shard-owner/edam/note/s7",
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func businessAuthResult(token string, expiration int64) *rpc.AuthenticationResult {
	return &rpc.AuthenticationResult{
		AuthenticationToken: token,
		Expiration:          expiration,
		NoteStoreURL:        "https://shard-biz/edam/note/b1",
		User: &rpc.User{
			ID: 42,
			Business: &rpc.BusinessUserInfo{
				BusinessID:   7,
				BusinessName: "Acme Corp",
			},
		},
	}
}

func TestGetBusinessDelegateRefreshAndCache(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_000_000)
	env := newTestEnv(t, WithClock(func() time.Time { return now }))
	env.userSvc.businessRes = businessAuthResult("biz-token", 2_000_000)

	delegate, err := env.factory.GetBusinessDelegate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(7), delegate.BusinessID())
	assert.Equal(t, "Acme Corp", delegate.BusinessName())
	assert.Equal(t, int64(1), env.userSvc.businessCalls.Load())

	// The refreshed bundle is installed on the credential.
	cred := env.manager.GetCredential()
	assert.Equal(t, "biz-token", cred.BusinessToken)
	assert.Equal(t, int64(2_000_000), cred.BusinessTokenExpiration)
	assert.Equal(t, "https://shard-biz/edam/note/b1", cred.BusinessNoteStoreURL)

	// Before expiry: no further exchange.
	_, err = env.factory.GetBusinessDelegate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), env.userSvc.businessCalls.Load())

	// Past expiry: exactly one refresh.
	now = time.UnixMilli(2_000_001)
	env.userSvc.businessRes = businessAuthResult("biz-token-2", 3_000_000)
	refreshed, err := env.factory.GetBusinessDelegate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), env.userSvc.businessCalls.Load())
	assert.Equal(t, "biz-token-2", env.manager.GetCredential().BusinessToken)
	require.NotNil(t, refreshed)
}

func TestGetBusinessDelegateConcurrentRefresh(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_000_000)
	env := newTestEnv(t, WithClock(func() time.Time { return now }))
	env.userSvc.businessRes = businessAuthResult("biz-token", 2_000_000)
	env.userSvc.businessDelay = 20 * time.Millisecond

	const goroutines = 16
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.factory.GetBusinessDelegate(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), env.userSvc.businessCalls.Load())
}

func TestGetBusinessDelegateSurfacesExchangeError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.userSvc.businessErr = &rpc.ServiceError{
		Kind: rpc.KindUser, Code: rpc.CodePermissionDenied,
		Parameter: "authenticationToken", Message: "not a business account",
	}

	_, err := env.factory.GetBusinessDelegate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsPermissionDenied(err))
}
