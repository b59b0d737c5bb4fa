// Package oauth drives the delegated-authorization handshake that turns an
// external consent step into a long-lived session credential.
//
// The handshake is the temporary-credential style: obtain a request token
// from the resolved host, send the user to the host's authorization page,
// and exchange the request token plus the returned verifier for an access
// token. An attempt survives process recreation: its request token is
// persisted under an attempt id and Complete can be called by a freshly
// built flow.
package oauth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/notewell/notewell-go/pkg/errors"
	"github.com/notewell/notewell-go/pkg/logger"
	"github.com/notewell/notewell-go/pkg/networking"
	"github.com/notewell/notewell-go/pkg/session"
)

// Form fields and endpoints of the authorization protocol.
const (
	paramConsumerKey     = "oauth_consumer_key"
	paramSignature       = "oauth_signature"
	paramSignatureMethod = "oauth_signature_method"
	paramTimestamp       = "oauth_timestamp"
	paramNonce           = "oauth_nonce"
	paramCallback        = "oauth_callback"
	paramToken           = "oauth_token"
	paramTokenSecret     = "oauth_token_secret"
	paramVerifier        = "oauth_verifier"

	paramNoteStoreURL    = "edam_noteStoreUrl"
	paramWebAPIURLPrefix = "edam_webApiUrlPrefix"
	paramUserID          = "edam_userId"

	// sandbox_lnb on the callback marks that the user granted access to
	// linked sandbox notebooks.
	paramSandboxLinked = "sandbox_lnb"

	signatureMethodPlaintext = "PLAINTEXT"

	tokenPath     = "/oauth"
	authorizePath = "/OAuth.action"
)

// Redirect tells the caller where to send the user for consent. The
// attempt id must be carried through the external step and handed back to
// Complete.
type Redirect struct {
	AttemptID        string
	AuthorizationURL string
}

// Flow drives one or more authorization attempts against a session manager.
type Flow struct {
	manager        *session.Manager
	pending        *PendingStore
	consumerKey    string
	consumerSecret string
	callbackURL    string
	locale         string
	linkedSandbox  bool
	httpClient     networking.HTTPClient
	baseURL        func(host string) string
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithCallbackURL sets the URL the authorization page redirects back to.
func WithCallbackURL(callbackURL string) FlowOption {
	return func(f *Flow) {
		f.callbackURL = callbackURL
	}
}

// WithLocale sets the locale used for endpoint resolution.
func WithLocale(locale string) FlowOption {
	return func(f *Flow) {
		f.locale = locale
	}
}

// WithLinkedSandboxSupport annotates the authorization URL so the user may
// grant access to linked sandbox notebooks.
func WithLinkedSandboxSupport() FlowOption {
	return func(f *Flow) {
		f.linkedSandbox = true
	}
}

// WithHTTPClient overrides the HTTP client used for token requests.
func WithHTTPClient(client networking.HTTPClient) FlowOption {
	return func(f *Flow) {
		f.httpClient = client
	}
}

// WithBaseURL overrides how a resolved host maps to a base URL. Tests use
// this to point the flow at a local server.
func WithBaseURL(baseURL func(host string) string) FlowOption {
	return func(f *Flow) {
		f.baseURL = baseURL
	}
}

// NewFlow builds a Flow bound to a session manager. consumerKey and
// consumerSecret identify the application to the service.
func NewFlow(manager *session.Manager, consumerKey, consumerSecret string, opts ...FlowOption) *Flow {
	f := &Flow{
		manager:        manager,
		pending:        NewPendingStore(manager.KVStore()),
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		baseURL: func(host string) string {
			return "https://" + host
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.httpClient == nil {
		f.httpClient = networking.NewHTTPClientBuilder().
			WithTimeout(manager.Timeout()).
			WithUserAgent(manager.UserAgent()).
			WithAllowHTTP(manager.AllowHTTP()).
			Build()
	}
	return f
}

// Begin resolves the service endpoint, obtains a request token, and returns
// the authorization redirect. On failure nothing is persisted and no
// credential state changes.
func (f *Flow) Begin(ctx context.Context) (*Redirect, error) {
	host, profile, err := f.manager.NewResolver().
		ResolveEndpoint(ctx, f.manager.Environment(), f.locale)
	if err != nil {
		return nil, err
	}
	logger.Debugw("starting authorization attempt", "host", host, "profile", profile.Name)

	form := f.signedForm("")
	if f.callbackURL != "" {
		form.Set(paramCallback, f.callbackURL)
	}

	values, err := networking.PostForm(ctx, f.httpClient, f.baseURL(host)+tokenPath, form)
	if err != nil {
		return nil, err
	}

	requestToken := values.Get(paramToken)
	requestSecret := values.Get(paramTokenSecret)
	if requestToken == "" {
		return nil, errors.NewSystemError("authorization server returned no request token", nil)
	}

	attempt := &PendingAuthorization{
		ID:            uuid.NewString(),
		Host:          host,
		RequestToken:  requestToken,
		RequestSecret: requestSecret,
		CreatedAt:     time.Now().UnixMilli(),
	}
	if err := f.pending.Save(attempt); err != nil {
		return nil, err
	}

	authorizeURL := f.baseURL(host) + authorizePath + "?" + url.Values{
		paramToken: {requestToken},
	}.Encode()
	if f.linkedSandbox {
		authorizeURL += "&supportLinkedSandbox=true"
	}

	return &Redirect{
		AttemptID:        attempt.ID,
		AuthorizationURL: authorizeURL,
	}, nil
}

// Complete finishes the attempt identified by attemptID with the outcome of
// the external authorization step. authorized is the surface's success
// signal; callbackURL is the redirect it observed.
//
// It returns false, leaving credential state untouched, when the user
// denied consent, the flow was aborted, or the callback carries no
// verifier. It returns true only after the exchanged credential has been
// persisted and installed into the session manager.
func (f *Flow) Complete(ctx context.Context, attemptID string, authorized bool, callbackURL string) (bool, error) {
	attempt, err := f.pending.Load(attemptID)
	if err != nil {
		return false, err
	}
	if attempt == nil {
		logger.Warnw("no pending authorization for attempt", "attempt_id", attemptID)
		return false, nil
	}

	if !authorized {
		_ = f.pending.Remove(attemptID)
		return false, nil
	}

	verifier, sandboxLinked := parseCallback(callbackURL)
	if verifier == "" {
		_ = f.pending.Remove(attemptID)
		return false, nil
	}

	form := f.signedForm(attempt.RequestSecret)
	form.Set(paramToken, attempt.RequestToken)
	form.Set(paramVerifier, verifier)

	values, err := networking.PostForm(ctx, f.httpClient, f.baseURL(attempt.Host)+tokenPath, form)
	if err != nil {
		return false, err
	}

	accessToken := values.Get(paramToken)
	if accessToken == "" {
		return false, errors.NewSystemError("authorization server returned no access token", nil)
	}

	userID, err := strconv.ParseInt(values.Get(paramUserID), 10, 32)
	if err != nil {
		return false, errors.NewSystemError(
			fmt.Sprintf("authorization server returned a malformed user id %q", values.Get(paramUserID)), err)
	}

	cred := &session.Credential{
		AuthToken:       accessToken,
		NoteStoreURL:    values.Get(paramNoteStoreURL),
		WebAPIURLPrefix: values.Get(paramWebAPIURLPrefix),
		Host:            attempt.Host,
		UserID:          int32(userID),
		LinkedSandbox:   sandboxLinked,
	}
	if err := f.manager.SetCredential(cred); err != nil {
		return false, err
	}

	_ = f.pending.Remove(attemptID)
	return true, nil
}

// signedForm builds the common protocol fields. The plaintext signature is
// the consumer secret joined with the token secret (empty for the request
// leg).
func (f *Flow) signedForm(tokenSecret string) url.Values {
	return url.Values{
		paramConsumerKey:     {f.consumerKey},
		paramSignature:       {f.consumerSecret + "&" + tokenSecret},
		paramSignatureMethod: {signatureMethodPlaintext},
		paramTimestamp:       {strconv.FormatInt(time.Now().Unix(), 10)},
		paramNonce:           {uuid.NewString()},
	}
}

// parseCallback extracts the verifier and the linked-sandbox grant flag
// from the callback URL the authorization surface observed.
func parseCallback(callbackURL string) (string, bool) {
	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return "", false
	}
	query := parsed.Query()
	sandboxLinked, _ := strconv.ParseBool(query.Get(paramSandboxLinked))
	return query.Get(paramVerifier), sandboxLinked
}
