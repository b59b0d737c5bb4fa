// Package bootstrap resolves which server deployment a session binds to.
//
// Resolution walks an ordered candidate host list, negotiating protocol
// version with each until one is reachable. A host that answers but rejects
// the client's protocol version fails the whole resolution: an incompatible
// build must not silently proceed against a later candidate.
package bootstrap

import (
	"context"
	"strings"
	"time"

	"github.com/notewell/notewell-go/pkg/errors"
	"github.com/notewell/notewell-go/pkg/logger"
	"github.com/notewell/notewell-go/pkg/rpc"
)

// Environment selects the deployment a session targets.
type Environment string

// Deployment environments.
const (
	Production Environment = "production"
	Sandbox    Environment = "sandbox"
)

// Service hosts per deployment.
const (
	hostProduction = "www.notewell.com"
	hostChina      = "app.notewell-china.cn"
	hostSandbox    = "sandbox.notewell.com"
)

// CandidateHosts returns the ordered host list for the environment. For
// production, Chinese locales get the China deployment tried first.
func CandidateHosts(env Environment, locale string) []string {
	if env == Sandbox {
		return []string{hostSandbox}
	}

	hosts := []string{hostProduction}
	if strings.HasPrefix(strings.ToLower(locale), "zh") {
		hosts = append([]string{hostChina}, hosts...)
	}
	return hosts
}

// Profile is the outcome of a successful resolution. It is built fresh per
// authentication attempt and never persisted.
type Profile struct {
	// Host is the resolved service host.
	Host string

	// Candidates lists every host tried, in order.
	Candidates []string

	// Name is the adopted bootstrap profile's name.
	Name string

	// Settings carries the adopted profile's service URLs.
	Settings rpc.BootstrapSettings
}

// Resolver negotiates a service host for one deployment environment.
type Resolver struct {
	dialers      rpc.Dialers
	clientName   string
	userAgent    string
	timeout      time.Duration
	allowHTTP    bool
	hostOverride []string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithTimeout bounds each candidate's network round-trips.
func WithTimeout(timeout time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.timeout = timeout
	}
}

// WithAllowHTTP permits plain http candidate endpoints (tests only).
func WithAllowHTTP(allow bool) ResolverOption {
	return func(r *Resolver) {
		r.allowHTTP = allow
	}
}

// WithCandidateHosts overrides the deployment host list. Used by tests and
// by self-hosted installations.
func WithCandidateHosts(hosts []string) ResolverOption {
	return func(r *Resolver) {
		r.hostOverride = hosts
	}
}

// NewResolver builds a Resolver. clientName identifies the application in
// the version check; userAgent is attached to every call.
func NewResolver(dialers rpc.Dialers, clientName, userAgent string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		dialers:    dialers,
		clientName: clientName,
		userAgent:  userAgent,
		timeout:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveEndpoint walks the candidate hosts for the environment and returns
// the first viable one plus its profile.
//
// Transport failures move on to the next candidate; a version rejection
// aborts immediately with a version_unsupported error. When every candidate
// is exhausted, the last error is surfaced.
func (r *Resolver) ResolveEndpoint(ctx context.Context, env Environment, locale string) (string, *Profile, error) {
	candidates := r.hostOverride
	if len(candidates) == 0 {
		candidates = CandidateHosts(env, locale)
	}

	var lastErr error
	for _, host := range candidates {
		profile, err := r.tryHost(ctx, host, locale)
		if err == nil {
			profile.Candidates = candidates
			logger.Infow("resolved service endpoint", "host", host, "profile", profile.Name)
			return host, profile, nil
		}

		if !errors.IsTransport(err) {
			// Version rejection or a server-reported failure: fatal,
			// never retried against the next candidate.
			return "", nil, err
		}

		logger.Warnw("bootstrap candidate unreachable", "host", host, "error", err)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.NewTransportError("no bootstrap candidates for locale "+locale, nil)
	}
	return "", nil, lastErr
}

func (r *Resolver) tryHost(ctx context.Context, host, locale string) (*Profile, error) {
	svc, err := r.dialers.UserService(rpc.ClientConfig{
		EndpointURL: rpc.UserServiceURL(host),
		UserAgent:   r.userAgent,
		Timeout:     r.timeout,
		AllowHTTP:   r.allowHTTP,
	})
	if err != nil {
		return nil, errors.NewTransportError("failed to connect to "+host, err)
	}

	ok, err := svc.CheckVersion(ctx, r.clientName, rpc.VersionMajor, rpc.VersionMinor)
	if err != nil {
		return nil, rpc.TranslateError(err)
	}
	if !ok {
		return nil, errors.NewVersionUnsupportedError(
			"server "+host+" no longer supports this client's protocol version", nil)
	}

	info, err := svc.GetBootstrapInfo(ctx, locale)
	if err != nil {
		return nil, rpc.TranslateError(err)
	}
	if info == nil || len(info.Profiles) == 0 {
		return nil, errors.NewSystemError("server "+host+" returned no bootstrap profiles", nil)
	}

	adopted := info.Profiles[0]
	return &Profile{
		Host:     host,
		Name:     adopted.Name,
		Settings: adopted.Settings,
	}, nil
}
