package rpc

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notewell/notewell-go/pkg/errors"
)

func TestTranslateError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    error
		check func(t *testing.T, out error)
	}{
		{
			name: "nil passes through",
			in:   nil,
			check: func(t *testing.T, out error) {
				t.Helper()
				assert.NoError(t, out)
			},
		},
		{
			name: "auth expired on token",
			in:   &ServiceError{Kind: KindUser, Code: CodeAuthExpired, Parameter: "authenticationToken", Message: "expired"},
			check: func(t *testing.T, out error) {
				t.Helper()
				assert.True(t, errors.IsAuthExpired(out))
			},
		},
		{
			name: "auth expired without parameter",
			in:   &ServiceError{Kind: KindUser, Code: CodeAuthExpired, Message: "expired"},
			check: func(t *testing.T, out error) {
				t.Helper()
				assert.True(t, errors.IsAuthExpired(out))
			},
		},
		{
			name: "invalid auth on another parameter stays plain user error",
			in:   &ServiceError{Kind: KindUser, Code: CodeInvalidAuth, Parameter: "shareKey", Message: "bad key"},
			check: func(t *testing.T, out error) {
				t.Helper()
				assert.True(t, errors.IsUser(out))
				assert.False(t, errors.IsAuthExpired(out))
			},
		},
		{
			name: "permission denied",
			in:   &ServiceError{Kind: KindUser, Code: CodePermissionDenied, Parameter: "notebook", Message: "no"},
			check: func(t *testing.T, out error) {
				t.Helper()
				assert.True(t, errors.IsPermissionDenied(out))
			},
		},
		{
			name: "rate limit",
			in:   &ServiceError{Kind: KindUser, Code: CodeRateLimitReached, Message: "slow down"},
			check: func(t *testing.T, out error) {
				t.Helper()
				assert.True(t, errors.IsRateLimited(out))
			},
		},
		{
			name: "not found",
			in:   &ServiceError{Kind: KindNotFound, Message: "no such note"},
			check: func(t *testing.T, out error) {
				t.Helper()
				assert.True(t, errors.IsNotFound(out))
			},
		},
		{
			name: "system",
			in:   &ServiceError{Kind: KindSystem, Message: "shard down"},
			check: func(t *testing.T, out error) {
				t.Helper()
				assert.True(t, errors.IsSystem(out))
			},
		},
		{
			name: "plain error becomes transport",
			in:   stderrors.New("connection reset"),
			check: func(t *testing.T, out error) {
				t.Helper()
				assert.True(t, errors.IsTransport(out))
			},
		},
		{
			name: "already typed error passes through",
			in:   errors.NewVersionUnsupportedError("too old", nil),
			check: func(t *testing.T, out error) {
				t.Helper()
				assert.True(t, errors.IsVersionUnsupported(out))
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.check(t, TranslateError(tt.in))
		})
	}
}

func TestTranslateErrorKeepsCause(t *testing.T) {
	t.Parallel()

	svcErr := &ServiceError{Kind: KindNotFound, Message: "gone"}
	out := TranslateError(fmt.Errorf("calling GetNote: %w", svcErr))
	require.Error(t, out)

	var unwrapped *ServiceError
	assert.True(t, stderrors.As(out, &unwrapped))
	assert.Equal(t, svcErr, unwrapped)
}

func TestServiceErrorString(t *testing.T) {
	t.Parallel()

	withParam := &ServiceError{Kind: KindUser, Code: CodeAuthExpired, Parameter: "authenticationToken", Message: "expired"}
	assert.Equal(t, `USER(AUTH_EXPIRED) on "authenticationToken": expired`, withParam.Error())

	withoutParam := &ServiceError{Kind: KindSystem, Code: "", Message: "down"}
	assert.Equal(t, "SYSTEM(): down", withoutParam.Error())
}

func TestUserServiceURL(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "https://www.notewell.com/edam/user", UserServiceURL("www.notewell.com"))
}
