package domain

import (
	"errors"

	"github.com/aussiebroadwan/sok/pkg/jwtx"
)

// Token codec failures, re-exported so callers only need this package.
var (
	ErrMalformed    = jwtx.ErrMalformed
	ErrBadSignature = jwtx.ErrInvalidSig
	ErrExpired      = jwtx.ErrExpired
)

var (
	ErrRevoked         = errors.New("auth: refresh token revoked")
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	ErrProvider        = errors.New("auth: identity provider error")
	ErrUserResolution  = errors.New("auth: user resolution failed")

	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInactive           = errors.New("auth: principal is not active")
	ErrStateMissing       = errors.New("auth: oauth2 state missing or invalid")
	ErrUnavailable        = errors.New("auth: session store unavailable")
)

// ErrorKind is the externally meaningful name of an auth failure.
type ErrorKind string

const (
	KindMalformed          ErrorKind = "MALFORMED"
	KindBadSignature       ErrorKind = "BAD_SIGNATURE"
	KindExpired            ErrorKind = "EXPIRED"
	KindRevoked            ErrorKind = "REVOKED"
	KindUnauthenticated    ErrorKind = "UNAUTHENTICATED"
	KindProviderError      ErrorKind = "PROVIDER_ERROR"
	KindUserResolution     ErrorKind = "USER_RESOLUTION_FAILED"
	KindInvalidCredentials ErrorKind = "INVALID_CREDENTIALS"
	KindInactive           ErrorKind = "INACTIVE"
	KindStateMissing       ErrorKind = "STATE_MISSING"
	KindUnavailable        ErrorKind = "UNAVAILABLE"
	KindInternal           ErrorKind = "INTERNAL"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	// order matters, wrapping errors are checked before what they wrap
	{ErrUserResolution, KindUserResolution},
	{ErrProvider, KindProviderError},
	{ErrStateMissing, KindStateMissing},
	{ErrUnauthenticated, KindUnauthenticated},
	{ErrRevoked, KindRevoked},
	{ErrMalformed, KindMalformed},
	{ErrBadSignature, KindBadSignature},
	{ErrExpired, KindExpired},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrInactive, KindInactive},
	{ErrUnavailable, KindUnavailable},
}

// KindOf classifies err. Anything unrecognised is INTERNAL.
func KindOf(err error) ErrorKind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
