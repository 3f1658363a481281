package verification

import "errors"

// Failure taxonomy for challenge issuance and verification. Handlers map
// these onto legacy result codes; internals behind ErrUpstreamUnavailable
// are never exposed to callers.
var (
	ErrMissingParameter       = errors.New("missing required parameter")
	ErrInvalidFormat          = errors.New("parameter format is invalid")
	ErrImageChallengeExpired  = errors.New("image challenge is absent or expired")
	ErrImageChallengeMismatch = errors.New("image challenge text does not match")
	ErrSmsChallengeExpired    = errors.New("sms challenge is absent or expired")
	ErrSmsChallengeMismatch   = errors.New("sms challenge code does not match")
	ErrTooFrequent            = errors.New("sms challenge requested too frequently")
	ErrUpstreamUnavailable    = errors.New("verification upstream unavailable")
)
