package verification

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"blog-service/internal/captcha"
	"blog-service/internal/config"
	"blog-service/internal/hashing"
	"blog-service/internal/sms"
	"blog-service/internal/util"
)

// Cache is the ephemeral key-value store holding challenge codes. Absence
// of a key is not an error: Get reports it through the found flag so the
// coordinator can distinguish expiry from an unreachable store.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// SendLimiter throttles SMS re-issuance per mobile number
type SendLimiter interface {
	AcquireSendFlag(ctx context.Context, mobile string, ttl time.Duration) (bool, error)
}

// Auditor records the outcome of every challenge operation
type Auditor interface {
	RecordVerification(ctx context.Context, kind, subject, outcome string)
}

const (
	imageKeyPrefix = "img:"
	smsKeyPrefix   = "sms:"

	smsDispatchTimeout = 15 * time.Second
)

// Coordinator issues and validates short-lived image and SMS challenge
// codes. Image challenges are single-use: the first verification attempt
// deletes the cached code whether or not the text matches. SMS codes live
// until TTL expiry unless consumeOnVerify switches them to single-use.
type Coordinator struct {
	cache           Cache
	generator       captcha.Generator
	gateway         sms.Gateway
	limiter         SendLimiter
	auditor         Auditor
	imageTTL        time.Duration
	smsTTL          time.Duration
	sendInterval    time.Duration
	consumeOnVerify bool
	codeFn          func() string
	logger          *zap.Logger
}

type Option func(*Coordinator)

// WithLimiter enables the per-mobile resend throttle
func WithLimiter(l SendLimiter) Option {
	return func(c *Coordinator) { c.limiter = l }
}

// WithAuditor enables audit event recording
func WithAuditor(a Auditor) Option {
	return func(c *Coordinator) { c.auditor = a }
}

// WithCodeFunc overrides the SMS code source; tests inject a deterministic one
func WithCodeFunc(fn func() string) Option {
	return func(c *Coordinator) { c.codeFn = fn }
}

func NewCoordinator(cache Cache, generator captcha.Generator, gateway sms.Gateway,
	cfg config.VerificationConfig, logger *zap.Logger, opts ...Option) *Coordinator {

	c := &Coordinator{
		cache:           cache,
		generator:       generator,
		gateway:         gateway,
		imageTTL:        cfg.ImageCodeTTL,
		smsTTL:          cfg.SMSCodeTTL,
		sendInterval:    cfg.SendInterval,
		consumeOnVerify: cfg.SMSConsumeOnVerify,
		codeFn:          defaultCode,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// defaultCode returns a zero-padded 6-digit code. These are short-lived,
// rate-limited secrets; math/rand is sufficient.
func defaultCode() string {
	return fmt.Sprintf("%06d", rand.Intn(1000000))
}

// IssueImageChallenge generates a text challenge for the client-supplied
// session token, caches the expected text and returns the rendered image.
// Re-issuance for the same token overwrites the previous challenge.
func (c *Coordinator) IssueImageChallenge(ctx context.Context, sessionToken string) ([]byte, error) {
	if sessionToken == "" {
		return nil, fmt.Errorf("%w: session token", ErrMissingParameter)
	}

	text, image, err := c.generator.Generate()
	if err != nil {
		c.logger.Error("captcha generation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: captcha generator", ErrUpstreamUnavailable)
	}

	if err := c.cache.SetEx(ctx, imageKeyPrefix+sessionToken, text, c.imageTTL); err != nil {
		c.logger.Error("failed to cache image challenge",
			zap.String("session_token", sessionToken),
			zap.Error(err))
		return nil, fmt.Errorf("%w: cache", ErrUpstreamUnavailable)
	}

	c.audit(ctx, "image_issue", hashing.HashIdentifier(sessionToken), "ok")
	return image, nil
}

// IssueSmsChallenge verifies the submitted image challenge text and, on
// success, caches and dispatches a fresh SMS code for the mobile number.
// The image challenge is deleted before the text comparison, so one wrong
// guess burns it.
func (c *Coordinator) IssueSmsChallenge(ctx context.Context, mobile, imageText, sessionToken string) error {
	if mobile == "" || imageText == "" || sessionToken == "" {
		return fmt.Errorf("%w: mobile, image text and session token are required", ErrMissingParameter)
	}
	if !util.IsValidMobile(mobile) {
		return fmt.Errorf("%w: mobile number", ErrInvalidFormat)
	}

	subject := hashing.HashIdentifier(mobile)

	expected, found, err := c.cache.Get(ctx, imageKeyPrefix+sessionToken)
	if err != nil {
		c.logger.Error("failed to read image challenge",
			zap.String("session_token", sessionToken),
			zap.Error(err))
		return fmt.Errorf("%w: cache", ErrUpstreamUnavailable)
	}
	if !found {
		c.audit(ctx, "sms_issue", subject, "expired")
		return ErrImageChallengeExpired
	}

	// Burn the challenge before comparing. Deletion failure is tolerated:
	// the TTL reclaims the entry eventually.
	if err := c.cache.Del(ctx, imageKeyPrefix+sessionToken); err != nil {
		c.logger.Error("failed to delete image challenge",
			zap.String("session_token", sessionToken),
			zap.Error(err))
	}

	if !strings.EqualFold(expected, imageText) {
		c.audit(ctx, "sms_issue", subject, "mismatch")
		return ErrImageChallengeMismatch
	}

	if c.limiter != nil && c.sendInterval > 0 {
		ok, err := c.limiter.AcquireSendFlag(ctx, mobile, c.sendInterval)
		if err != nil {
			// Throttling is protective, not load-bearing; keep issuing
			c.logger.Warn("send flag check failed", zap.Error(err))
		} else if !ok {
			c.audit(ctx, "sms_issue", subject, "throttled")
			return ErrTooFrequent
		}
	}

	code := c.codeFn()
	if err := c.cache.SetEx(ctx, smsKeyPrefix+mobile, code, c.smsTTL); err != nil {
		c.logger.Error("failed to cache sms challenge",
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("%w: cache", ErrUpstreamUnavailable)
	}

	c.audit(ctx, "sms_issue", subject, "ok")
	c.dispatch(mobile, code)
	return nil
}

// dispatch hands the code to the gateway without blocking the caller. The
// code is already durably cached; a delivery failure is logged and audited
// but never surfaced as an issuance error.
func (c *Coordinator) dispatch(mobile, code string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), smsDispatchTimeout)
		defer cancel()

		if err := c.gateway.Send(ctx, mobile, code, c.smsTTL); err != nil {
			c.logger.Error("sms dispatch failed",
				zap.String("subject", hashing.HashIdentifier(mobile)),
				zap.Error(err))
			c.audit(ctx, "sms_dispatch", hashing.HashIdentifier(mobile), "error")
		}
	}()
}

// VerifySmsChallenge checks the submitted code against the cached one.
// The comparison is exact. In the legacy-compatible mode the entry stays
// cached after success and remains verifiable until its TTL elapses.
func (c *Coordinator) VerifySmsChallenge(ctx context.Context, mobile, code string) error {
	if mobile == "" || code == "" {
		return fmt.Errorf("%w: mobile and code are required", ErrMissingParameter)
	}

	subject := hashing.HashIdentifier(mobile)

	stored, found, err := c.cache.Get(ctx, smsKeyPrefix+mobile)
	if err != nil {
		c.logger.Error("failed to read sms challenge",
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("%w: cache", ErrUpstreamUnavailable)
	}
	if !found {
		c.audit(ctx, "sms_verify", subject, "expired")
		return ErrSmsChallengeExpired
	}
	if stored != code {
		c.audit(ctx, "sms_verify", subject, "mismatch")
		return ErrSmsChallengeMismatch
	}

	if c.consumeOnVerify {
		if err := c.cache.Del(ctx, smsKeyPrefix+mobile); err != nil {
			c.logger.Error("failed to consume sms challenge",
				zap.String("subject", subject),
				zap.Error(err))
		}
	}

	c.audit(ctx, "sms_verify", subject, "ok")
	return nil
}

func (c *Coordinator) audit(ctx context.Context, kind, subject, outcome string) {
	if c.auditor != nil {
		c.auditor.RecordVerification(ctx, kind, subject, outcome)
	}
}
