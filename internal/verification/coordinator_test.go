package verification

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"blog-service/internal/client"
	"blog-service/internal/config"
	redisrepo "blog-service/internal/repository/redis"
)

// ---------- fakes ----------

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// fakeCache is an in-memory Cache with lazy TTL expiry driven by a fake clock
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	clock   *fakeClock

	getErr error
	setErr error
	delErr error

	getCalls int
	setCalls int
	delCalls int
}

func newFakeCache(clock *fakeClock) *fakeCache {
	return &fakeCache{entries: map[string]cacheEntry{}, clock: clock}
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return "", false, f.getErr
	}
	e, ok := f.entries[key]
	if !ok || !f.clock.Now().Before(e.expiresAt) {
		delete(f.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (f *fakeCache) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = cacheEntry{value: value, expiresAt: f.clock.Now().Add(ttl)}
	return nil
}

func (f *fakeCache) Del(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delCalls++
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.entries, key)
	return nil
}

func (f *fakeCache) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls + f.setCalls + f.delCalls
}

type fakeGenerator struct {
	text string
}

func (g *fakeGenerator) Generate() (string, []byte, error) {
	return g.text, []byte("fake-image-bytes"), nil
}

type fakeGateway struct {
	sent chan string
	err  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sent: make(chan string, 8)}
}

func (g *fakeGateway) Send(ctx context.Context, mobile, code string, expiresIn time.Duration) error {
	g.sent <- code
	return g.err
}

type fakeLimiter struct {
	mu    sync.Mutex
	flags map[string]bool
}

func (l *fakeLimiter) AcquireSendFlag(ctx context.Context, mobile string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.flags == nil {
		l.flags = map[string]bool{}
	}
	if l.flags[mobile] {
		return false, nil
	}
	l.flags[mobile] = true
	return true, nil
}

// ---------- helpers ----------

const testMobile = "13800000000"

func testConfig() config.VerificationConfig {
	return config.VerificationConfig{
		ImageCodeTTL: 300 * time.Second,
		SMSCodeTTL:   300 * time.Second,
	}
}

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, *fakeCache, *fakeGateway, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cache := newFakeCache(clock)
	gateway := newFakeGateway()
	coord := NewCoordinator(cache, &fakeGenerator{text: "AB3D"}, gateway,
		testConfig(), zap.NewNop(), opts...)
	return coord, cache, gateway, clock
}

func awaitCode(t *testing.T, gw *fakeGateway) string {
	t.Helper()
	select {
	case code := <-gw.sent:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("no sms dispatched")
		return ""
	}
}

// ---------- image challenge ----------

func TestIssueImageChallengeMissingToken(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	if _, err := coord.IssueImageChallenge(context.Background(), ""); !errors.Is(err, ErrMissingParameter) {
		t.Fatalf("expected ErrMissingParameter, got %v", err)
	}
}

func TestIssueImageChallengeReturnsImage(t *testing.T) {
	coord, cache, _, _ := newTestCoordinator(t)

	img, err := coord.IssueImageChallenge(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if string(img) != "fake-image-bytes" {
		t.Fatalf("unexpected image payload: %q", img)
	}
	if got, ok, _ := cache.Get(context.Background(), "img:sess-1"); !ok || got != "AB3D" {
		t.Fatalf("expected cached text AB3D, got %q (found=%v)", got, ok)
	}
}

func TestImageChallengeSingleUse(t *testing.T) {
	coord, _, gw, _ := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := coord.IssueImageChallenge(ctx, "sess-1"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := coord.IssueSmsChallenge(ctx, testMobile, "ab3d", "sess-1"); err != nil {
		t.Fatalf("first verification should succeed (case-insensitive), got %v", err)
	}
	awaitCode(t, gw)

	// The challenge was consumed by the first attempt
	err := coord.IssueSmsChallenge(ctx, testMobile, "ab3d", "sess-1")
	if !errors.Is(err, ErrImageChallengeExpired) {
		t.Fatalf("expected ErrImageChallengeExpired on replay, got %v", err)
	}
}

func TestImageChallengeWrongGuessBurnsChallenge(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := coord.IssueImageChallenge(ctx, "sess-1"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	err := coord.IssueSmsChallenge(ctx, testMobile, "WRONG", "sess-1")
	if !errors.Is(err, ErrImageChallengeMismatch) {
		t.Fatalf("expected ErrImageChallengeMismatch, got %v", err)
	}

	// Retrying with the correct text must fail: the wrong guess deleted it
	err = coord.IssueSmsChallenge(ctx, testMobile, "AB3D", "sess-1")
	if !errors.Is(err, ErrImageChallengeExpired) {
		t.Fatalf("expected ErrImageChallengeExpired after burned challenge, got %v", err)
	}
}

func TestImageChallengeReissueInvalidatesPrevious(t *testing.T) {
	clock := newFakeClock()
	cache := newFakeCache(clock)
	gen := &fakeGenerator{text: "FIRST"}
	coord := NewCoordinator(cache, gen, newFakeGateway(), testConfig(), zap.NewNop())
	ctx := context.Background()

	if _, err := coord.IssueImageChallenge(ctx, "sess-1"); err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	gen.text = "SECOND"
	if _, err := coord.IssueImageChallenge(ctx, "sess-1"); err != nil {
		t.Fatalf("second issue failed: %v", err)
	}

	err := coord.IssueSmsChallenge(ctx, testMobile, "FIRST", "sess-1")
	if !errors.Is(err, ErrImageChallengeMismatch) {
		t.Fatalf("expected first challenge text to be invalid after re-issue, got %v", err)
	}
}

func TestImageChallengeTTLBoundary(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		wantErr error
	}{
		{"just_before_expiry", 299 * time.Second, nil},
		{"just_after_expiry", 301 * time.Second, ErrImageChallengeExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord, _, gw, clock := newTestCoordinator(t)
			ctx := context.Background()

			if _, err := coord.IssueImageChallenge(ctx, "sess-ttl"); err != nil {
				t.Fatalf("issue failed: %v", err)
			}
			clock.Advance(tt.advance)

			err := coord.IssueSmsChallenge(ctx, testMobile, "AB3D", "sess-ttl")
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected success at T+%v, got %v", tt.advance, err)
				}
				awaitCode(t, gw)
			} else if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v at T+%v, got %v", tt.wantErr, tt.advance, err)
			}
		})
	}
}

// ---------- sms challenge issuance ----------

func TestIssueSmsChallengeMissingParams(t *testing.T) {
	coord, cache, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	tests := []struct {
		name                       string
		mobile, imageText, session string
	}{
		{"no_mobile", "", "AB3D", "sess-1"},
		{"no_image_text", testMobile, "", "sess-1"},
		{"no_session", testMobile, "AB3D", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := coord.IssueSmsChallenge(ctx, tt.mobile, tt.imageText, tt.session)
			if !errors.Is(err, ErrMissingParameter) {
				t.Fatalf("expected ErrMissingParameter, got %v", err)
			}
		})
	}
	if cache.calls() != 0 {
		t.Fatalf("expected no cache interaction, got %d calls", cache.calls())
	}
}

func TestIssueSmsChallengeInvalidMobileBeforeCache(t *testing.T) {
	coord, cache, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	for _, mobile := range []string{"12345", "2380000000", "1280000000a", "138000000001", "10800000000"} {
		err := coord.IssueSmsChallenge(ctx, mobile, "AB3D", "sess-1")
		if !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("mobile %q: expected ErrInvalidFormat, got %v", mobile, err)
		}
	}
	if cache.calls() != 0 {
		t.Fatalf("format check must precede cache interaction, got %d calls", cache.calls())
	}
}

func TestIssueSmsChallengeStoresSixDigitCode(t *testing.T) {
	coord, cache, gw, _ := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := coord.IssueImageChallenge(ctx, "sess-1"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := coord.IssueSmsChallenge(ctx, testMobile, "AB3D", "sess-1"); err != nil {
		t.Fatalf("sms issuance failed: %v", err)
	}

	stored, ok, _ := cache.Get(ctx, "sms:"+testMobile)
	if !ok {
		t.Fatal("expected sms code in cache")
	}
	if !regexp.MustCompile(`^\d{6}$`).MatchString(stored) {
		t.Fatalf("expected 6-digit code, got %q", stored)
	}
	if dispatched := awaitCode(t, gw); dispatched != stored {
		t.Fatalf("dispatched code %q differs from cached %q", dispatched, stored)
	}
}

func TestIssueSmsChallengeGatewayFailureIsNotFatal(t *testing.T) {
	clock := newFakeClock()
	cache := newFakeCache(clock)
	gw := newFakeGateway()
	gw.err = errors.New("provider down")
	coord := NewCoordinator(cache, &fakeGenerator{text: "AB3D"}, gw, testConfig(), zap.NewNop())
	ctx := context.Background()

	if _, err := coord.IssueImageChallenge(ctx, "sess-1"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := coord.IssueSmsChallenge(ctx, testMobile, "AB3D", "sess-1"); err != nil {
		t.Fatalf("gateway failure must not fail issuance, got %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "sms:"+testMobile); !ok {
		t.Fatal("code must stay cached despite gateway failure")
	}
}

func TestIssueSmsChallengeDeleteFailureIsNotFatal(t *testing.T) {
	coord, cache, gw, _ := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := coord.IssueImageChallenge(ctx, "sess-1"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	cache.delErr = errors.New("transient")

	if err := coord.IssueSmsChallenge(ctx, testMobile, "AB3D", "sess-1"); err != nil {
		t.Fatalf("deletion failure must not abort the flow, got %v", err)
	}
	awaitCode(t, gw)
}

func TestIssueSmsChallengeCacheDownIsUpstreamUnavailable(t *testing.T) {
	coord, cache, _, _ := newTestCoordinator(t)
	cache.getErr = errors.New("connection refused")

	err := coord.IssueSmsChallenge(context.Background(), testMobile, "AB3D", "sess-1")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestIssueSmsChallengeThrottled(t *testing.T) {
	clock := newFakeClock()
	cache := newFakeCache(clock)
	gw := newFakeGateway()
	cfg := testConfig()
	cfg.SendInterval = time.Minute
	coord := NewCoordinator(cache, &fakeGenerator{text: "AB3D"}, gw, cfg,
		zap.NewNop(), WithLimiter(&fakeLimiter{}))
	ctx := context.Background()

	if _, err := coord.IssueImageChallenge(ctx, "sess-1"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if err := coord.IssueSmsChallenge(ctx, testMobile, "AB3D", "sess-1"); err != nil {
		t.Fatalf("first issuance failed: %v", err)
	}
	awaitCode(t, gw)

	if _, err := coord.IssueImageChallenge(ctx, "sess-2"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	err := coord.IssueSmsChallenge(ctx, testMobile, "AB3D", "sess-2")
	if !errors.Is(err, ErrTooFrequent) {
		t.Fatalf("expected ErrTooFrequent inside resend window, got %v", err)
	}
}

// ---------- sms challenge verification ----------

func issueSms(t *testing.T, coord *Coordinator, gw *fakeGateway, session string) string {
	t.Helper()
	ctx := context.Background()
	if _, err := coord.IssueImageChallenge(ctx, session); err != nil {
		t.Fatalf("image issue failed: %v", err)
	}
	if err := coord.IssueSmsChallenge(ctx, testMobile, "AB3D", session); err != nil {
		t.Fatalf("sms issue failed: %v", err)
	}
	return awaitCode(t, gw)
}

func TestVerifySmsChallengeSuccessAndReplay(t *testing.T) {
	coord, _, gw, _ := newTestCoordinator(t)
	ctx := context.Background()

	code := issueSms(t, coord, gw, "sess-1")

	if err := coord.VerifySmsChallenge(ctx, testMobile, code); err != nil {
		t.Fatalf("verification failed: %v", err)
	}
	// Legacy-compatible mode: the code is not consumed on success and a
	// replay inside the TTL window still verifies
	if err := coord.VerifySmsChallenge(ctx, testMobile, code); err != nil {
		t.Fatalf("replay should verify in legacy mode, got %v", err)
	}
}

func TestVerifySmsChallengeConsumeOnVerify(t *testing.T) {
	clock := newFakeClock()
	cache := newFakeCache(clock)
	gw := newFakeGateway()
	cfg := testConfig()
	cfg.SMSConsumeOnVerify = true
	coord := NewCoordinator(cache, &fakeGenerator{text: "AB3D"}, gw, cfg, zap.NewNop())
	ctx := context.Background()

	code := issueSms(t, coord, gw, "sess-1")

	if err := coord.VerifySmsChallenge(ctx, testMobile, code); err != nil {
		t.Fatalf("verification failed: %v", err)
	}
	err := coord.VerifySmsChallenge(ctx, testMobile, code)
	if !errors.Is(err, ErrSmsChallengeExpired) {
		t.Fatalf("expected single-use code in consume mode, got %v", err)
	}
}

func TestVerifySmsChallengeMismatch(t *testing.T) {
	coord, _, gw, _ := newTestCoordinator(t)
	ctx := context.Background()

	code := issueSms(t, coord, gw, "sess-1")
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	err := coord.VerifySmsChallenge(ctx, testMobile, wrong)
	if !errors.Is(err, ErrSmsChallengeMismatch) {
		t.Fatalf("expected ErrSmsChallengeMismatch, got %v", err)
	}
	// A mismatch does not consume the sms code
	if err := coord.VerifySmsChallenge(ctx, testMobile, code); err != nil {
		t.Fatalf("correct code should still verify, got %v", err)
	}
}

func TestVerifySmsChallengeExpired(t *testing.T) {
	coord, _, gw, clock := newTestCoordinator(t)
	ctx := context.Background()

	code := issueSms(t, coord, gw, "sess-1")

	clock.Advance(299 * time.Second)
	if err := coord.VerifySmsChallenge(ctx, testMobile, code); err != nil {
		t.Fatalf("expected success at T+299s, got %v", err)
	}

	clock.Advance(2 * time.Second)
	err := coord.VerifySmsChallenge(ctx, testMobile, code)
	if !errors.Is(err, ErrSmsChallengeExpired) {
		t.Fatalf("expected ErrSmsChallengeExpired at T+301s, got %v", err)
	}
}

func TestVerifySmsChallengeNeverIssued(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	err := coord.VerifySmsChallenge(context.Background(), testMobile, "123456")
	if !errors.Is(err, ErrSmsChallengeExpired) {
		t.Fatalf("expected ErrSmsChallengeExpired, got %v", err)
	}
}

// ---------- end to end over a real cache ----------

func TestCoordinatorEndToEndWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cache := redisrepo.NewVerificationCache(client.NewRedisClientFromExisting(rdb))
	gw := newFakeGateway()
	cfg := testConfig()
	cfg.SendInterval = time.Minute
	coord := NewCoordinator(cache, &fakeGenerator{text: "AB3D"}, gw, cfg,
		zap.NewNop(), WithLimiter(cache), WithCodeFunc(func() string { return "042137" }))
	ctx := context.Background()

	if _, err := coord.IssueImageChallenge(ctx, "sess-1"); err != nil {
		t.Fatalf("image issue failed: %v", err)
	}
	if got, _ := mr.Get("img:sess-1"); got != "AB3D" {
		t.Fatalf("expected img key in redis, got %q", got)
	}

	if err := coord.IssueSmsChallenge(ctx, testMobile, "ab3d", "sess-1"); err != nil {
		t.Fatalf("sms issue failed: %v", err)
	}
	if got, _ := mr.Get("sms:" + testMobile); got != "042137" {
		t.Fatalf("expected sms key in redis, got %q", got)
	}
	if code := awaitCode(t, gw); code != "042137" {
		t.Fatalf("unexpected dispatched code %q", code)
	}

	if err := coord.VerifySmsChallenge(ctx, testMobile, "042137"); err != nil {
		t.Fatalf("verification failed: %v", err)
	}

	// Redis TTL drives expiry
	mr.FastForward(301 * time.Second)
	err := coord.VerifySmsChallenge(ctx, testMobile, "042137")
	if !errors.Is(err, ErrSmsChallengeExpired) {
		t.Fatalf("expected expiry after TTL fast-forward, got %v", err)
	}
}
