package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"blog-service/internal/client"
	"blog-service/internal/config"
	redisrepo "blog-service/internal/repository/redis"
	"blog-service/internal/verification"
)

type stubGenerator struct {
	text string
}

func (g stubGenerator) Generate() (string, []byte, error) {
	return g.text, []byte("\x89PNG fake image"), nil
}

type stubGateway struct{}

func (stubGateway) Send(ctx context.Context, mobile, code string, expiresIn time.Duration) error {
	return nil
}

func newTestRouter(t *testing.T) (chi.Router, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := client.NewRedisClientFromExisting(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	cache := redisrepo.NewVerificationCache(rc)

	cfg := config.VerificationConfig{
		ImageCodeTTL: 300 * time.Second,
		SMSCodeTTL:   300 * time.Second,
		SendInterval: 60 * time.Second,
	}
	coordinator := verification.NewCoordinator(
		cache,
		stubGenerator{text: "AbCd"},
		stubGateway{},
		cfg,
		zap.NewNop(),
		verification.WithLimiter(cache),
		verification.WithCodeFunc(func() string { return "031725" }),
	)

	router := chi.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		NewVerificationHandler(coordinator, zap.NewNop()).RegisterRoutes(r)
	})
	return router, mr
}

func doRequest(router chi.Router, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestGetImageCode(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, "/api/v1/verification/image?uuid=client-uuid-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected image bytes in response body")
	}
}

func TestGetImageCodeMissingUUID(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, "/api/v1/verification/image")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.Code != CodeNecessaryParam {
		t.Errorf("code = %s, want %s", resp.Code, CodeNecessaryParam)
	}
}

func TestGetSmsCodeHappyPath(t *testing.T) {
	router, _ := newTestRouter(t)

	doRequest(router, "/api/v1/verification/image?uuid=u1")

	rec := doRequest(router, "/api/v1/verification/sms?mobile=13800000000&image_code=abcd&uuid=u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp.Code != CodeOK {
		t.Errorf("code = %s, want %s", resp.Code, CodeOK)
	}
	if resp.Errmsg != "ok" {
		t.Errorf("errmsg = %q, want ok", resp.Errmsg)
	}
}

func TestGetSmsCodeWrongImageCode(t *testing.T) {
	router, _ := newTestRouter(t)

	doRequest(router, "/api/v1/verification/image?uuid=u1")

	rec := doRequest(router, "/api/v1/verification/sms?mobile=13800000000&image_code=zzzz&uuid=u1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.Code != CodeImageCodeErr {
		t.Errorf("code = %s, want %s", resp.Code, CodeImageCodeErr)
	}

	// first attempt burned the challenge, a retry with the right answer
	// is rejected as expired
	rec = doRequest(router, "/api/v1/verification/sms?mobile=13800000000&image_code=abcd&uuid=u1")
	if resp := decodeResponse(t, rec); resp.Code != CodeImageCodeErr {
		t.Errorf("code after burn = %s, want %s", resp.Code, CodeImageCodeErr)
	}
}

func TestGetSmsCodeExpiredChallenge(t *testing.T) {
	router, mr := newTestRouter(t)

	doRequest(router, "/api/v1/verification/image?uuid=u1")
	mr.FastForward(301 * time.Second)

	rec := doRequest(router, "/api/v1/verification/sms?mobile=13800000000&image_code=abcd&uuid=u1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.Code != CodeImageCodeErr {
		t.Errorf("code = %s, want %s", resp.Code, CodeImageCodeErr)
	}
}

func TestGetSmsCodeMissingParams(t *testing.T) {
	router, _ := newTestRouter(t)

	targets := []string{
		"/api/v1/verification/sms",
		"/api/v1/verification/sms?mobile=13800000000",
		"/api/v1/verification/sms?mobile=13800000000&image_code=abcd",
	}
	for _, target := range targets {
		rec := doRequest(router, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
			continue
		}
		if resp := decodeResponse(t, rec); resp.Code != CodeNecessaryParam {
			t.Errorf("%s: code = %s, want %s", target, resp.Code, CodeNecessaryParam)
		}
	}
}

func TestGetSmsCodeInvalidMobile(t *testing.T) {
	router, _ := newTestRouter(t)

	doRequest(router, "/api/v1/verification/image?uuid=u1")

	rec := doRequest(router, "/api/v1/verification/sms?mobile=12345&image_code=abcd&uuid=u1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.Code != CodeMobileErr {
		t.Errorf("code = %s, want %s", resp.Code, CodeMobileErr)
	}
}

func TestGetSmsCodeThrottled(t *testing.T) {
	router, _ := newTestRouter(t)

	for i, wantCode := range []RetCode{CodeOK, CodeThrottlingErr} {
		uuid := fmt.Sprintf("u%d", i)
		doRequest(router, "/api/v1/verification/image?uuid="+uuid)

		rec := doRequest(router, "/api/v1/verification/sms?mobile=13800000000&image_code=abcd&uuid="+uuid)
		if resp := decodeResponse(t, rec); resp.Code != wantCode {
			t.Errorf("request %d: code = %s, want %s", i, resp.Code, wantCode)
		}
	}
}
