package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"blog-service/internal/config"
	"blog-service/internal/util"
)

// Gateway delivers a verification code to a mobile number out of band.
// Delivery is fire-and-forget upstream; callers must not treat a gateway
// error as a failure of code issuance.
type Gateway interface {
	Send(ctx context.Context, mobile, code string, expiresIn time.Duration) error
}

// HTTPGateway posts template SMS requests to an external provider
type HTTPGateway struct {
	url        string
	accountSID string
	authToken  string
	templateID string
	httpClient *http.Client
}

func NewHTTPGateway(cfg *config.VerificationConfig) *HTTPGateway {
	return &HTTPGateway{
		url:        cfg.SMSProviderURL,
		accountSID: cfg.SMSAccountSID,
		authToken:  cfg.SMSAuthToken,
		templateID: cfg.SMSTemplateID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type templateRequest struct {
	To         string   `json:"to"`
	TemplateID string   `json:"template_id"`
	Params     []string `json:"params"`
}

func (g *HTTPGateway) Send(ctx context.Context, mobile, code string, expiresIn time.Duration) error {
	minutes := fmt.Sprintf("%d", int(expiresIn.Minutes()))
	payload, err := json.Marshal(templateRequest{
		To:         mobile,
		TemplateID: g.templateID,
		Params:     []string{code, minutes},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.accountSID, g.authToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms provider returned status %d", resp.StatusCode)
	}

	util.Debug("SMS dispatched",
		zap.String("mobile", mobile),
		zap.String("template_id", g.templateID))
	return nil
}

// LogGateway writes codes to the log instead of sending them. Development
// only; mirrors how the legacy system exposed codes in its server log.
type LogGateway struct{}

func NewLogGateway() *LogGateway {
	return &LogGateway{}
}

func (g *LogGateway) Send(ctx context.Context, mobile, code string, expiresIn time.Duration) error {
	util.Info("SMS code (dev gateway, not sent)",
		zap.String("mobile", mobile),
		zap.String("code", code),
		zap.Duration("expires_in", expiresIn))
	return nil
}
