package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SandboxGateway is an HTTP adapter for providers speaking the sandbox
// transfer API. Callback signatures are HMAC-SHA256 over the raw payload
// with a shared secret.
type SandboxGateway struct {
	id            string
	baseURL       string
	webhookSecret string
	client        *http.Client
	breaker       *CircuitBreaker
}

// SandboxConfig configures one sandbox provider adapter.
type SandboxConfig struct {
	ID            string
	BaseURL       string
	WebhookSecret string
	Timeout       time.Duration
}

// NewSandboxGateway creates a sandbox provider gateway.
func NewSandboxGateway(cfg SandboxConfig) *SandboxGateway {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &SandboxGateway{
		id:            cfg.ID,
		baseURL:       cfg.BaseURL,
		webhookSecret: cfg.WebhookSecret,
		client:        &http.Client{Timeout: timeout},
		breaker:       NewCircuitBreaker(5, 10*time.Second, 2),
	}
}

// ID identifies the provider.
func (g *SandboxGateway) ID() string {
	return g.id
}

// transferRequest is the sandbox wire format for initiating a transfer.
type transferRequest struct {
	OrderID   string  `json:"order_id"`
	Role      string  `json:"role"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Reference string  `json:"reference"`
}

// transferResponse is the sandbox wire format for transfer outcomes.
type transferResponse struct {
	Status     string `json:"status"`
	ExternalID string `json:"external_id"`
	ErrorCode  string `json:"error_code"`
	Detail     string `json:"detail"`
	ReportedAt int64  `json:"reported_at"`
}

// Initiate starts a transfer. The idempotency key travels as a header so
// the provider side dedupes as well; the gateway caller already guards with
// the local ledger.
func (g *SandboxGateway) Initiate(ctx context.Context, req LegRequest, idempotencyKey string) (LegResult, error) {
	if !g.breaker.CanExecute() {
		return LegResult{}, &Error{Class: ClassRetryable, Code: "circuit_open", Message: "provider circuit breaker open"}
	}

	body, err := json.Marshal(transferRequest{
		OrderID:   req.OrderID,
		Role:      req.Role,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Reference: req.Reference,
	})
	if err != nil {
		return LegResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return LegResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.breaker.OnFailure()
		// No definitive answer: the transfer may or may not exist.
		return LegResult{}, &Error{Class: ClassAmbiguous, Code: "network_error", Message: err.Error()}
	}
	defer resp.Body.Close()

	var tr transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		g.breaker.OnFailure()
		return LegResult{}, &Error{Class: ClassAmbiguous, Code: "bad_response", Message: err.Error()}
	}

	switch {
	case resp.StatusCode >= 500:
		g.breaker.OnFailure()
		return LegResult{}, &Error{Class: ClassRetryable, Code: errCodeOr(tr.ErrorCode, "server_error"), Message: tr.Detail}
	case resp.StatusCode == http.StatusTooManyRequests:
		g.breaker.OnFailure()
		return LegResult{}, &Error{Class: ClassRetryable, Code: "rate_limited", Message: tr.Detail}
	case resp.StatusCode >= 400:
		g.breaker.OnSuccess()
		return LegResult{Outcome: OutcomeRejected, ErrorCode: errCodeOr(tr.ErrorCode, "rejected")},
			&Error{Class: ClassTerminal, Code: errCodeOr(tr.ErrorCode, "rejected"), Message: tr.Detail}
	}

	g.breaker.OnSuccess()
	return LegResult{Outcome: OutcomeAccepted, ExternalID: tr.ExternalID}, nil
}

// CheckStatus polls the provider for the state of a transfer.
func (g *SandboxGateway) CheckStatus(ctx context.Context, externalID string) (LegStatus, error) {
	if !g.breaker.CanExecute() {
		return LegStatus{}, &Error{Class: ClassRetryable, Code: "circuit_open", Message: "provider circuit breaker open"}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/transfers/"+externalID, nil)
	if err != nil {
		return LegStatus{}, err
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.breaker.OnFailure()
		return LegStatus{}, &Error{Class: ClassRetryable, Code: "network_error", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		g.breaker.OnFailure()
		return LegStatus{}, &Error{Class: ClassRetryable, Code: "server_error", Message: resp.Status}
	}
	if resp.StatusCode >= 400 {
		g.breaker.OnSuccess()
		return LegStatus{}, &Error{Class: ClassTerminal, Code: "unknown_transfer", Message: resp.Status}
	}

	var tr transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return LegStatus{}, &Error{Class: ClassAmbiguous, Code: "bad_response", Message: err.Error()}
	}

	g.breaker.OnSuccess()
	return decodeStatus(tr), nil
}

// Refund reverses a settled transfer.
func (g *SandboxGateway) Refund(ctx context.Context, externalID string, amount float64) (LegResult, error) {
	body, err := json.Marshal(map[string]any{"amount": amount})
	if err != nil {
		return LegResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/transfers/"+externalID+"/refund", bytes.NewReader(body))
	if err != nil {
		return LegResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return LegResult{}, &Error{Class: ClassAmbiguous, Code: "network_error", Message: err.Error()}
	}
	defer resp.Body.Close()

	var tr transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return LegResult{}, &Error{Class: ClassAmbiguous, Code: "bad_response", Message: err.Error()}
	}

	if resp.StatusCode >= 400 {
		return LegResult{Outcome: OutcomeRejected, ErrorCode: errCodeOr(tr.ErrorCode, "refund_rejected")},
			&Error{Class: ClassTerminal, Code: errCodeOr(tr.ErrorCode, "refund_rejected"), Message: tr.Detail}
	}

	return LegResult{Outcome: OutcomeAccepted, ExternalID: tr.ExternalID}, nil
}

// callbackPayload is the sandbox webhook wire format.
type callbackPayload struct {
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	ErrorCode  string `json:"error_code"`
	Detail     string `json:"detail"`
	ReportedAt int64  `json:"reported_at"`
}

// VerifyCallback checks the HMAC-SHA256 signature and decodes the payload.
func (g *SandboxGateway) VerifyCallback(payload []byte, signature string) (CallbackEvent, error) {
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return CallbackEvent{}, ErrSignatureInvalid
	}

	var cb callbackPayload
	if err := json.Unmarshal(payload, &cb); err != nil {
		return CallbackEvent{}, fmt.Errorf("decode callback: %w", err)
	}

	return CallbackEvent{
		ExternalID: cb.ExternalID,
		Status: decodeStatus(transferResponse{
			Status:     cb.Status,
			ErrorCode:  cb.ErrorCode,
			Detail:     cb.Detail,
			ReportedAt: cb.ReportedAt,
		}),
	}, nil
}

// SignCallback computes the signature a sandbox provider attaches to a
// callback payload. Exposed for tests and local simulation.
func SignCallback(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func decodeStatus(tr transferResponse) LegStatus {
	status := LegStatus{Detail: tr.Detail, ErrorCode: tr.ErrorCode}
	if tr.ReportedAt > 0 {
		status.ReportedAt = time.Unix(tr.ReportedAt, 0)
	}

	switch tr.Status {
	case "succeeded":
		status.Value = StatusSucceeded
	case "failed":
		status.Value = StatusFailed
	default:
		status.Value = StatusPending
	}

	return status
}

func errCodeOr(code, fallback string) string {
	if code != "" {
		return code
	}
	return fallback
}
