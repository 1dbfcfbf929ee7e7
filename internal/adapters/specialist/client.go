// Package specialist performs bounded HTTP calls to specialist services and
// normalizes their loosely-typed payloads into strict domain responses.
package specialist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quorumlabs/quorum/internal/domain/model"
	"github.com/quorumlabs/quorum/internal/payment"
)

// Default client configuration constants.
const (
	defaultCallTimeout = 45 * time.Second
	maxResponseBytes   = 1 << 20 // 1 MiB cap on specialist payloads

	paymentProofHeader   = "X-Payment"
	paymentReceiptHeader = "X-Payment-Receipt"
)

// PaymentMode selects whether calls carry settlement proof.
type PaymentMode string

// Recognized payment modes.
const (
	PaymentFree PaymentMode = "free"
	PaymentPaid PaymentMode = "paid"
)

// Request is the outbound payload sent to every specialist.
type Request struct {
	Query    string         `json:"query"`
	Target   string         `json:"target,omitempty"`
	Priority model.Priority `json:"priority"`
}

// Caller invokes one specialist and returns a normalized response or a
// typed failure. Defined here so the dispatcher can substitute fakes.
type Caller interface {
	Call(ctx context.Context, bid model.Bid, req Request) (model.SpecialistResponse, error)
}

// Client is the HTTP implementation of Caller.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	mode       PaymentMode
	settler    payment.Settler
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout sets the per-call hard deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPaymentMode selects free or paid calls.
func WithPaymentMode(mode PaymentMode) Option {
	return func(c *Client) {
		if mode == PaymentFree || mode == PaymentPaid {
			c.mode = mode
		}
	}
}

// WithSettler wires the external settlement capability for paid mode.
func WithSettler(s payment.Settler) Option {
	return func(c *Client) {
		if s != nil {
			c.settler = s
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a Client with default configuration.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		timeout:    defaultCallTimeout,
		mode:       PaymentFree,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// rawResponse mirrors the loosely-structured specialist payload. Pointer
// fields distinguish "absent" from zero values so normalization can fail
// closed on missing required fields.
type rawResponse struct {
	Score     *float64               `json:"score"`
	Analysis  string                 `json:"analysis"`
	RiskLevel string                 `json:"riskLevel"`
	Flags     []string               `json:"flags"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// Call performs one bounded call against the bid's endpoint. On any failure
// it returns a typed error and never a partial response. In paid mode the
// call carries settlement proof; a missing settlement capability is an
// explicit ErrPaymentUnavailable, never a silent downgrade to free mode.
func (c *Client) Call(ctx context.Context, bid model.Bid, req Request) (model.SpecialistResponse, error) {
	start := time.Now()

	var proof payment.Proof
	if c.mode == PaymentPaid {
		if c.settler == nil {
			return model.SpecialistResponse{}, fmt.Errorf("paying %s: %w", bid.SpecialistID, ErrPaymentUnavailable)
		}
		p, err := c.settler.Settle(ctx, bid.Endpoint, bid.Price)
		if err != nil {
			return model.SpecialistResponse{}, fmt.Errorf("paying %s: %w: %v", bid.SpecialistID, ErrPaymentUnavailable, err)
		}
		proof = p
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return model.SpecialistResponse{}, fmt.Errorf("encoding request for %s: %w", bid.SpecialistID, err)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, bid.Endpoint, bytes.NewReader(body))
	if err != nil {
		return model.SpecialistResponse{}, fmt.Errorf("building request for %s: %w", bid.SpecialistID, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.mode == PaymentPaid {
		httpReq.Header.Set(paymentProofHeader, proof.Token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			return model.SpecialistResponse{}, fmt.Errorf("calling %s: %w", bid.SpecialistID, ErrTimeout)
		}
		return model.SpecialistResponse{}, fmt.Errorf("calling %s: %w: %v", bid.SpecialistID, ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.SpecialistResponse{}, fmt.Errorf("calling %s: %w: status %d", bid.SpecialistID, ErrUpstream, resp.StatusCode)
	}

	payloadBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if callCtx.Err() != nil {
			return model.SpecialistResponse{}, fmt.Errorf("reading %s: %w", bid.SpecialistID, ErrTimeout)
		}
		return model.SpecialistResponse{}, fmt.Errorf("reading %s: %w: %v", bid.SpecialistID, ErrNetwork, err)
	}

	normalized, err := normalize(bid, payloadBytes)
	if err != nil {
		return model.SpecialistResponse{}, err
	}

	normalized.ExecutionTimeMs = time.Since(start).Milliseconds()

	if c.mode == PaymentPaid {
		receipt := payment.Receipt{
			Reference: resp.Header.Get(paymentReceiptHeader),
			Amount:    proof.Amount,
		}
		if receipt.Reference != "" {
			normalized.Metadata["settlementReference"] = receipt.Reference
		}
	}

	return normalized, nil
}

// normalize maps the loosely-structured payload into the strict response
// shape, failing closed: a payload missing its score, or carrying a score
// outside [0,100] or an unknown risk level, is a malformed response. A
// missing score is never coerced to zero since that could mask an unhealthy
// specialist as a harsh verdict.
func normalize(bid model.Bid, payloadBytes []byte) (model.SpecialistResponse, error) {
	var raw rawResponse
	if err := json.Unmarshal(payloadBytes, &raw); err != nil {
		return model.SpecialistResponse{}, fmt.Errorf("decoding %s: %w: %v", bid.SpecialistID, ErrMalformedResponse, err)
	}

	if raw.Score == nil {
		return model.SpecialistResponse{}, fmt.Errorf("decoding %s: %w: missing score", bid.SpecialistID, ErrMalformedResponse)
	}
	if *raw.Score < 0 || *raw.Score > 100 {
		return model.SpecialistResponse{}, fmt.Errorf("decoding %s: %w: score %v out of range", bid.SpecialistID, ErrMalformedResponse, *raw.Score)
	}

	// Risk level defaults to MEDIUM when absent; an unrecognized value is
	// malformed rather than defaulted.
	risk := model.RiskMedium
	if raw.RiskLevel != "" {
		parsed, err := model.ParseRiskLevel(raw.RiskLevel)
		if err != nil {
			return model.SpecialistResponse{}, fmt.Errorf("decoding %s: %w: %v", bid.SpecialistID, ErrMalformedResponse, err)
		}
		risk = parsed
	}

	metadata := raw.Metadata
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	if _, ok := metadata["price"]; !ok {
		// Stamp the committed bid price so consensus cost accounting always
		// reflects what the broker agreed to pay.
		metadata["price"] = bid.Price
	}

	flags := raw.Flags
	if flags == nil {
		flags = []string{}
	}

	return model.SpecialistResponse{
		SpecialistID:   bid.SpecialistID,
		SpecialistName: bid.Name,
		Score:          *raw.Score,
		Analysis:       raw.Analysis,
		RiskLevel:      risk,
		Flags:          flags,
		Metadata:       metadata,
	}, nil
}
