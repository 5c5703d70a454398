package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// receiptCacheTTL bounds how long delivered receipts are remembered for
// idempotency-key dedupe. It comfortably covers any realistic retry
// window of the callers.
const receiptCacheTTL = 24 * time.Hour

// HTTPGateway talks to the payment processor's refund endpoint. Every
// request carries the caller-supplied idempotency key both as a header
// for the processor and as a redis dedupe key on our side, so a refund
// whose response was lost in transit is answered from the cached receipt
// instead of being re-sent.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	rdb     *redis.Client // optional; nil disables receipt caching
}

// NewHTTPGateway constructs a gateway client. rdb may be nil, in which
// case dedupe relies solely on the processor honouring the
// Idempotency-Key header.
func NewHTTPGateway(baseURL, apiKey string, rdb *redis.Client) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 15 * time.Second},
		rdb:     rdb,
	}
}

type refundRequest struct {
	PaymentIntent string `json:"payment_intent"`
	AmountCents   int64  `json:"amount_cents"`
}

type refundError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Refund issues a refund for amountCents against the captured charge
// identified by intentRef. The returned error is a *Error for processor
// rejections and transport failures alike; callers decide what to do
// with Transient.
func (g *HTTPGateway) Refund(ctx context.Context, intentRef string, amountCents int64, idemKey string) (*RefundReceipt, error) {
	if cached := g.cachedReceipt(ctx, idemKey); cached != nil {
		return cached, nil
	}

	body, err := json.Marshal(refundRequest{PaymentIntent: intentRef, AmountCents: amountCents})
	if err != nil {
		return nil, &Error{Code: "encode", Message: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/refunds", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Code: "request", Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Idempotency-Key", idemKey)

	resp, err := g.hc.Do(req)
	if err != nil {
		return nil, &Error{Code: "transport", Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Code: "transport", Message: err.Error(), Transient: true}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var receipt RefundReceipt
		if err := json.Unmarshal(raw, &receipt); err != nil {
			return nil, &Error{Code: "decode", Message: err.Error()}
		}
		g.cacheReceipt(ctx, idemKey, &receipt)
		return &receipt, nil
	case resp.StatusCode >= 500:
		return nil, &Error{Code: fmt.Sprintf("http_%d", resp.StatusCode), Message: string(raw), Transient: true}
	default:
		var perr refundError
		if err := json.Unmarshal(raw, &perr); err != nil || perr.Message == "" {
			return nil, &Error{Code: fmt.Sprintf("http_%d", resp.StatusCode), Message: string(raw)}
		}
		return nil, &Error{Code: perr.Code, Message: perr.Message}
	}
}

func receiptKey(idemKey string) string { return "gw:refund:" + idemKey }

func (g *HTTPGateway) cachedReceipt(ctx context.Context, idemKey string) *RefundReceipt {
	if g.rdb == nil {
		return nil
	}
	raw, err := g.rdb.Get(ctx, receiptKey(idemKey)).Bytes()
	if err != nil {
		return nil // miss or redis down; fall through to the processor
	}
	var receipt RefundReceipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil
	}
	return &receipt
}

func (g *HTTPGateway) cacheReceipt(ctx context.Context, idemKey string, receipt *RefundReceipt) {
	if g.rdb == nil {
		return
	}
	raw, err := json.Marshal(receipt)
	if err != nil {
		return
	}
	if err := g.rdb.Set(ctx, receiptKey(idemKey), raw, receiptCacheTTL).Err(); err != nil {
		log.Printf("gateway: cache receipt for %s: %v", idemKey, err)
	}
}
