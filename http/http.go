// Package http exposes the payment-gated proxy over net/http: the Gateway
// that challenges and verifies, the Forwarder that relays to upstreams, and
// the PaymentRoundTripper that pays on 402 and retries.
package http

import (
	"context"
	"io"
	"net/http"

	"github.com/proxyfox/proxyfox"
)

// Get performs a GET request with automatic payment handling
func Get(ctx context.Context, url string, payer *proxyfox.Payer) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return DoWithPayment(ctx, payer, req)
}

// Post performs a POST request with automatic payment handling
func Post(ctx context.Context, url, contentType string, body io.Reader, payer *proxyfox.Payer) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return DoWithPayment(ctx, payer, req)
}
