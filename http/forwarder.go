package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/proxyfox/proxyfox"
)

// hopHeaders are connection-scoped and are not forwarded in either direction.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder relays one inbound request to an upstream base URL and writes
// the upstream response back unchanged.
type Forwarder struct {
	client *http.Client
	logger *zap.Logger
}

// ForwarderOption configures a Forwarder
type ForwarderOption func(*Forwarder)

// WithUpstreamClient sets the HTTP client used for upstream calls.
func WithUpstreamClient(client *http.Client) ForwarderOption {
	return func(f *Forwarder) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUpstreamTimeout bounds each upstream call.
func WithUpstreamTimeout(timeout time.Duration) ForwarderOption {
	return func(f *Forwarder) {
		f.client.Timeout = timeout
	}
}

// WithForwarderLogger sets the logger.
func WithForwarderLogger(logger *zap.Logger) ForwarderOption {
	return func(f *Forwarder) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewForwarder creates a forwarder. Redirects from upstream are relayed to
// the caller rather than followed.
func NewForwarder(opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// UpstreamURL joins base and path and carries over the inbound query string.
func UpstreamURL(base, path, rawQuery string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid upstream base %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid upstream base %q: missing scheme or host", base)
	}
	u = u.JoinPath(path)
	switch {
	case rawQuery == "":
	case u.RawQuery == "":
		u.RawQuery = rawQuery
	default:
		u.RawQuery = u.RawQuery + "&" + rawQuery
	}
	return u.String(), nil
}

// carriesBody reports whether the method's body is forwarded.
func carriesBody(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return true
}

// Forward sends r to base+path and relays the response to w. When the
// upstream cannot be reached nothing is written and an error carrying
// ErrCodeUpstreamUnreachable is returned.
func (f *Forwarder) Forward(ctx context.Context, w http.ResponseWriter, r *http.Request, base, path string) error {
	target, err := UpstreamURL(base, path, r.URL.RawQuery)
	if err != nil {
		return upstreamUnreachable(base, err)
	}

	var body io.Reader
	if carriesBody(r.Method) && r.Body != nil {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return fmt.Errorf("failed to read request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	out, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return upstreamUnreachable(target, err)
	}
	copyHeaders(out.Header, r.Header)

	start := time.Now()
	resp, err := f.client.Do(out)
	if err != nil {
		f.logger.Warn("upstream request failed", zap.String("url", target), zap.Error(err))
		return upstreamUnreachable(target, err)
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		f.logger.Warn("relaying upstream body failed",
			zap.String("url", target),
			zap.Int64("bytes", n),
			zap.Error(err))
	}

	f.logger.Debug("forwarded",
		zap.String("method", r.Method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		if isHopHeader(k) {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

func upstreamUnreachable(target string, err error) error {
	return proxyfox.NewPaymentError(proxyfox.ErrCodeUpstreamUnreachable, "upstream request failed", map[string]interface{}{
		"url":   target,
		"error": err.Error(),
	})
}
