package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/proxyfox/proxyfox"
)

// StateObserver is notified of every payment state transition of a request.
type StateObserver func(req *http.Request, from, to proxyfox.PaymentState)

// PaymentRoundTripper implements http.RoundTripper with 402 payment handling.
// A request is paid for at most once: a second 402 fails with
// ErrPaymentRejected.
type PaymentRoundTripper struct {
	Transport http.RoundTripper
	Payer     *proxyfox.Payer
	Logger    *zap.Logger
	Observer  StateObserver
}

// ClientOption configures the round tripper built by WrapClient.
type ClientOption func(*PaymentRoundTripper)

// WithClientLogger sets the logger.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(t *PaymentRoundTripper) {
		t.Logger = logger
	}
}

// WithStateObserver registers a transition observer.
func WithStateObserver(observer StateObserver) ClientOption {
	return func(t *PaymentRoundTripper) {
		t.Observer = observer
	}
}

// WrapClient wraps a standard HTTP client with payment handling.
func WrapClient(client *http.Client, payer *proxyfox.Payer, opts ...ClientOption) *http.Client {
	if client == nil {
		client = &http.Client{}
	}

	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	rt := &PaymentRoundTripper{Transport: transport, Payer: payer}
	for _, opt := range opts {
		opt(rt)
	}
	client.Transport = rt
	return client
}

// paymentAttempt tracks one request through the payment states.
type paymentAttempt struct {
	rt    *PaymentRoundTripper
	req   *http.Request
	state proxyfox.PaymentState
	log   *zap.Logger
}

func (a *paymentAttempt) transition(to proxyfox.PaymentState) {
	from := a.state
	a.state = to
	a.log.Debug("payment state", zap.String("from", string(from)), zap.String("to", string(to)))
	if a.rt.Observer != nil {
		a.rt.Observer(a.req, from, to)
	}
	if to.Terminal() {
		paymentsTotal.WithLabelValues(string(to)).Inc()
	}
}

func (a *paymentAttempt) fail(err error) (*http.Response, error) {
	a.transition(proxyfox.StateFailed)
	a.log.Warn("payment failed", zap.Error(err))
	return nil, err
}

// RoundTrip implements http.RoundTripper
func (t *PaymentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	logger := t.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := t.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	a := &paymentAttempt{
		rt:    t,
		req:   req,
		state: proxyfox.StateIdle,
		log:   logger.With(zap.String("url", req.URL.String())),
	}

	// The body is needed twice, once for the challenge and once for the retry.
	if req.Body != nil && req.GetBody == nil {
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to buffer request body: %w", err)
		}
		req = req.Clone(req.Context())
		req.Body = io.NopCloser(bytes.NewReader(data))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
		a.req = req
	}

	a.transition(proxyfox.StateAwaitingChallenge)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		return a.fail(err)
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		a.transition(proxyfox.StateDone)
		return resp, nil
	}

	challenge, err := readChallenge(resp)
	if err != nil {
		return a.fail(err)
	}

	ctx := req.Context()
	a.transition(proxyfox.StatePaying)
	pending, err := t.Payer.Broadcast(ctx, *challenge)
	if err != nil {
		return a.fail(err)
	}

	a.transition(proxyfox.StateAwaitingConfirmation)
	proof, err := t.Payer.Confirm(ctx, pending)
	if err != nil {
		return a.fail(err)
	}

	token, err := proxyfox.EncodeProof(*proof)
	if err != nil {
		return a.fail(err)
	}

	a.transition(proxyfox.StateRetrying)
	paid, err := withPaymentHeader(req, token)
	if err != nil {
		return a.fail(err)
	}
	resp, err = transport.RoundTrip(paid)
	if err != nil {
		return a.fail(err)
	}

	if resp.StatusCode == http.StatusPaymentRequired {
		details := map[string]interface{}{"transactionHash": proof.TransactionHash}
		if rejection, err := readChallenge(resp); err == nil {
			details["reason"] = rejection.Message
			details["error"] = rejection.Error
		}
		return a.fail(proxyfox.NewPaymentError(proxyfox.ErrCodePaymentRejected, "payment was not accepted", details))
	}

	a.log.Info("paid request completed",
		zap.String("tx", proof.TransactionHash),
		zap.Int("status", resp.StatusCode))
	a.transition(proxyfox.StateDone)
	return resp, nil
}

func withPaymentHeader(req *http.Request, token string) (*http.Request, error) {
	paid := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		paid.Body = body
	}
	paid.Header.Set(proxyfox.PaymentHeader, token)
	return paid, nil
}

// challengeBody mirrors proxyfox.Challenge with the amount left as text so
// an unparseable amount is reported as an invalid challenge.
type challengeBody struct {
	Message   string `json:"message"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	PayTo     string `json:"payTo"`
	Network   string `json:"network"`
	Resource  string `json:"resource"`
	Action    string `json:"action"`
	Error     string `json:"error"`
}

// readChallenge consumes and closes resp.Body.
func readChallenge(resp *http.Response) (*proxyfox.Challenge, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, proxyfox.NewPaymentError(proxyfox.ErrCodeInvalidChallenge, "failed to read 402 body", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return ParseChallenge(data)
}

// ParseChallenge decodes a 402 body.
func ParseChallenge(data []byte) (*proxyfox.Challenge, error) {
	var body challengeBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, proxyfox.NewPaymentError(proxyfox.ErrCodeInvalidChallenge, "402 body is not a JSON challenge", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if body.Recipient == "" {
		return nil, proxyfox.NewPaymentError(proxyfox.ErrCodeInvalidChallenge, "challenge has no recipient", nil)
	}
	amount, err := proxyfox.ParseAmount(body.Amount)
	if err != nil {
		return nil, proxyfox.NewPaymentError(proxyfox.ErrCodeInvalidChallenge, "challenge amount is not a non-negative number", map[string]interface{}{
			"amount": body.Amount,
		})
	}
	return &proxyfox.Challenge{
		Message:   body.Message,
		Recipient: body.Recipient,
		Amount:    amount,
		PayTo:     body.PayTo,
		Network:   proxyfox.Network(body.Network),
		Resource:  body.Resource,
		Action:    body.Action,
		Error:     body.Error,
	}, nil
}

// DoWithPayment performs req through a paying client.
func DoWithPayment(ctx context.Context, payer *proxyfox.Payer, req *http.Request, opts ...ClientOption) (*http.Response, error) {
	client := WrapClient(&http.Client{}, payer, opts...)
	return client.Do(req.WithContext(ctx))
}
