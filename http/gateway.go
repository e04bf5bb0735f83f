package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/proxyfox/proxyfox"
)

// RoutePattern is the ServeMux pattern served by Gateway.Handler.
const RoutePattern = "/proxy/{resourceId}/{action}"

// PaymentVerifier is satisfied by *proxyfox.Verifier.
type PaymentVerifier interface {
	Verify(ctx context.Context, token string, expected proxyfox.Expectation) (*proxyfox.VerifiedProof, error)
}

// ReplayGuard records transaction hashes that have already bought access.
// Claim returns false when the hash was claimed before. Release forgets a
// claim whose request was never served.
type ReplayGuard interface {
	Claim(ctx context.Context, txHash string) (bool, error)
	Release(ctx context.Context, txHash string) error
}

// Gateway decides, per request, whether to forward, challenge or reject.
// It keeps no per-request state and is safe for concurrent use.
type Gateway struct {
	catalog   proxyfox.Catalog
	verifier  PaymentVerifier
	forwarder *Forwarder
	replay    ReplayGuard
	logger    *zap.Logger
}

// GatewayOption configures a Gateway
type GatewayOption func(*Gateway)

// WithForwarder replaces the default Forwarder.
func WithForwarder(f *Forwarder) GatewayOption {
	return func(g *Gateway) {
		if f != nil {
			g.forwarder = f
		}
	}
}

// WithReplayGuard rejects a second use of the same transaction hash.
// Without it the same proof is accepted any number of times.
func WithReplayGuard(guard ReplayGuard) GatewayOption {
	return func(g *Gateway) {
		g.replay = guard
	}
}

// WithGatewayLogger sets the logger.
func WithGatewayLogger(logger *zap.Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGateway creates a gateway over the given catalog and verifier.
func NewGateway(catalog proxyfox.Catalog, verifier PaymentVerifier, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		catalog:   catalog,
		verifier:  verifier,
		forwarder: NewForwarder(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handler returns a mux serving RoutePattern.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(RoutePattern, g)
	return mux
}

// ServeHTTP reads the resource and action from the route pattern, falling
// back to parsing "/proxy/<resource>/<action>" from the path.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resourceID, actionID := r.PathValue("resourceId"), r.PathValue("action")
	if resourceID == "" || actionID == "" {
		resourceID, actionID = splitProxyPath(r.URL.Path)
	}
	g.Handle(w, r, resourceID, actionID)
}

func splitProxyPath(path string) (string, string) {
	rest := strings.TrimPrefix(strings.Trim(path, "/"), "proxy/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return rest, ""
	}
	return parts[0], parts[1]
}

// Handle processes one request for (resourceID, actionID).
func (g *Gateway) Handle(w http.ResponseWriter, r *http.Request, resourceID, actionID string) {
	ctx := r.Context()
	log := g.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("resource", resourceID),
		zap.String("action", actionID),
		zap.String("method", r.Method),
	)

	rule, err := proxyfox.ResolvePricingRule(ctx, g.catalog, resourceID, actionID)
	if err != nil {
		if errors.Is(err, proxyfox.ErrResourceNotFound) || errors.Is(err, proxyfox.ErrActionNotFound) {
			gatewayRequestsTotal.WithLabelValues(outcomeNotFound).Inc()
			respondWithError(w, http.StatusNotFound, err)
			return
		}
		log.Error("catalog lookup failed", zap.Error(err))
		gatewayRequestsTotal.WithLabelValues(outcomeInternalError).Inc()
		respondWithJSON(w, http.StatusInternalServerError, map[string]string{"message": "catalog unavailable"})
		return
	}

	if rule.Free() {
		g.forward(ctx, w, r, rule, log, outcomeFree)
		return
	}

	token := r.Header.Get(proxyfox.PaymentHeader)
	if token == "" {
		gatewayRequestsTotal.WithLabelValues(outcomeChallenged).Inc()
		respondWithJSON(w, http.StatusPaymentRequired, rule.Challenge("Payment Required"))
		return
	}

	verified, ok := g.authorize(ctx, w, token, rule, log)
	if !ok {
		return
	}
	if !g.claim(ctx, w, verified, rule, log) {
		return
	}
	if err := g.forward(ctx, w, r, rule, log, outcomeForwarded); err != nil && g.replay != nil {
		// Nothing was served, so the proof stays spendable.
		if err := g.replay.Release(context.WithoutCancel(ctx), verified.TransactionHash); err != nil {
			log.Error("replay release failed", zap.String("tx", verified.TransactionHash), zap.Error(err))
		}
	}
}

// authorize verifies token against rule and writes the rejection itself
// when it returns false. It does not consume the proof.
func (g *Gateway) authorize(ctx context.Context, w http.ResponseWriter, token string, rule *proxyfox.PricingRule, log *zap.Logger) (*proxyfox.VerifiedProof, bool) {
	start := time.Now()
	verified, err := g.verifier.Verify(ctx, token, rule.Expectation())
	if err != nil {
		verificationDuration.WithLabelValues("rejected").Observe(time.Since(start).Seconds())
		g.reject(w, rule, err, log)
		return nil, false
	}
	verificationDuration.WithLabelValues("verified").Observe(time.Since(start).Seconds())

	log.Info("payment accepted",
		zap.String("tx", verified.TransactionHash),
		zap.String("payer", verified.Payer),
		zap.Stringer("amount", verified.Amount))
	return verified, true
}

// claim records the transaction hash with the replay guard, if any, and
// writes the rejection itself when it returns false.
func (g *Gateway) claim(ctx context.Context, w http.ResponseWriter, verified *proxyfox.VerifiedProof, rule *proxyfox.PricingRule, log *zap.Logger) bool {
	if g.replay == nil {
		return true
	}
	fresh, err := g.replay.Claim(ctx, verified.TransactionHash)
	if err != nil {
		log.Error("replay guard failed", zap.Error(err))
		gatewayRequestsTotal.WithLabelValues(outcomeInternalError).Inc()
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "replay guard unavailable"})
		return false
	}
	if !fresh {
		gatewayRequestsTotal.WithLabelValues(outcomeReplayed).Inc()
		g.reject(w, rule, proxyfox.NewPaymentError(proxyfox.ErrCodeProofReplayed, "transaction already used", map[string]interface{}{
			"transactionHash": verified.TransactionHash,
		}), log)
		return false
	}
	return true
}

func (g *Gateway) reject(w http.ResponseWriter, rule *proxyfox.PricingRule, err error, log *zap.Logger) {
	if proxyfox.IsVerificationError(err) {
		log.Info("payment rejected", zap.Error(err))
		if code := proxyfox.ErrorCode(err); code != proxyfox.ErrCodeProofReplayed {
			gatewayRequestsTotal.WithLabelValues(outcomeRejected).Inc()
		}
		challenge := rule.Challenge(fmt.Sprintf("Invalid payment (%v): pay %s to %s", err, rule.Price, rule.Recipient))
		challenge.Error = proxyfox.ErrorCode(err)
		respondWithJSON(w, http.StatusPaymentRequired, challenge)
		return
	}

	if errors.Is(err, proxyfox.ErrLedgerUnavailable) {
		log.Error("ledger unavailable during verification", zap.Error(err))
		gatewayRequestsTotal.WithLabelValues(outcomeLedgerError).Inc()
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"message": "ledger unavailable, try again",
			"error":   proxyfox.ErrCodeLedgerUnavailable,
		})
		return
	}

	log.Error("verification failed unexpectedly", zap.Error(err))
	gatewayRequestsTotal.WithLabelValues(outcomeInternalError).Inc()
	respondWithJSON(w, http.StatusInternalServerError, map[string]string{"message": "verification failed"})
}

// forward relays the request upstream. On failure it writes the 502 itself
// and returns the error.
func (g *Gateway) forward(ctx context.Context, w http.ResponseWriter, r *http.Request, rule *proxyfox.PricingRule, log *zap.Logger, outcome string) error {
	start := time.Now()
	err := g.forwarder.Forward(ctx, w, r, rule.UpstreamBase, rule.ActionID)
	upstreamDuration.WithLabelValues(rule.ResourceID).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Warn("forward failed", zap.Error(err))
		gatewayRequestsTotal.WithLabelValues(outcomeUpstreamError).Inc()
		respondWithError(w, http.StatusBadGateway, err)
		return err
	}
	gatewayRequestsTotal.WithLabelValues(outcome).Inc()
	return nil
}

// PaymentCheckHandler answers with a challenge for rule, or with the
// verified proof when the request carries a valid one. Nothing is forwarded
// and the proof is not claimed with the replay guard.
func (g *Gateway) PaymentCheckHandler(rule proxyfox.PricingRule) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := g.logger.With(zap.String("request_id", uuid.NewString()), zap.String("check", rule.ResourceID))

		token := r.Header.Get(proxyfox.PaymentHeader)
		if token == "" {
			respondWithJSON(w, http.StatusPaymentRequired, rule.Challenge("Payment Required"))
			return
		}

		verified, ok := g.authorize(r.Context(), w, token, &rule, log)
		if !ok {
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"message":     "Payment verified",
			"paymentData": verified.Proof,
		})
	})
}

// HandlePaymentCheck resolves the rule for (resourceID, actionID) and serves
// it with PaymentCheckHandler.
func (g *Gateway) HandlePaymentCheck(w http.ResponseWriter, r *http.Request, resourceID, actionID string) {
	rule, err := proxyfox.ResolvePricingRule(r.Context(), g.catalog, resourceID, actionID)
	if err != nil {
		if errors.Is(err, proxyfox.ErrResourceNotFound) || errors.Is(err, proxyfox.ErrActionNotFound) {
			respondWithError(w, http.StatusNotFound, err)
			return
		}
		g.logger.Error("catalog lookup failed", zap.Error(err))
		respondWithJSON(w, http.StatusInternalServerError, map[string]string{"message": "catalog unavailable"})
		return
	}
	g.PaymentCheckHandler(*rule).ServeHTTP(w, r)
}

func respondWithError(w http.ResponseWriter, code int, err error) {
	body := map[string]string{"message": err.Error()}
	var pe *proxyfox.PaymentError
	if errors.As(err, &pe) {
		body["message"] = pe.Message
		body["error"] = pe.Code
	}
	respondWithJSON(w, code, body)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
