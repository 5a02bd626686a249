// Package dispatcher implements the Dispatcher: builds the outbound
// request once, signs it, sends it under the per-configuration circuit
// breaker with bounded exponential-backoff retries, records every attempt,
// and feeds success/failure into the configuration's failure-threshold
// state machine.
package dispatcher

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/webhookd/engine/internal/application/authorizer"
	"github.com/webhookd/engine/internal/core/breaker"
	"github.com/webhookd/engine/internal/domain/authdomain"
	"github.com/webhookd/engine/internal/domain/callback"
	"github.com/webhookd/engine/internal/domain/execution"
	"github.com/webhookd/engine/internal/infrastructure/monitoring/logging"
)

// outcomeKind classifies a single HTTP attempt.
type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRetryable
	outcomePermanent
)

// maxBackoffDelay is the hard cap on computed retry delay:
// min(retry_delay_ms × multiplier^(n-1), 60s).
const maxBackoffDelay = 60 * time.Second

// Dispatcher performs authenticated HTTP delivery for a single
// (configuration, event) pair.
type Dispatcher struct {
	authz      *authorizer.Authorizer
	breakers   *breaker.Registry
	configs    callback.Repository
	executions execution.Repository
	domains    authdomain.Repository
	httpClient *http.Client
	log        logging.Logger

	maxInMemoryBody int64
}

// New constructs a Dispatcher. httpClient is shared across all dispatches
// and pools connections; per-attempt timeouts are applied via context, not
// by mutating the client.
func New(
	authz *authorizer.Authorizer,
	breakers *breaker.Registry,
	configs callback.Repository,
	executions execution.Repository,
	domains authdomain.Repository,
	httpClient *http.Client,
	maxInMemoryBody int64,
	log logging.Logger,
) *Dispatcher {
	return &Dispatcher{
		authz:           authz,
		breakers:        breakers,
		configs:         configs,
		executions:      executions,
		domains:         domains,
		httpClient:      httpClient,
		maxInMemoryBody: maxInMemoryBody,
		log:             log,
	}
}

// Dispatch runs the full delivery lifecycle for one (Config, event) pair:
// authorize, build, send under the breaker with retries, record. It never
// returns an error to the caller for endpoint-side failures; all such
// outcomes are recorded as execution rows and reflected in the configuration's
// own counters. Local store-layer failures (execution append / counter
// calls) are logged rather than returned, so every path returns nil.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg *callback.CallbackConfiguration, eventType, sourceEventID string, payload []byte) error {
	decision, err := d.authz.Authorize(ctx, cfg.URL)
	if err != nil {
		d.log.Warn("dispatcher: authorizer error, treating as deny", logging.Err(err), logging.String("configuration_id", string(cfg.ID)))
		decision = authorizer.Decision{Allow: false, Reason: authdomain.DenyUnknownDomain}
	}
	if !decision.Allow {
		return d.denyNotAuthorized(ctx, cfg, eventType, sourceEventID, payload, decision)
	}

	req := d.buildRequest(cfg, eventType, sourceEventID, payload)
	br := d.breakers.Get(cfg.ID)

	maxAttempts := cfg.MaxRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return d.cancelled(ctx, cfg, eventType, sourceEventID, req, attempt, maxAttempts)
		}

		if !br.Allow(time.Now().UTC()) {
			return d.circuitOpen(ctx, cfg, eventType, sourceEventID, req, maxAttempts)
		}

		kind, statusCode, durationMs, respHeaders, respBody, attemptErr := d.attempt(ctx, cfg, req)
		br.Report(time.Now().UTC(), breaker.Outcome{Success: kind == outcomeSuccess, Duration: time.Duration(durationMs) * time.Millisecond})

		// An outer cancellation (shutdown) also expires attemptCtx, so a
		// failed attempt here would otherwise read as attempt_timeout. The
		// dispatch context, not the per-attempt one, decides: cancelled
		// dispatches are terminal and marked as such.
		if ctx.Err() != nil && kind != outcomeSuccess {
			return d.cancelled(ctx, cfg, eventType, sourceEventID, req, attempt, maxAttempts)
		}

		switch kind {
		case outcomeSuccess:
			d.recordTerminal(ctx, cfg, eventType, sourceEventID, req, attempt, maxAttempts,
				execution.StatusSuccess, statusCode, durationMs, respHeaders, respBody, "")
			d.recordSuccessOutcome(ctx, cfg)
			return nil

		case outcomeRetryable:
			if attempt < maxAttempts {
				errMsg := attemptErr
				d.recordRetry(ctx, cfg, eventType, sourceEventID, req, attempt, maxAttempts, statusCode, durationMs, errMsg)
				delay := backoffDelay(cfg.RetryDelayMs, cfg.RetryBackoffMultiplier, attempt)
				if !sleep(ctx, delay) {
					return d.cancelled(ctx, cfg, eventType, sourceEventID, req, attempt+1, maxAttempts)
				}
				continue
			}
			d.recordTerminal(ctx, cfg, eventType, sourceEventID, req, attempt, maxAttempts,
				execution.StatusFailedPermanent, statusCode, durationMs, respHeaders, respBody, attemptErr)
			d.recordFailureOutcomeWithDomain(ctx, cfg)
			return nil

		case outcomePermanent:
			d.recordTerminal(ctx, cfg, eventType, sourceEventID, req, attempt, maxAttempts,
				execution.StatusFailedPermanent, statusCode, durationMs, respHeaders, respBody, attemptErr)
			d.recordFailureOutcomeWithDomain(ctx, cfg)
			return nil
		}
	}
	return nil
}

// builtRequest is the request shape built once and held invariant across
// retries.
type builtRequest struct {
	method  string
	url     string
	headers map[string]string
	body    []byte
}

func (d *Dispatcher) buildRequest(cfg *callback.CallbackConfiguration, eventType, sourceEventID string, payload []byte) builtRequest {
	headers := map[string]string{
		"Content-Type": "application/json",
		"X-Event-Type": eventType,
		"X-Event-Id":   sourceEventID,
		"X-Timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range cfg.CustomHeaders {
		headers[k] = v
	}
	if cfg.SignatureEnabled {
		sig := signPayload(payload, cfg.Secret)
		header := cfg.SignatureHeader
		if header == "" {
			header = "X-Signature"
		}
		headers[header] = sig
	}
	return builtRequest{method: string(cfg.Method), url: cfg.URL, headers: headers, body: payload}
}

// signPayload computes base64(HMAC-SHA-256(body, secret)) over the exact
// bytes sent on the wire.
func signPayload(body, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// attempt performs one HTTP send and classifies the outcome.
func (d *Dispatcher) attempt(ctx context.Context, cfg *callback.CallbackConfiguration, req builtRequest) (outcomeKind, int, int64, map[string]string, string, string) {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.method, req.url, bytes.NewReader(req.body))
	if err != nil {
		return outcomePermanent, 0, 0, nil, "", fmt.Sprintf("payload_serialization: %v", err)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := d.httpClient.Do(httpReq)
	durationMs := time.Since(start).Milliseconds()

	if err != nil {
		if attemptCtx.Err() != nil {
			return outcomeRetryable, 0, durationMs, nil, "", "attempt_timeout"
		}
		return outcomeRetryable, 0, durationMs, nil, "", fmt.Sprintf("transport_error: %v", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, d.maxInMemoryBody)
	bodyBytes, _ := io.ReadAll(limited)
	respHeaders := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	status := resp.StatusCode
	switch {
	case status >= 200 && status < 300:
		return outcomeSuccess, status, durationMs, respHeaders, string(bodyBytes), ""
	case status == 408 || status == 429 || status >= 500:
		return outcomeRetryable, status, durationMs, respHeaders, string(bodyBytes), fmt.Sprintf("server_error: status %d", status)
	default:
		return outcomePermanent, status, durationMs, respHeaders, string(bodyBytes), fmt.Sprintf("client_error: status %d", status)
	}
}

func backoffDelay(retryDelayMs int, multiplier float64, attempt int) time.Duration {
	d := float64(retryDelayMs)
	for i := 1; i < attempt; i++ {
		d *= multiplier
	}
	delay := time.Duration(d) * time.Millisecond
	if delay > maxBackoffDelay {
		return maxBackoffDelay
	}
	return delay
}

// sleep waits for delay or returns false if ctx is cancelled first.
func sleep(ctx context.Context, delay time.Duration) bool {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Dispatcher) denyNotAuthorized(ctx context.Context, cfg *callback.CallbackConfiguration, eventType, sourceEventID string, payload []byte, decision authorizer.Decision) error {
	req := d.buildRequest(cfg, eventType, sourceEventID, payload)
	e := execution.New(cfg.ID, eventType, sourceEventID, 1, 1, payload, req.headers)
	e.Complete(execution.StatusFailedPermanent, 0, 0, nil, "", "not_authorized: "+string(decision.Reason))
	d.appendExecution(ctx, e)

	if decision.DomainKnown {
		if key, ok := authorizer.DomainKeyForURL(cfg.URL); ok {
			d.recordDomainCallback(ctx, key, false)
		}
	}
	d.recordFailureOutcome(ctx, cfg)
	return nil
}

func (d *Dispatcher) circuitOpen(ctx context.Context, cfg *callback.CallbackConfiguration, eventType, sourceEventID string, req builtRequest, maxAttempts int) error {
	e := execution.New(cfg.ID, eventType, sourceEventID, 1, maxAttempts, req.body, req.headers)
	e.Complete(execution.StatusFailedPermanent, 0, 0, nil, "", "circuit_open")
	d.appendExecution(ctx, e)
	d.recordFailureOutcome(ctx, cfg)
	return nil
}

func (d *Dispatcher) cancelled(_ context.Context, cfg *callback.CallbackConfiguration, eventType, sourceEventID string, req builtRequest, attempt, maxAttempts int) error {
	// The dispatch context is already cancelled here; the audit row and the
	// counter update still have to land, so both run on a fresh context.
	recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e := execution.New(cfg.ID, eventType, sourceEventID, attempt, maxAttempts, req.body, req.headers)
	e.Complete(execution.StatusFailedPermanent, 0, 0, nil, "", "cancelled")
	d.appendExecution(recordCtx, e)
	d.recordFailureOutcome(recordCtx, cfg)
	return nil
}

func (d *Dispatcher) recordRetry(ctx context.Context, cfg *callback.CallbackConfiguration, eventType, sourceEventID string, req builtRequest, attempt, maxAttempts, statusCode int, durationMs int64, errMsg string) {
	e := execution.New(cfg.ID, eventType, sourceEventID, attempt, maxAttempts, req.body, req.headers)
	nextDelay := backoffDelay(cfg.RetryDelayMs, cfg.RetryBackoffMultiplier, attempt)
	e.ScheduleRetry(statusCode, durationMs, errMsg, time.Now().UTC().Add(nextDelay))
	d.appendExecution(ctx, e)
}

func (d *Dispatcher) recordTerminal(ctx context.Context, cfg *callback.CallbackConfiguration, eventType, sourceEventID string, req builtRequest, attempt, maxAttempts int, status execution.Status, statusCode int, durationMs int64, respHeaders map[string]string, respBody, errMsg string) {
	e := execution.New(cfg.ID, eventType, sourceEventID, attempt, maxAttempts, req.body, req.headers)
	e.Complete(status, statusCode, durationMs, respHeaders, respBody, errMsg)
	d.appendExecution(ctx, e)
}

func (d *Dispatcher) appendExecution(ctx context.Context, e *execution.CallbackExecution) {
	// A store failure here must not swallow the outcome already delivered
	// to (or withheld from) the endpoint.
	if err := d.executions.Append(ctx, e); err != nil {
		d.log.Error("dispatcher: failed to append execution row", logging.Err(err),
			logging.String("configuration_id", string(e.ConfigurationID)), logging.String("status", string(e.Status)))
	}
}

func (d *Dispatcher) recordSuccessOutcome(ctx context.Context, cfg *callback.CallbackConfiguration) {
	if err := d.configs.RecordSuccess(ctx, cfg.ID); err != nil {
		d.log.Error("dispatcher: record_success failed", logging.Err(err), logging.String("configuration_id", string(cfg.ID)))
	}
	if key, ok := authorizer.DomainKeyForURL(cfg.URL); ok {
		d.recordDomainCallback(ctx, key, true)
	}
}

func (d *Dispatcher) recordFailureOutcome(ctx context.Context, cfg *callback.CallbackConfiguration) {
	if _, err := d.configs.RecordFailure(ctx, cfg.ID); err != nil {
		d.log.Error("dispatcher: record_failure failed", logging.Err(err), logging.String("configuration_id", string(cfg.ID)))
	}
}

// recordFailureOutcomeWithDomain is recordFailureOutcome plus the domain
// counter bump, used only where an actual HTTP attempt reached the endpoint
// (retryable-exhausted, permanent) — not for circuit_open/cancelled, which
// never attempt the network call.
func (d *Dispatcher) recordFailureOutcomeWithDomain(ctx context.Context, cfg *callback.CallbackConfiguration) {
	d.recordFailureOutcome(ctx, cfg)
	if key, ok := authorizer.DomainKeyForURL(cfg.URL); ok {
		d.recordDomainCallback(ctx, key, false)
	}
}

func (d *Dispatcher) recordDomainCallback(ctx context.Context, domainKey string, success bool) {
	if err := d.domains.RecordCallback(ctx, domainKey, success); err != nil {
		d.log.Error("dispatcher: record_domain_callback failed", logging.Err(err), logging.String("domain", domainKey))
	}
}
