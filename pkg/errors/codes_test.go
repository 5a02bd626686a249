// Package errors_test provides comprehensive table-driven unit tests for the
// error code definitions in pkg/errors/codes.go.
package errors_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/webhookd/engine/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test data — exhaustive table of every declared ErrorCode
// ─────────────────────────────────────────────────────────────────────────────

type codeEntry struct {
	code           errors.ErrorCode
	expectedString string
	expectedHTTP   int
}

// allCodes enumerates every ErrorCode constant defined in codes.go together
// with its expected String() output and expected HTTPStatus() mapping.
// The table is the single source of truth for both test functions below.
var allCodes = []codeEntry{
	// ── General ──────────────────────────────────────────────────────────────
	{errors.CodeOK, "OK", http.StatusOK},
	{errors.CodeUnknown, "UNKNOWN", http.StatusInternalServerError},
	{errors.CodeInvalidParam, "INVALID_PARAM", http.StatusBadRequest},
	{errors.CodeUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized},
	{errors.CodeForbidden, "FORBIDDEN", http.StatusForbidden},
	{errors.CodeNotFound, "NOT_FOUND", http.StatusNotFound},
	{errors.CodeConflict, "CONFLICT", http.StatusConflict},
	{errors.CodeRateLimit, "RATE_LIMIT", http.StatusTooManyRequests},
	{errors.CodeInternal, "INTERNAL_ERROR", http.StatusInternalServerError},
	{errors.CodeNotImplemented, "NOT_IMPLEMENTED", http.StatusNotImplemented},

	// ── Domain authorization ───────────────────────────────────────────
	{errors.CodeMalformedURL, "MALFORMED_URL", http.StatusBadRequest},
	{errors.CodeDomainNotAuthorized, "DOMAIN_NOT_AUTHORIZED", http.StatusForbidden},

	// ── Dispatch / circuit breaker ─────────────────────────────────
	{errors.CodeCircuitOpen, "CIRCUIT_OPEN", http.StatusServiceUnavailable},
	{errors.CodeTransportError, "TRANSPORT_ERROR", http.StatusInternalServerError},
	{errors.CodeAttemptTimeout, "ATTEMPT_TIMEOUT", http.StatusGatewayTimeout},
	{errors.CodeUpstreamServerError, "UPSTREAM_SERVER_ERROR", http.StatusInternalServerError},
	{errors.CodeUpstreamClientError, "UPSTREAM_CLIENT_ERROR", http.StatusInternalServerError},
	{errors.CodePayloadSerialization, "PAYLOAD_SERIALIZATION_ERROR", http.StatusBadRequest},
	{errors.CodeDeliveryCancelled, "DELIVERY_CANCELLED", http.StatusInternalServerError},

	// ── Routing / consumption ──────────────────────────────────────
	{errors.CodeDeserializationError, "DESERIALIZATION_ERROR", http.StatusInternalServerError},

	// ── Infrastructure ────────────────────────────────────────────────────────
	{errors.CodeDBConnectionError, "DB_CONNECTION_ERROR", http.StatusServiceUnavailable},
	{errors.CodeCacheError, "CACHE_ERROR", http.StatusInternalServerError},
	{errors.CodeMessageQueueError, "MESSAGE_QUEUE_ERROR", http.StatusServiceUnavailable},
	{errors.CodeDatabaseError, "DATABASE_ERROR", http.StatusInternalServerError},
	{errors.CodeDBQueryError, "DB_QUERY_ERROR", http.StatusInternalServerError},
	{errors.CodeSerializationError, "SERIALIZATION_ERROR", http.StatusInternalServerError},
}

// ─────────────────────────────────────────────────────────────────────────────
// TestErrorCode_String
// ─────────────────────────────────────────────────────────────────────────────

func TestErrorCode_String(t *testing.T) {
	t.Parallel()

	for _, tc := range allCodes {
		tc := tc
		t.Run(tc.expectedString, func(t *testing.T) {
			t.Parallel()

			got := tc.code.String()

			assert.NotEmpty(t, got,
				"String() for code %d must not be empty", int(tc.code))
			assert.Equal(t, tc.expectedString, got,
				"String() for code %d returned unexpected value", int(tc.code))
		})
	}
}

func TestErrorCode_String_Unknown(t *testing.T) {
	t.Parallel()

	unknownCodes := []errors.ErrorCode{
		errors.ErrorCode(99999),
		errors.ErrorCode(-1),
		errors.ErrorCode(1),
		errors.ErrorCode(12345),
	}

	for _, code := range unknownCodes {
		code := code
		t.Run("", func(t *testing.T) {
			t.Parallel()
			got := code.String()
			assert.NotEmpty(t, got,
				"String() must never return an empty string even for unknown codes")
			assert.Equal(t, "UNKNOWN_CODE", got,
				"String() for undeclared code %d should return UNKNOWN_CODE", int(code))
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// TestErrorCode_HTTPStatus
// ─────────────────────────────────────────────────────────────────────────────

func TestErrorCode_HTTPStatus(t *testing.T) {
	t.Parallel()

	for _, tc := range allCodes {
		tc := tc
		t.Run(tc.expectedString, func(t *testing.T) {
			t.Parallel()

			got := tc.code.HTTPStatus()

			assert.Equal(t, tc.expectedHTTP, got,
				"HTTPStatus() for %s (code %d) returned %d, want %d",
				tc.expectedString, int(tc.code), got, tc.expectedHTTP)
		})
	}
}

func TestErrorCode_HTTPStatus_SpecificMappings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		code errors.ErrorCode
		want int
	}{
		{"NotFound→404", errors.CodeNotFound, http.StatusNotFound},
		{"Unauthorized→401", errors.CodeUnauthorized, http.StatusUnauthorized},
		{"InvalidParam→400", errors.CodeInvalidParam, http.StatusBadRequest},
		{"Internal→500", errors.CodeInternal, http.StatusInternalServerError},
		{"RateLimit→429", errors.CodeRateLimit, http.StatusTooManyRequests},
		{"MalformedURL→400", errors.CodeMalformedURL, http.StatusBadRequest},
		{"CircuitOpen→503", errors.CodeCircuitOpen, http.StatusServiceUnavailable},
		{"AttemptTimeout→504", errors.CodeAttemptTimeout, http.StatusGatewayTimeout},
		{"DBConnectionError→503", errors.CodeDBConnectionError, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.code.HTTPStatus(),
				"HTTPStatus() mismatch for %s", tc.name)
		})
	}
}

func TestErrorCode_HTTPStatus_Unknown(t *testing.T) {
	t.Parallel()

	unknownCodes := []errors.ErrorCode{
		errors.ErrorCode(99999),
		errors.ErrorCode(-1),
		errors.ErrorCode(1),
	}

	for _, code := range unknownCodes {
		code := code
		t.Run("", func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, http.StatusInternalServerError, code.HTTPStatus(),
				"HTTPStatus() for undeclared code %d should default to 500", int(code))
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// TestErrorCode_AllCodesHaveValidHTTPStatus guards against typos such as
// returning 40 instead of 400.
// ─────────────────────────────────────────────────────────────────────────────
func TestErrorCode_AllCodesHaveValidHTTPStatus(t *testing.T) {
	t.Parallel()

	validStatuses := map[int]bool{
		http.StatusOK:                  true,
		http.StatusBadRequest:          true,
		http.StatusUnauthorized:        true,
		http.StatusForbidden:           true,
		http.StatusNotFound:            true,
		http.StatusConflict:            true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
		http.StatusNotImplemented:      true,
	}

	for _, tc := range allCodes {
		tc := tc
		t.Run(tc.expectedString, func(t *testing.T) {
			t.Parallel()
			status := tc.code.HTTPStatus()
			assert.True(t, validStatuses[status],
				"HTTPStatus() for %s returned unexpected status code %d",
				tc.expectedString, status)
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// TestErrorCode_DomainRanges validates that each error code integer value
// falls within the expected numeric range for its concern, preventing
// accidental cross-concern code collisions as the codebase grows.
// ─────────────────────────────────────────────────────────────────────────────
func TestErrorCode_DomainRanges(t *testing.T) {
	t.Parallel()

	type rangeEntry struct {
		code errors.ErrorCode
		low  int
		high int
		name string
	}

	ranges := []rangeEntry{
		{errors.CodeOK, 0, 0, "CodeOK"},
		{errors.CodeUnknown, 10000, 10999, "CodeUnknown"},
		{errors.CodeInvalidParam, 10000, 10999, "CodeInvalidParam"},
		{errors.CodeNotImplemented, 10000, 10999, "CodeNotImplemented"},

		{errors.CodeMalformedURL, 20000, 29999, "CodeMalformedURL"},
		{errors.CodeDomainNotAuthorized, 20000, 29999, "CodeDomainNotAuthorized"},

		{errors.CodeCircuitOpen, 30000, 39999, "CodeCircuitOpen"},
		{errors.CodeTransportError, 30000, 39999, "CodeTransportError"},
		{errors.CodeAttemptTimeout, 30000, 39999, "CodeAttemptTimeout"},
		{errors.CodeUpstreamServerError, 30000, 39999, "CodeUpstreamServerError"},
		{errors.CodeUpstreamClientError, 30000, 39999, "CodeUpstreamClientError"},
		{errors.CodePayloadSerialization, 30000, 39999, "CodePayloadSerialization"},
		{errors.CodeDeliveryCancelled, 30000, 39999, "CodeDeliveryCancelled"},

		{errors.CodeDeserializationError, 40000, 49999, "CodeDeserializationError"},

		{errors.CodeDBConnectionError, 70000, 79999, "CodeDBConnectionError"},
		{errors.CodeCacheError, 70000, 79999, "CodeCacheError"},
		{errors.CodeMessageQueueError, 70000, 79999, "CodeMessageQueueError"},
		{errors.CodeDatabaseError, 70000, 79999, "CodeDatabaseError"},
		{errors.CodeDBQueryError, 70000, 79999, "CodeDBQueryError"},
		{errors.CodeSerializationError, 70000, 79999, "CodeSerializationError"},
	}

	for _, r := range ranges {
		r := r
		t.Run(r.name, func(t *testing.T) {
			t.Parallel()
			v := int(r.code)
			assert.GreaterOrEqual(t, v, r.low,
				"%s value %d is below domain lower bound %d", r.name, v, r.low)
			assert.LessOrEqual(t, v, r.high,
				"%s value %d is above domain upper bound %d", r.name, v, r.high)
		})
	}
}
