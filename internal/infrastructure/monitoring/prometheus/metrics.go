package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds all application metrics for the delivery engine.
type AppMetrics struct {
	// HTTP admin layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPRequestSize     HistogramVec
	HTTPResponseSize    HistogramVec
	HTTPActiveRequests  GaugeVec

	// Auth (admin API)
	AuthAttemptsTotal       CounterVec
	AuthTokenVerifyDuration HistogramVec

	// Dispatcher / delivery attempts
	DispatchAttemptsTotal   CounterVec
	DispatchDuration        HistogramVec
	DispatchResponseSize    HistogramVec
	DispatchRetriesTotal    CounterVec
	DispatchInFlight        GaugeVec

	// Domain authorization
	AuthorizerDecisionsTotal CounterVec
	AuthorizerCacheHitsTotal CounterVec
	AuthorizerLookupDuration HistogramVec

	// Circuit breaker
	BreakerStateTransitionsTotal CounterVec
	BreakerState                 GaugeVec
	BreakerOpenCallsRejectedTotal CounterVec

	// Event router
	RouterEventsRoutedTotal CounterVec
	RouterMatchDuration     HistogramVec
	RouterNoSubscribersTotal CounterVec

	// Consumer manager
	ConsumerMessagesConsumedTotal CounterVec
	ConsumerLag                   GaugeVec
	ConsumerActiveTotal            GaugeVec
	ConsumerRestartsTotal          CounterVec

	// Infrastructure
	DBConnectionPoolSize   GaugeVec
	DBConnectionPoolActive GaugeVec
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec

	// System health
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultDispatchDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}
	DefaultSizeBuckets             = []float64{100, 1000, 10000, 100000, 1000000, 10000000}
	DefaultDBDurationBuckets       = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers all metrics and returns an AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP admin layer
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total admin HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "Admin HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPRequestSize = collector.RegisterHistogram("http_request_size_bytes", "Admin HTTP request size", DefaultSizeBuckets, "method", "path")
	m.HTTPResponseSize = collector.RegisterHistogram("http_response_size_bytes", "Admin HTTP response size", DefaultSizeBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active admin HTTP requests", "method", "path")

	// Auth
	m.AuthAttemptsTotal = collector.RegisterCounter("auth_attempts_total", "Admin API authentication attempts", "result", "failure_reason")
	m.AuthTokenVerifyDuration = collector.RegisterHistogram("auth_token_verify_duration_seconds", "Token verification duration", DefaultHTTPDurationBuckets, "method")

	// Dispatcher
	m.DispatchAttemptsTotal = collector.RegisterCounter("dispatch_attempts_total", "Webhook delivery attempts", "callback_id", "outcome")
	m.DispatchDuration = collector.RegisterHistogram("dispatch_duration_seconds", "Webhook delivery attempt duration", DefaultDispatchDurationBuckets, "callback_id")
	m.DispatchResponseSize = collector.RegisterHistogram("dispatch_response_size_bytes", "Webhook response body size", DefaultSizeBuckets, "callback_id")
	m.DispatchRetriesTotal = collector.RegisterCounter("dispatch_retries_total", "Webhook delivery retries scheduled", "callback_id", "reason")
	m.DispatchInFlight = collector.RegisterGauge("dispatch_in_flight", "Webhook deliveries currently in flight", "callback_id")

	// Authorizer
	m.AuthorizerDecisionsTotal = collector.RegisterCounter("authorizer_decisions_total", "Domain authorization decisions", "allow", "reason")
	m.AuthorizerCacheHitsTotal = collector.RegisterCounter("authorizer_cache_hits_total", "Domain authorizer cache hits", "hit")
	m.AuthorizerLookupDuration = collector.RegisterHistogram("authorizer_lookup_duration_seconds", "Domain authorization lookup duration", DefaultDBDurationBuckets, "source")

	// Breaker
	m.BreakerStateTransitionsTotal = collector.RegisterCounter("breaker_state_transitions_total", "Circuit breaker state transitions", "callback_id", "from", "to")
	m.BreakerState = collector.RegisterGauge("breaker_state", "Circuit breaker state (0=closed,1=half_open,2=open)", "callback_id")
	m.BreakerOpenCallsRejectedTotal = collector.RegisterCounter("breaker_open_calls_rejected_total", "Calls rejected by an open circuit breaker", "callback_id")

	// Router
	m.RouterEventsRoutedTotal = collector.RegisterCounter("router_events_routed_total", "Events routed to callback configurations", "event_type", "outcome")
	m.RouterMatchDuration = collector.RegisterHistogram("router_match_duration_seconds", "Event-to-subscription matching duration", DefaultDBDurationBuckets, "event_type")
	m.RouterNoSubscribersTotal = collector.RegisterCounter("router_no_subscribers_total", "Events with no matching active callback", "event_type")

	// Consumer manager
	m.ConsumerMessagesConsumedTotal = collector.RegisterCounter("consumer_messages_consumed_total", "Messages consumed from subscription brokers", "subscription_id", "status")
	m.ConsumerLag = collector.RegisterGauge("consumer_lag", "Consumer lag in unprocessed messages", "subscription_id")
	m.ConsumerActiveTotal = collector.RegisterGauge("consumer_active_total", "Number of currently running consumers", "broker_type")
	m.ConsumerRestartsTotal = collector.RegisterCounter("consumer_restarts_total", "Consumer restarts after failure", "subscription_id")

	// Infrastructure
	m.DBConnectionPoolSize = collector.RegisterGauge("db_pool_size", "Database connection pool size", "db")
	m.DBConnectionPoolActive = collector.RegisterGauge("db_pool_active", "Database active connections", "db")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")

	// System health
	m.ServiceUptime = collector.RegisterGauge("service_uptime_seconds", "Service uptime", "service")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type", "severity")

	return m
}

// RegisterAppMetrics is an alias for NewAppMetrics.
func RegisterAppMetrics(collector MetricsCollector) *AppMetrics {
	return NewAppMetrics(collector)
}

// Helpers

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration, reqSize, respSize int64) {
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	metrics.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	metrics.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

func RecordAuthAttempt(metrics *AppMetrics, success bool, failureReason string, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	metrics.AuthAttemptsTotal.WithLabelValues(result, failureReason).Inc()
	metrics.AuthTokenVerifyDuration.WithLabelValues("local").Observe(duration.Seconds())
}

func RecordDispatchAttempt(metrics *AppMetrics, callbackID, outcome string, duration time.Duration, responseSize int64) {
	metrics.DispatchAttemptsTotal.WithLabelValues(callbackID, outcome).Inc()
	metrics.DispatchDuration.WithLabelValues(callbackID).Observe(duration.Seconds())
	if responseSize > 0 {
		metrics.DispatchResponseSize.WithLabelValues(callbackID).Observe(float64(responseSize))
	}
}

func RecordDispatchRetry(metrics *AppMetrics, callbackID, reason string) {
	metrics.DispatchRetriesTotal.WithLabelValues(callbackID, reason).Inc()
}

func RecordAuthorizerDecision(metrics *AppMetrics, allow bool, reason string, fromCache bool, lookupSource string, duration time.Duration) {
	metrics.AuthorizerDecisionsTotal.WithLabelValues(fmt.Sprintf("%t", allow), reason).Inc()
	hit := "miss"
	if fromCache {
		hit = "hit"
	}
	metrics.AuthorizerCacheHitsTotal.WithLabelValues(hit).Inc()
	metrics.AuthorizerLookupDuration.WithLabelValues(lookupSource).Observe(duration.Seconds())
}

func RecordBreakerTransition(metrics *AppMetrics, callbackID, from, to string, stateValue float64) {
	metrics.BreakerStateTransitionsTotal.WithLabelValues(callbackID, from, to).Inc()
	metrics.BreakerState.WithLabelValues(callbackID).Set(stateValue)
}

func RecordRoutedEvent(metrics *AppMetrics, eventType, outcome string, matchDuration time.Duration) {
	metrics.RouterEventsRoutedTotal.WithLabelValues(eventType, outcome).Inc()
	metrics.RouterMatchDuration.WithLabelValues(eventType).Observe(matchDuration.Seconds())
	if outcome == "no_subscribers" {
		metrics.RouterNoSubscribersTotal.WithLabelValues(eventType).Inc()
	}
}

func RecordConsumedMessage(metrics *AppMetrics, subscriptionID, status string) {
	metrics.ConsumerMessagesConsumedTotal.WithLabelValues(subscriptionID, status).Inc()
}

func RecordDBQuery(metrics *AppMetrics, db, operation string, duration time.Duration, err error) {
	metrics.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(db, "query_error", "error").Inc()
	}
}

func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordError(metrics *AppMetrics, component, errorType, severity string) {
	metrics.ErrorsTotal.WithLabelValues(component, errorType, severity).Inc()
}
