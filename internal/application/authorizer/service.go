// Package authorizer validates that a callback URL resolves to an active,
// verified, non-expired authorized domain and satisfies its path/HTTPS
// restrictions before any network call.
package authorizer

import (
	"context"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/webhookd/engine/internal/domain/authdomain"
	"github.com/webhookd/engine/internal/infrastructure/database/redis"
	"github.com/webhookd/engine/internal/infrastructure/monitoring/logging"
)

// Decision is the outcome of an authorization check. DomainKnown lets the
// dispatcher bump domain counters only when the domain exists in the store.
// Deny decisions are never
// served from cache, so DomainKnown is always freshly computed when it
// matters; on an allowed (and possibly cached) decision the domain is known
// by construction.
type Decision struct {
	Allow       bool
	Reason      authdomain.DenyReason
	DomainKnown bool
}

const cacheKeyPrefix = "authz:url:"

// Authorizer decides whether a callback URL may be dispatched to. Positive
// decisions are cached keyed by the exact URL string with a small TTL; negative
// decisions are never cached since a denied domain may become authorized at
// any moment and the cost of re-checking a deny is a single indexed lookup.
type Authorizer struct {
	domains  authdomain.Repository
	cache    redis.Cache
	cacheTTL time.Duration
	log      logging.Logger

	group singleflight.Group
}

// New constructs an Authorizer.
func New(domains authdomain.Repository, cache redis.Cache, cacheTTL time.Duration, log logging.Logger) *Authorizer {
	return &Authorizer{domains: domains, cache: cache, cacheTTL: cacheTTL, log: log}
}

// Authorize runs the full decision procedure for a callback URL.
func (a *Authorizer) Authorize(ctx context.Context, rawURL string) (Decision, error) {
	if cached, ok := a.getCached(ctx, rawURL); ok {
		return cached, nil
	}

	// Deduplicate concurrent lookups for the same URL under bursty event load.
	v, err, _ := a.group.Do(rawURL, func() (interface{}, error) {
		d := a.evaluate(ctx, rawURL)
		if d.Allow {
			a.setCached(ctx, rawURL, d)
		}
		return d, nil
	})
	if err != nil {
		return Decision{}, err
	}
	return v.(Decision), nil
}

// evaluate runs the decision procedure without consulting the cache.
func (a *Authorizer) evaluate(ctx context.Context, rawURL string) Decision {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return Decision{Allow: false, Reason: authdomain.DenyMalformed}
	}
	scheme := u.Scheme
	if scheme != "http" && scheme != "https" {
		return Decision{Allow: false, Reason: authdomain.DenyMalformed}
	}

	host := u.Hostname()
	port := u.Port()
	domainKey := authdomain.NormalizeDomainKey(scheme, host, port)

	d, err := a.domains.FindByDomain(ctx, domainKey)
	if err != nil || d == nil {
		return Decision{Allow: false, Reason: authdomain.DenyUnknownDomain}
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	allow, reason := d.Authorize(scheme, path, time.Now().UTC())
	return Decision{Allow: allow, Reason: reason, DomainKnown: true}
}

// DomainKeyForURL computes the canonical domain key for rawURL, used by the
// dispatcher to bump domain counters without depending on this Authorizer's
// cache or repository. Returns ok=false if the URL is malformed.
func DomainKeyForURL(rawURL string) (key string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", false
	}
	return authdomain.NormalizeDomainKey(u.Scheme, u.Hostname(), u.Port()), true
}

// cacheEntry is the JSON shape stored in the cache; Decision itself is not
// marshalled directly so the cache format stays stable if Decision grows.
type cacheEntry struct {
	Allow bool `json:"allow"`
}

func (a *Authorizer) getCached(ctx context.Context, rawURL string) (Decision, bool) {
	if a.cache == nil {
		return Decision{}, false
	}
	var entry cacheEntry
	if err := a.cache.Get(ctx, cacheKeyPrefix+rawURL, &entry); err != nil {
		return Decision{}, false
	}
	return Decision{Allow: entry.Allow, DomainKnown: true}, true
}

func (a *Authorizer) setCached(ctx context.Context, rawURL string, d Decision) {
	if a.cache == nil {
		return
	}
	entry := cacheEntry{Allow: d.Allow}
	if err := a.cache.Set(ctx, cacheKeyPrefix+rawURL, entry, a.cacheTTL); err != nil {
		a.log.Warn("authorizer: failed to cache positive decision", logging.Err(err), logging.String("url", rawURL))
	}
}
