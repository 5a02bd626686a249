// Package authdomain models the AuthorizedDomain aggregate: the whitelist
// entry a callback URL's host must match before any network call is made by
// the Dispatcher. The authorization decision itself is evaluated here;
// URL parsing and the domain-key lookup that feed it live in the Domain
// Authorizer application service.
package authdomain

import (
	"fmt"
	"strings"
	"time"

	"github.com/webhookd/engine/internal/core/pattern"
	"github.com/webhookd/engine/pkg/types/common"
)

// AuthorizedDomain is an authorization record for a host:port pair.
type AuthorizedDomain struct {
	common.BaseEntity

	Domain                string // lowercased, "host" or "host:port" for non-default ports
	Verified              bool
	Active                bool
	AllowedPaths          []string // ordered path-glob patterns; empty ⇒ any path
	RequireHTTPS          bool
	ExpiresAt             *time.Time
	IPWhitelist           []string // informational only; not enforced by the core
	MaxCallbacksPerMinute int      // informational only; not enforced by the core

	TotalCallbacks int64
	TotalFailed    int64
	LastCallbackAt *time.Time

	events []DomainEvent
}

// NewAuthorizedDomain validates and constructs a new AuthorizedDomain. The
// domain key itself is normalized by the caller (NormalizeDomainKey) before
// being passed here so uniqueness enforcement happens on a canonical value.
func NewAuthorizedDomain(
	domain string,
	verified, active bool,
	allowedPaths []string,
	requireHTTPS bool,
	expiresAt *time.Time,
	ipWhitelist []string,
	maxCallbacksPerMinute int,
	createdBy common.UserID,
) (*AuthorizedDomain, error) {
	if domain == "" {
		return nil, fmt.Errorf("authorized_domain: domain must not be empty")
	}

	d := &AuthorizedDomain{
		BaseEntity: common.BaseEntity{
			ID:        common.NewID(),
			CreatedBy: createdBy,
		},
		Domain:                strings.ToLower(domain),
		Verified:              verified,
		Active:                active,
		AllowedPaths:          append([]string(nil), allowedPaths...),
		RequireHTTPS:          requireHTTPS,
		ExpiresAt:             expiresAt,
		IPWhitelist:           append([]string(nil), ipWhitelist...),
		MaxCallbacksPerMinute: maxCallbacksPerMinute,
	}
	d.touch()
	d.recordEvent(NewDomainRegisteredEvent(d))
	return d, nil
}

// DenyReason enumerates why authorization refused a URL; dispatcher error
// messages read "not_authorized: <reason>".
type DenyReason string

const (
	DenyNone           DenyReason = ""
	DenyMalformed      DenyReason = "malformed"
	DenyUnknownDomain  DenyReason = "unknown_domain"
	DenyInactive       DenyReason = "inactive"
	DenyUnverified     DenyReason = "unverified"
	DenyExpired        DenyReason = "expired"
	DenyHTTPSRequired  DenyReason = "https_required"
	DenyPathDisallowed DenyReason = "path_disallowed"
)

// Authorize evaluates the record-level checks (active, verified, expiry,
// https, path) against this already-looked-up domain record. Parsing the
// URL, computing the domain key, and the lookup itself are the caller's
// responsibility.
func (d *AuthorizedDomain) Authorize(scheme, path string, now time.Time) (bool, DenyReason) {
	if !d.Active {
		return false, DenyInactive
	}
	if !d.Verified {
		return false, DenyUnverified
	}
	if d.ExpiresAt != nil && !d.ExpiresAt.After(now) {
		return false, DenyExpired
	}
	if d.RequireHTTPS && scheme != "https" {
		return false, DenyHTTPSRequired
	}
	if len(d.AllowedPaths) > 0 {
		matched := false
		for _, p := range d.AllowedPaths {
			if pattern.MatchPath(p, path) {
				matched = true
				break
			}
		}
		if !matched {
			return false, DenyPathDisallowed
		}
	}
	return true, DenyNone
}

// RecordCallback bumps the per-domain delivery counters and the
// last-callback timestamp.
func (d *AuthorizedDomain) RecordCallback(success bool) {
	now := time.Now().UTC()
	d.TotalCallbacks++
	if !success {
		d.TotalFailed++
	}
	d.LastCallbackAt = &now
}

func (d *AuthorizedDomain) touch() {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	d.Version++
}

func (d *AuthorizedDomain) recordEvent(e DomainEvent) {
	d.events = append(d.events, e)
}

// Events drains and returns all domain events recorded since the last drain.
func (d *AuthorizedDomain) Events() []DomainEvent {
	ev := d.events
	d.events = nil
	return ev
}

// NormalizeDomainKey computes the canonical domain-key form used for both
// storage uniqueness and lookup: lowercased host, plus ":port" iff port is
// specified and differs from the scheme's default.
func NormalizeDomainKey(scheme, host, port string) string {
	host = strings.ToLower(host)
	if port == "" {
		return host
	}
	defaultPort := "80"
	if scheme == "https" {
		defaultPort = "443"
	}
	if port == defaultPort {
		return host
	}
	return host + ":" + port
}
