package pattern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/webhookd/engine/internal/core/pattern"
)

// ─────────────────────────────────────────────────────────────────────────────
// TestMatchEventType
// ─────────────────────────────────────────────────────────────────────────────

func TestMatchEventType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		pattern   string
		candidate string
		want      bool
	}{
		{"exact literal match", "customer.created", "customer.created", true},
		{"exact literal mismatch", "customer.created", "customer.updated", false},
		{"trailing star matches suffix", "customer.*", "customer.created", true},
		{"trailing star does not match bare prefix", "customer.*", "customer", false},
		{"leading star matches prefix", "*.created", "customer.created", true},
		{"bare star matches anything", "*", "anything.at.all", true},
		{"bare star matches empty", "*", "", true},
		{"middle star", "customer.*.created", "customer.vip.created", true},
		{"middle star no match out of order", "customer.*.created", "customer.created.vip", false},
		{"case sensitive for event types", "Customer.Created", "customer.created", false},
		{"adjacent stars collapse", "a**b", "ab", true},
		{"star in middle requires both anchors", "a*b*c", "axxbyyc", true},
		{"star in middle missing suffix", "a*b*c", "axxbyy", false},
		{"empty pattern matches only empty", "", "", true},
		{"empty pattern mismatch", "", "x", false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, pattern.MatchEventType(tc.pattern, tc.candidate))
		})
	}
}

func TestMatchPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		pattern   string
		candidate string
		want      bool
	}{
		{"trailing star matches nested suffix", "/webhooks/*", "/webhooks/foo/bar", true},
		{"trailing star matches empty suffix", "/w/*", "/w/", true},
		{"no match without star", "/webhooks", "/webhooks/foo", false},
		{"case sensitive for paths", "/Webhooks/*", "/webhooks/foo", false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, pattern.MatchPath(tc.pattern, tc.candidate))
		})
	}
}

func TestMatchHost_CaseInsensitive(t *testing.T) {
	t.Parallel()

	assert.True(t, pattern.MatchHost("Example.COM", "example.com"))
	assert.True(t, pattern.MatchHost("*.example.com", "API.EXAMPLE.COM"))
	assert.False(t, pattern.MatchHost("example.com", "other.com"))
}

// ─────────────────────────────────────────────────────────────────────────────
// TestAnyMatches
// ─────────────────────────────────────────────────────────────────────────────

func TestAnyMatches(t *testing.T) {
	t.Parallel()

	t.Run("empty pattern list accepts everything", func(t *testing.T) {
		t.Parallel()
		assert.True(t, pattern.AnyMatches(nil, "customer.created"))
		assert.True(t, pattern.AnyMatches([]string{}, "anything"))
	})

	t.Run("matches if any pattern matches", func(t *testing.T) {
		t.Parallel()
		pats := []string{"order.*", "customer.created"}
		assert.True(t, pattern.AnyMatches(pats, "customer.created"))
		assert.True(t, pattern.AnyMatches(pats, "order.shipped"))
		assert.False(t, pattern.AnyMatches(pats, "invoice.paid"))
	})
}
