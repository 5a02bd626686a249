package authdomain

import (
	"context"
	"fmt"

	"github.com/webhookd/engine/pkg/types/common"
)

// Repository is the Config Store's contract for the AuthorizedDomain
// aggregate.
type Repository interface {
	Save(ctx context.Context, d *AuthorizedDomain) error
	FindByID(ctx context.Context, id common.ID) (*AuthorizedDomain, error)

	// FindByDomain looks up a domain by its canonical key (NormalizeDomainKey
	// output), case-insensitively.
	FindByDomain(ctx context.Context, domain string) (*AuthorizedDomain, error)

	Delete(ctx context.Context, id common.ID) error
	List(ctx context.Context, req common.PageRequest) (common.PageResponse[*AuthorizedDomain], error)

	// RecordCallback performs the atomic counter bump for one delivery
	// outcome, without requiring the full aggregate reload.
	RecordCallback(ctx context.Context, domain string, success bool) error
}

// ErrNotFound is the sentinel wrapped (as errors.CodeNotFound) by Repository
// implementations when no row matches the requested domain or id.
var ErrNotFound = fmt.Errorf("authorized domain not found")
