package subscription

import (
	"context"
	"fmt"

	"github.com/webhookd/engine/pkg/types/common"
)

// Repository is the config store contract for the Subscription aggregate.
// Implementations must serialize overlapping counter mutations on the same
// row.
type Repository interface {
	Save(ctx context.Context, s *Subscription) error
	FindByID(ctx context.Context, id common.ID) (*Subscription, error)
	Delete(ctx context.Context, id common.ID) error

	// ListActive returns every Subscription with Active=true, used by the
	// Consumer Manager at startup to recover its registry.
	ListActive(ctx context.Context) ([]*Subscription, error)

	// List returns a page of all subscriptions for the admin surface.
	List(ctx context.Context, req common.PageRequest) (common.PageResponse[*Subscription], error)

	// IncrementReceived/IncrementFailed perform atomic single-row counter
	// bumps; they do not require the full aggregate to be reloaded.
	IncrementReceived(ctx context.Context, id common.ID) error
	IncrementFailed(ctx context.Context, id common.ID) error
}

// ErrNotFound is the sentinel wrapped (as errors.CodeNotFound) by Repository
// implementations when no row matches the requested id.
var ErrNotFound = fmt.Errorf("subscription not found")
