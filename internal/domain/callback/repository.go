package callback

import (
	"context"
	"fmt"

	"github.com/webhookd/engine/pkg/types/common"
)

// Repository is the Config Store's contract for the
// CallbackConfiguration aggregate.
type Repository interface {
	Save(ctx context.Context, c *CallbackConfiguration) error
	FindByID(ctx context.Context, id common.ID) (*CallbackConfiguration, error)
	Delete(ctx context.Context, id common.ID) error
	List(ctx context.Context, req common.PageRequest) (common.PageResponse[*CallbackConfiguration], error)

	// ActiveConfigsForEventType returns every configuration with active=true,
	// status=ACTIVE, and at least one subscribed_event_types entry matching
	// eventType under the restricted glob rules. Implementations may perform
	// the glob match in SQL or in Go, provided duplicates are never returned.
	ActiveConfigsForEventType(ctx context.Context, eventType string) ([]*CallbackConfiguration, error)

	// RecordSuccess/RecordFailure perform the atomic single-row counter and
	// status updates without requiring the full aggregate to be reloaded by
	// the caller.
	RecordSuccess(ctx context.Context, id common.ID) error
	RecordFailure(ctx context.Context, id common.ID) (*CallbackConfiguration, error)
}

// ErrNotFound is the sentinel wrapped (as errors.CodeNotFound) by Repository
// implementations when no row matches the requested id.
var ErrNotFound = fmt.Errorf("callback configuration not found")
