package execution

import (
	"context"

	"github.com/webhookd/engine/pkg/types/common"
)

// Repository is the config store contract for the CallbackExecution
// aggregate. This engine appends one row per attempt rather than mutating a
// single row across a retry sequence, so Update is used only to close out
// the row the dispatcher itself just wrote (e.g. after an async flush), not
// across attempts.
type Repository interface {
	Append(ctx context.Context, e *CallbackExecution) error
	Update(ctx context.Context, e *CallbackExecution) error
	FindByID(ctx context.Context, id common.ID) (*CallbackExecution, error)

	// ListByConfiguration supports the admin read path; every dispatch
	// outcome is reachable through it.
	ListByConfiguration(ctx context.Context, configurationID common.ID, req common.PageRequest) (common.PageResponse[*CallbackExecution], error)
}
