// Package audit records the lifecycle of every enquiry in an append-only log.
package audit

import (
	"context"

	"github.com/weaveai/weave/internal/models"
)

// Sink appends audit entries. Implementations never update or delete an entry.
type Sink interface {
	Append(ctx context.Context, entry models.AuditEntry) error
	Close() error
}

// Reader reads back entries for one enquiry in append order.
type Reader interface {
	Entries(ctx context.Context, enquiryID string) ([]models.AuditEntry, error)
}
