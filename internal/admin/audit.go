package admin

import (
	"context"
	"time"

	"github.com/copayhq/copayctl/internal/apiclient"
)

// AuditEntry is one recorded administrative action.
type AuditEntry struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actorId"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resourceId"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AuditFilter narrows an audit listing by actor, action, and time range.
type AuditFilter struct {
	ActorID string
	Action  string
	From    time.Time
	To      time.Time
}

// Audit exposes the audit trail endpoints.
type Audit struct {
	client *apiclient.Client
}

// NewAudit constructs the service.
func NewAudit(client *apiclient.Client) *Audit {
	return &Audit{client: client}
}

// List returns a page of audit entries matching the filter.
func (service *Audit) List(ctx context.Context, filter AuditFilter, options ListOptions) ([]AuditEntry, Pagination, error) {
	query := options.Values()
	if filter.ActorID != "" {
		query.Set("actorId", filter.ActorID)
	}
	if filter.Action != "" {
		query.Set("action", filter.Action)
	}
	if !filter.From.IsZero() {
		query.Set("from", filter.From.UTC().Format(time.RFC3339))
	}
	if !filter.To.IsZero() {
		query.Set("to", filter.To.UTC().Format(time.RFC3339))
	}
	return fetchList[AuditEntry](ctx, service.client, "audit.list", "/admin/audit", query)
}
