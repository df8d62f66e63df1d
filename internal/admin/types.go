// Package admin provides typed services over the Copay admin API: organizations,
// tenants, payment reminders, the audit trail, and balance redistribution.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/copayhq/copayctl/internal/apiclient"
)

// Pagination mirrors the paging fields of the backend list envelope.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}

// ListOptions carries paging and search parameters common to all listing endpoints.
type ListOptions struct {
	Page     int
	PageSize int
	Search   string
}

// Values encodes the options as query parameters, omitting zero values.
func (options ListOptions) Values() url.Values {
	values := url.Values{}
	if options.Page > 0 {
		values.Set("page", strconv.Itoa(options.Page))
	}
	if options.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(options.PageSize))
	}
	if options.Search != "" {
		values.Set("search", options.Search)
	}
	return values
}

type listEnvelope[Item any] struct {
	Data     []Item `json:"data"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
	Total    int    `json:"total"`
}

func fetchList[Item any](ctx context.Context, client *apiclient.Client, operation string, path string, query url.Values) ([]Item, Pagination, error) {
	var raw json.RawMessage
	if err := client.GetList(ctx, path, query, &raw); err != nil {
		return nil, Pagination{}, fmt.Errorf("%s: %w", operation, err)
	}
	var envelope listEnvelope[Item]
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, Pagination{}, fmt.Errorf("%s: decode list envelope: %w", operation, err)
	}
	paging := Pagination{Page: envelope.Page, PageSize: envelope.PageSize, Total: envelope.Total}
	return envelope.Data, paging, nil
}

// Services bundles every admin resource service over one shared client.
type Services struct {
	Organizations  *Organizations
	Tenants        *Tenants
	Reminders      *Reminders
	Audit          *Audit
	Redistribution *Redistribution
}

// New constructs the full service bundle.
func New(client *apiclient.Client) *Services {
	return &Services{
		Organizations:  NewOrganizations(client),
		Tenants:        NewTenants(client),
		Reminders:      NewReminders(client),
		Audit:          NewAudit(client),
		Redistribution: NewRedistribution(client),
	}
}

func formatTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
