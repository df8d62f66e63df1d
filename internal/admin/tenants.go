package admin

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/copayhq/copayctl/internal/apiclient"
)

// Tenant is a member of an organization with a recurring contribution.
type Tenant struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Unit           string    `json:"unit"`
	Status         string    `json:"status"`
	MonthlyDue     int64     `json:"monthlyDue"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Tenants exposes the tenant endpoints.
type Tenants struct {
	client *apiclient.Client
}

// NewTenants constructs the service.
func NewTenants(client *apiclient.Client) *Tenants {
	return &Tenants{client: client}
}

// List returns a page of tenants, optionally scoped to one organization.
func (service *Tenants) List(ctx context.Context, organizationID string, options ListOptions) ([]Tenant, Pagination, error) {
	query := options.Values()
	if organizationID != "" {
		query.Set("organizationId", organizationID)
	}
	return fetchList[Tenant](ctx, service.client, "tenants.list", "/admin/tenants", query)
}

// Get fetches a single tenant by identifier.
func (service *Tenants) Get(ctx context.Context, tenantID string) (Tenant, error) {
	var tenant Tenant
	if err := service.client.GetEntity(ctx, "/admin/tenants/"+url.PathEscape(tenantID), nil, &tenant); err != nil {
		return Tenant{}, fmt.Errorf("tenants.get: %w", err)
	}
	return tenant, nil
}
