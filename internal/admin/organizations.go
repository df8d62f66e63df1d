package admin

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/copayhq/copayctl/internal/apiclient"
)

// Organization is a cooperative registered on the platform.
type Organization struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	MemberCount   int       `json:"memberCount"`
	WalletBalance int64     `json:"walletBalance"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Organizations exposes the organization endpoints.
type Organizations struct {
	client *apiclient.Client
}

// NewOrganizations constructs the service.
func NewOrganizations(client *apiclient.Client) *Organizations {
	return &Organizations{client: client}
}

// List returns a page of organizations.
func (service *Organizations) List(ctx context.Context, options ListOptions) ([]Organization, Pagination, error) {
	return fetchList[Organization](ctx, service.client, "organizations.list", "/admin/organizations", options.Values())
}

// Get fetches a single organization by identifier.
func (service *Organizations) Get(ctx context.Context, organizationID string) (Organization, error) {
	var organization Organization
	if err := service.client.GetEntity(ctx, "/admin/organizations/"+url.PathEscape(organizationID), nil, &organization); err != nil {
		return Organization{}, fmt.Errorf("organizations.get: %w", err)
	}
	return organization, nil
}
