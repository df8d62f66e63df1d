package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/copayhq/copayctl/internal/apiclient"
)

// RedistributionInput requests a balance redistribution run for one organization.
type RedistributionInput struct {
	OrganizationID string `json:"organizationId"`
	DryRun         bool   `json:"dryRun"`
}

// RedistributionResult summarizes one redistribution run.
type RedistributionResult struct {
	ID              string    `json:"id"`
	OrganizationID  string    `json:"organizationId"`
	MovedAmount     int64     `json:"movedAmount"`
	AffectedTenants int       `json:"affectedTenants"`
	DryRun          bool      `json:"dryRun"`
	ExecutedAt      time.Time `json:"executedAt"`
}

// Redistribution exposes the balance redistribution endpoints.
type Redistribution struct {
	client *apiclient.Client
}

// NewRedistribution constructs the service.
func NewRedistribution(client *apiclient.Client) *Redistribution {
	return &Redistribution{client: client}
}

// Run triggers a redistribution for the organization and returns the run summary.
func (service *Redistribution) Run(ctx context.Context, input RedistributionInput) (RedistributionResult, error) {
	if input.OrganizationID == "" {
		return RedistributionResult{}, fmt.Errorf("redistribution.run: %w", ErrMissingOrganizationID)
	}
	var result RedistributionResult
	if err := service.client.PostEntity(ctx, "/admin/redistributions", input, &result); err != nil {
		return RedistributionResult{}, fmt.Errorf("redistribution.run: %w", err)
	}
	return result, nil
}

// History returns past redistribution runs, optionally scoped to one organization.
func (service *Redistribution) History(ctx context.Context, organizationID string, options ListOptions) ([]RedistributionResult, Pagination, error) {
	query := options.Values()
	if organizationID != "" {
		query.Set("organizationId", organizationID)
	}
	return fetchList[RedistributionResult](ctx, service.client, "redistribution.history", "/admin/redistributions", query)
}
