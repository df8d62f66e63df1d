package admin

import "errors"

var (
	// ErrMissingTenantID indicates a reminder request without a target tenant.
	ErrMissingTenantID = errors.New("admin.reminders.missing_tenant_id")
	// ErrMissingOrganizationID indicates a redistribution request without an organization.
	ErrMissingOrganizationID = errors.New("admin.redistribution.missing_organization_id")
)
