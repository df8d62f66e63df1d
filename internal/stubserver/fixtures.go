package stubserver

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/copayhq/copayctl/internal/admin"
)

// FixtureSet holds the seeded admin resources served by the stub routes.
type FixtureSet struct {
	mutex           sync.Mutex
	organizations   []admin.Organization
	tenants         []admin.Tenant
	reminders       []admin.Reminder
	auditEntries    []admin.AuditEntry
	redistributions []admin.RedistributionResult
}

// DefaultAdmins returns the seeded administrator accounts with their PINs.
func DefaultAdmins() []SeedUser {
	return []SeedUser{
		{
			User: AdminUser{ID: "u1", Phone: "0788000000", Email: "root@copay.rw", FirstName: "Aline", LastName: "Uwase", Role: "SUPER_ADMIN"},
			Pin:  "1234",
		},
		{
			User: AdminUser{ID: "u2", Phone: "0788000001", Email: "ops@copay.rw", FirstName: "Eric", LastName: "Mugisha", Role: "ADMIN"},
			Pin:  "4321",
		},
	}
}

// NewFixtures seeds a deterministic resource set.
func NewFixtures() *FixtureSet {
	seededAt := time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)
	sentAt := seededAt.Add(26 * time.Hour)
	return &FixtureSet{
		organizations: []admin.Organization{
			{ID: "org-1", Name: "Kigali Housing Coop", Status: "ACTIVE", MemberCount: 42, WalletBalance: 1250000, CreatedAt: seededAt},
			{ID: "org-2", Name: "Umuganda Savings", Status: "ACTIVE", MemberCount: 18, WalletBalance: 430000, CreatedAt: seededAt.Add(time.Hour)},
			{ID: "org-3", Name: "Nyamirambo Traders", Status: "SUSPENDED", MemberCount: 7, WalletBalance: 0, CreatedAt: seededAt.Add(2 * time.Hour)},
		},
		tenants: []admin.Tenant{
			{ID: "t-1", OrganizationID: "org-1", Name: "Alice Mukamana", Phone: "0788111111", Unit: "A-12", Status: "CURRENT", MonthlyDue: 5000, CreatedAt: seededAt},
			{ID: "t-2", OrganizationID: "org-1", Name: "Jean Bosco", Phone: "0788222222", Unit: "A-14", Status: "LATE", MonthlyDue: 5000, CreatedAt: seededAt},
			{ID: "t-3", OrganizationID: "org-1", Name: "Chantal Ingabire", Phone: "0788333333", Unit: "B-03", Status: "CURRENT", MonthlyDue: 7500, CreatedAt: seededAt},
			{ID: "t-4", OrganizationID: "org-2", Name: "Patrick Nsenga", Phone: "0788444444", Unit: "1", Status: "LATE", MonthlyDue: 3000, CreatedAt: seededAt.Add(time.Hour)},
			{ID: "t-5", OrganizationID: "org-2", Name: "Diane Uwera", Phone: "0788555555", Unit: "2", Status: "CURRENT", MonthlyDue: 3000, CreatedAt: seededAt.Add(time.Hour)},
		},
		reminders: []admin.Reminder{
			{ID: "rem-1", TenantID: "t-2", Channel: "SMS", Message: "June contribution overdue", Status: "SENT", SentAt: &sentAt, CreatedAt: seededAt.Add(25 * time.Hour)},
			{ID: "rem-2", TenantID: "t-4", Channel: "SMS", Message: "June contribution overdue", Status: "PENDING", CreatedAt: seededAt.Add(30 * time.Hour)},
		},
		auditEntries: []admin.AuditEntry{
			{ID: "a-1", ActorID: "u1", Action: "REMINDER_SENT", Resource: "reminder", ResourceID: "rem-1", Detail: "SMS to t-2", CreatedAt: seededAt.Add(25 * time.Hour)},
			{ID: "a-2", ActorID: "u2", Action: "ORG_SUSPENDED", Resource: "organization", ResourceID: "org-3", Detail: "missed two settlement cycles", CreatedAt: seededAt.Add(48 * time.Hour)},
		},
		redistributions: []admin.RedistributionResult{
			{ID: "run-1", OrganizationID: "org-1", MovedAmount: 340000, AffectedTenants: 3, DryRun: false, ExecutedAt: seededAt.Add(72 * time.Hour)},
		},
	}
}

func (fixtures *FixtureSet) listOrganizations(search string) []admin.Organization {
	fixtures.mutex.Lock()
	defer fixtures.mutex.Unlock()
	matched := make([]admin.Organization, 0, len(fixtures.organizations))
	for _, organization := range fixtures.organizations {
		if search != "" && !strings.Contains(strings.ToLower(organization.Name), strings.ToLower(search)) {
			continue
		}
		matched = append(matched, organization)
	}
	return matched
}

func (fixtures *FixtureSet) getOrganization(organizationID string) (admin.Organization, bool) {
	fixtures.mutex.Lock()
	defer fixtures.mutex.Unlock()
	for _, organization := range fixtures.organizations {
		if organization.ID == organizationID {
			return organization, true
		}
	}
	return admin.Organization{}, false
}

func (fixtures *FixtureSet) listTenants(organizationID string) []admin.Tenant {
	fixtures.mutex.Lock()
	defer fixtures.mutex.Unlock()
	matched := make([]admin.Tenant, 0, len(fixtures.tenants))
	for _, tenant := range fixtures.tenants {
		if organizationID != "" && tenant.OrganizationID != organizationID {
			continue
		}
		matched = append(matched, tenant)
	}
	return matched
}

func (fixtures *FixtureSet) getTenant(tenantID string) (admin.Tenant, bool) {
	fixtures.mutex.Lock()
	defer fixtures.mutex.Unlock()
	for _, tenant := range fixtures.tenants {
		if tenant.ID == tenantID {
			return tenant, true
		}
	}
	return admin.Tenant{}, false
}

func (fixtures *FixtureSet) listReminders() []admin.Reminder {
	fixtures.mutex.Lock()
	defer fixtures.mutex.Unlock()
	cloned := make([]admin.Reminder, len(fixtures.reminders))
	copy(cloned, fixtures.reminders)
	return cloned
}

func (fixtures *FixtureSet) createReminder(tenantID string, channel string, message string, now time.Time) admin.Reminder {
	fixtures.mutex.Lock()
	defer fixtures.mutex.Unlock()
	reminder := admin.Reminder{
		ID:        fmt.Sprintf("rem-%d", len(fixtures.reminders)+1),
		TenantID:  tenantID,
		Channel:   channel,
		Message:   message,
		Status:    "PENDING",
		CreatedAt: now.UTC(),
	}
	fixtures.reminders = append(fixtures.reminders, reminder)
	return reminder
}

func (fixtures *FixtureSet) listAudit(actorID string, action string, from time.Time, to time.Time) []admin.AuditEntry {
	fixtures.mutex.Lock()
	defer fixtures.mutex.Unlock()
	matched := make([]admin.AuditEntry, 0, len(fixtures.auditEntries))
	for _, entry := range fixtures.auditEntries {
		if actorID != "" && entry.ActorID != actorID {
			continue
		}
		if action != "" && entry.Action != action {
			continue
		}
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && entry.CreatedAt.After(to) {
			continue
		}
		matched = append(matched, entry)
	}
	return matched
}

func (fixtures *FixtureSet) appendAudit(actorID string, action string, resource string, resourceID string, detail string, now time.Time) {
	fixtures.mutex.Lock()
	defer fixtures.mutex.Unlock()
	fixtures.auditEntries = append(fixtures.auditEntries, admin.AuditEntry{
		ID:         fmt.Sprintf("a-%d", len(fixtures.auditEntries)+1),
		ActorID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Detail:     detail,
		CreatedAt:  now.UTC(),
	})
}

func (fixtures *FixtureSet) runRedistribution(organizationID string, dryRun bool, now time.Time) (admin.RedistributionResult, bool) {
	fixtures.mutex.Lock()
	defer fixtures.mutex.Unlock()

	found := false
	for _, organization := range fixtures.organizations {
		if organization.ID == organizationID {
			found = true
			break
		}
	}
	if !found {
		return admin.RedistributionResult{}, false
	}

	var movedAmount int64
	affectedTenants := 0
	for _, tenant := range fixtures.tenants {
		if tenant.OrganizationID != organizationID {
			continue
		}
		movedAmount += tenant.MonthlyDue
		affectedTenants++
	}
	result := admin.RedistributionResult{
		ID:              fmt.Sprintf("run-%d", len(fixtures.redistributions)+1),
		OrganizationID:  organizationID,
		MovedAmount:     movedAmount,
		AffectedTenants: affectedTenants,
		DryRun:          dryRun,
		ExecutedAt:      now.UTC(),
	}
	if !dryRun {
		fixtures.redistributions = append(fixtures.redistributions, result)
	}
	return result, true
}

func (fixtures *FixtureSet) listRedistributions(organizationID string) []admin.RedistributionResult {
	fixtures.mutex.Lock()
	defer fixtures.mutex.Unlock()
	matched := make([]admin.RedistributionResult, 0, len(fixtures.redistributions))
	for _, run := range fixtures.redistributions {
		if organizationID != "" && run.OrganizationID != organizationID {
			continue
		}
		matched = append(matched, run)
	}
	return matched
}
