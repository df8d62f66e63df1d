package admin

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteOrganizationsCSV streams organizations as CSV with a header row.
func WriteOrganizationsCSV(destination io.Writer, organizations []Organization) error {
	writer := csv.NewWriter(destination)
	if err := writer.Write([]string{"id", "name", "status", "member_count", "wallet_balance", "created_at"}); err != nil {
		return fmt.Errorf("csv.organizations.header: %w", err)
	}
	for _, organization := range organizations {
		record := []string{
			organization.ID,
			organization.Name,
			organization.Status,
			strconv.Itoa(organization.MemberCount),
			strconv.FormatInt(organization.WalletBalance, 10),
			formatTimestamp(organization.CreatedAt),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("csv.organizations.row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteRemindersCSV streams reminders as CSV with a header row.
func WriteRemindersCSV(destination io.Writer, reminders []Reminder) error {
	writer := csv.NewWriter(destination)
	if err := writer.Write([]string{"id", "tenant_id", "channel", "status", "message", "sent_at", "created_at"}); err != nil {
		return fmt.Errorf("csv.reminders.header: %w", err)
	}
	for _, reminder := range reminders {
		sentAt := ""
		if reminder.SentAt != nil {
			sentAt = formatTimestamp(*reminder.SentAt)
		}
		record := []string{
			reminder.ID,
			reminder.TenantID,
			reminder.Channel,
			reminder.Status,
			reminder.Message,
			sentAt,
			formatTimestamp(reminder.CreatedAt),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("csv.reminders.row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteAuditCSV streams audit entries as CSV with a header row.
func WriteAuditCSV(destination io.Writer, entries []AuditEntry) error {
	writer := csv.NewWriter(destination)
	if err := writer.Write([]string{"id", "actor_id", "action", "resource", "resource_id", "detail", "created_at"}); err != nil {
		return fmt.Errorf("csv.audit.header: %w", err)
	}
	for _, entry := range entries {
		record := []string{
			entry.ID,
			entry.ActorID,
			entry.Action,
			entry.Resource,
			entry.ResourceID,
			entry.Detail,
			formatTimestamp(entry.CreatedAt),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("csv.audit.row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
