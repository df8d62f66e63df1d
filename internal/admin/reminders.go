package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/copayhq/copayctl/internal/apiclient"
)

// Reminder is a payment reminder queued or delivered to a tenant.
type Reminder struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenantId"`
	Channel   string     `json:"channel"`
	Message   string     `json:"message"`
	Status    string     `json:"status"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// SendReminderInput describes a reminder to dispatch.
type SendReminderInput struct {
	TenantID string `json:"tenantId"`
	Channel  string `json:"channel"`
	Message  string `json:"message"`
}

// Reminders exposes the payment reminder endpoints.
type Reminders struct {
	client *apiclient.Client
}

// NewReminders constructs the service.
func NewReminders(client *apiclient.Client) *Reminders {
	return &Reminders{client: client}
}

// List returns a page of reminders.
func (service *Reminders) List(ctx context.Context, options ListOptions) ([]Reminder, Pagination, error) {
	return fetchList[Reminder](ctx, service.client, "reminders.list", "/admin/reminders", options.Values())
}

// Send queues a reminder for delivery and returns the created record.
func (service *Reminders) Send(ctx context.Context, input SendReminderInput) (Reminder, error) {
	if input.TenantID == "" {
		return Reminder{}, fmt.Errorf("reminders.send: %w", ErrMissingTenantID)
	}
	var reminder Reminder
	if err := service.client.PostEntity(ctx, "/admin/reminders", input, &reminder); err != nil {
		return Reminder{}, fmt.Errorf("reminders.send: %w", err)
	}
	return reminder, nil
}
