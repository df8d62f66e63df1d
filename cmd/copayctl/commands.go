package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/copayhq/copayctl/internal/admin"
)

func newLoginCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "login",
		Short: "Sign in with phone and PIN",
		RunE: func(cmd *cobra.Command, arguments []string) error {
			phone, _ := cmd.Flags().GetString("phone")
			pin, _ := cmd.Flags().GetString("pin")
			if phone == "" || pin == "" {
				return configError("config.missing_credentials", "both --phone and --pin must be provided")
			}

			client, clientErr := buildClient(cmd.Context())
			if clientErr != nil {
				return clientErr
			}
			profile, loginErr := client.Login(cmd.Context(), phone, pin)
			if loginErr != nil {
				return loginErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s %s (%s)\n", profile.FirstName, profile.LastName, profile.Role)
			return nil
		},
	}
	command.Flags().String("phone", "", "Admin phone number")
	command.Flags().String("pin", "", "Admin PIN")
	return command
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear cached credentials",
		RunE: func(cmd *cobra.Command, arguments []string) error {
			client, clientErr := buildClient(cmd.Context())
			if clientErr != nil {
				return clientErr
			}
			if logoutErr := client.Logout(cmd.Context()); logoutErr != nil {
				return logoutErr
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in admin",
		RunE: func(cmd *cobra.Command, arguments []string) error {
			client, clientErr := buildClient(cmd.Context())
			if clientErr != nil {
				return clientErr
			}
			profile, meErr := client.Me(cmd.Context())
			if meErr != nil {
				return meErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s <%s> phone=%s role=%s\n", profile.FirstName, profile.LastName, profile.Email, profile.Phone, profile.Role)
			return nil
		},
	}
}

func listOptionsFromFlags(cmd *cobra.Command) admin.ListOptions {
	page, _ := cmd.Flags().GetInt("page")
	pageSize, _ := cmd.Flags().GetInt("page_size")
	search, _ := cmd.Flags().GetString("search")
	return admin.ListOptions{Page: page, PageSize: pageSize, Search: search}
}

func addListFlags(command *cobra.Command) {
	command.Flags().Int("page", 0, "Page number")
	command.Flags().Int("page_size", 0, "Page size")
	command.Flags().String("search", "", "Search filter")
}

func newOrgsCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "orgs",
		Short: "List organizations",
		RunE: func(cmd *cobra.Command, arguments []string) error {
			client, clientErr := buildClient(cmd.Context())
			if clientErr != nil {
				return clientErr
			}
			organizations, paging, listErr := admin.NewOrganizations(client).List(cmd.Context(), listOptionsFromFlags(cmd))
			if listErr != nil {
				return listErr
			}

			if asCSV, _ := cmd.Flags().GetBool("csv"); asCSV {
				return admin.WriteOrganizationsCSV(cmd.OutOrStdout(), organizations)
			}
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tNAME\tSTATUS\tMEMBERS\tBALANCE")
			for _, organization := range organizations {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%d\n", organization.ID, organization.Name, organization.Status, organization.MemberCount, organization.WalletBalance)
			}
			if err := writer.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d total\n", paging.Page, paging.Total)
			return nil
		},
	}
	addListFlags(command)
	command.Flags().Bool("csv", false, "Emit CSV instead of a table")
	return command
}

func newTenantsCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "tenants",
		Short: "List tenants, optionally scoped to one organization",
		RunE: func(cmd *cobra.Command, arguments []string) error {
			client, clientErr := buildClient(cmd.Context())
			if clientErr != nil {
				return clientErr
			}
			organizationID, _ := cmd.Flags().GetString("org")
			tenants, paging, listErr := admin.NewTenants(client).List(cmd.Context(), organizationID, listOptionsFromFlags(cmd))
			if listErr != nil {
				return listErr
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tORG\tNAME\tPHONE\tUNIT\tSTATUS\tDUE")
			for _, tenant := range tenants {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n", tenant.ID, tenant.OrganizationID, tenant.Name, tenant.Phone, tenant.Unit, tenant.Status, tenant.MonthlyDue)
			}
			if err := writer.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d total\n", paging.Page, paging.Total)
			return nil
		},
	}
	addListFlags(command)
	command.Flags().String("org", "", "Organization ID filter")
	return command
}

func newRemindersCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "reminders",
		Short: "List payment reminders",
		RunE: func(cmd *cobra.Command, arguments []string) error {
			client, clientErr := buildClient(cmd.Context())
			if clientErr != nil {
				return clientErr
			}
			reminders, paging, listErr := admin.NewReminders(client).List(cmd.Context(), listOptionsFromFlags(cmd))
			if listErr != nil {
				return listErr
			}

			if asCSV, _ := cmd.Flags().GetBool("csv"); asCSV {
				return admin.WriteRemindersCSV(cmd.OutOrStdout(), reminders)
			}
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tTENANT\tCHANNEL\tSTATUS\tMESSAGE")
			for _, reminder := range reminders {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n", reminder.ID, reminder.TenantID, reminder.Channel, reminder.Status, reminder.Message)
			}
			if err := writer.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d total\n", paging.Page, paging.Total)
			return nil
		},
	}
	addListFlags(command)
	command.Flags().Bool("csv", false, "Emit CSV instead of a table")
	command.AddCommand(newRemindersSendCommand())
	return command
}

func newRemindersSendCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "send",
		Short: "Queue a payment reminder for a tenant",
		RunE: func(cmd *cobra.Command, arguments []string) error {
			client, clientErr := buildClient(cmd.Context())
			if clientErr != nil {
				return clientErr
			}
			tenantID, _ := cmd.Flags().GetString("tenant")
			channel, _ := cmd.Flags().GetString("channel")
			message, _ := cmd.Flags().GetString("message")

			reminder, sendErr := admin.NewReminders(client).Send(cmd.Context(), admin.SendReminderInput{
				TenantID: tenantID,
				Channel:  channel,
				Message:  message,
			})
			if sendErr != nil {
				return sendErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued reminder %s for tenant %s\n", reminder.ID, reminder.TenantID)
			return nil
		},
	}
	command.Flags().String("tenant", "", "Tenant ID to remind")
	command.Flags().String("channel", "SMS", "Delivery channel")
	command.Flags().String("message", "", "Reminder message")
	return command
}

func newAuditCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "audit",
		Short: "List audit trail entries",
		RunE: func(cmd *cobra.Command, arguments []string) error {
			filter, filterErr := auditFilterFromFlags(cmd)
			if filterErr != nil {
				return filterErr
			}
			client, clientErr := buildClient(cmd.Context())
			if clientErr != nil {
				return clientErr
			}
			entries, paging, listErr := admin.NewAudit(client).List(cmd.Context(), filter, listOptionsFromFlags(cmd))
			if listErr != nil {
				return listErr
			}

			if asCSV, _ := cmd.Flags().GetBool("csv"); asCSV {
				return admin.WriteAuditCSV(cmd.OutOrStdout(), entries)
			}
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tACTOR\tACTION\tRESOURCE\tWHEN")
			for _, entry := range entries {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s/%s\t%s\n", entry.ID, entry.ActorID, entry.Action, entry.Resource, entry.ResourceID, entry.CreatedAt.Format(time.RFC3339))
			}
			if err := writer.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d total\n", paging.Page, paging.Total)
			return nil
		},
	}
	addListFlags(command)
	command.Flags().String("actor", "", "Actor ID filter")
	command.Flags().String("action", "", "Action filter")
	command.Flags().String("from", "", "Range start (RFC3339)")
	command.Flags().String("to", "", "Range end (RFC3339)")
	command.Flags().Bool("csv", false, "Emit CSV instead of a table")
	return command
}

func auditFilterFromFlags(cmd *cobra.Command) (admin.AuditFilter, error) {
	filter := admin.AuditFilter{}
	filter.ActorID, _ = cmd.Flags().GetString("actor")
	filter.Action, _ = cmd.Flags().GetString("action")

	if fromRaw, _ := cmd.Flags().GetString("from"); fromRaw != "" {
		from, parseErr := time.Parse(time.RFC3339, fromRaw)
		if parseErr != nil {
			return admin.AuditFilter{}, configError("config.invalid_from", "from must be an RFC3339 timestamp")
		}
		filter.From = from
	}
	if toRaw, _ := cmd.Flags().GetString("to"); toRaw != "" {
		to, parseErr := time.Parse(time.RFC3339, toRaw)
		if parseErr != nil {
			return admin.AuditFilter{}, configError("config.invalid_to", "to must be an RFC3339 timestamp")
		}
		filter.To = to
	}
	return filter, nil
}

func newRedistributeCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "redistribute",
		Short: "Run a balance redistribution for an organization",
		RunE: func(cmd *cobra.Command, arguments []string) error {
			client, clientErr := buildClient(cmd.Context())
			if clientErr != nil {
				return clientErr
			}
			service := admin.NewRedistribution(client)

			if showHistory, _ := cmd.Flags().GetBool("history"); showHistory {
				organizationID, _ := cmd.Flags().GetString("org")
				runs, _, historyErr := service.History(cmd.Context(), organizationID, admin.ListOptions{})
				if historyErr != nil {
					return historyErr
				}
				writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(writer, "ID\tORG\tMOVED\tTENANTS\tDRY\tEXECUTED")
				for _, run := range runs {
					fmt.Fprintf(writer, "%s\t%s\t%d\t%d\t%t\t%s\n", run.ID, run.OrganizationID, run.MovedAmount, run.AffectedTenants, run.DryRun, run.ExecutedAt.Format(time.RFC3339))
				}
				return writer.Flush()
			}

			organizationID, _ := cmd.Flags().GetString("org")
			dryRun, _ := cmd.Flags().GetBool("dry_run")
			result, runErr := service.Run(cmd.Context(), admin.RedistributionInput{OrganizationID: organizationID, DryRun: dryRun})
			if runErr != nil {
				return runErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s moved %d across %d tenants (dry_run=%t)\n", result.ID, result.MovedAmount, result.AffectedTenants, result.DryRun)
			return nil
		},
	}
	command.Flags().String("org", "", "Organization ID")
	command.Flags().Bool("dry_run", false, "Preview without applying")
	command.Flags().Bool("history", false, "Show past runs instead of executing")
	return command
}
