// ABOUTME: User CLI commands
// ABOUTME: Lists users and grants roles and modules by email
package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/harperreed/taxdesk/models"
	"github.com/spf13/cobra"
)

func (a *app) usersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage staff permissions",
	}
	cmd.AddCommand(a.usersListCommand(), a.usersGrantCommand())
	return cmd
}

func (a *app) usersListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users and their permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			users, err := e.repos.Users.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tROLE\tMODULES")
			fmt.Fprintln(w, "--\t-----\t----\t-------")
			for _, u := range users {
				role, modules := models.RoleClient, "-"
				if p, err := e.repos.Users.GetPermissions(cmd.Context(), u.ID); err == nil {
					role = p.Role
					if len(p.Modules) > 0 {
						modules = strings.Join(p.Modules, ",")
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Email, role, modules)
			}
			return w.Flush()
		},
	}
}

func (a *app) usersGrantCommand() *cobra.Command {
	var role string
	var modules []string
	cmd := &cobra.Command{
		Use:   "grant <email>",
		Short: "Set a user's role and modules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			user, err := e.repos.Users.FindByEmail(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("user must sign in once before being granted access: %w", err)
			}

			normalized := make([]string, 0, len(modules))
			for _, m := range modules {
				if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
					normalized = append(normalized, m)
				}
			}
			perms := &models.UserPermissions{
				UserID:    user.ID,
				Role:      strings.ToLower(strings.TrimSpace(role)),
				Modules:   normalized,
				UpdatedAt: time.Now().UTC(),
				UpdatedBy: cliAuthor,
			}
			if err := e.repos.Users.PutPermissions(cmd.Context(), perms); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is now %s", user.Email, perms.Role)
			if len(perms.Modules) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), " (%s)", strings.Join(perms.Modules, ", "))
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", models.RoleStaff, "Role (admin, staff, client)")
	cmd.Flags().StringSliceVar(&modules, "modules", nil, "Modules to grant (crm, invoices, users)")
	return cmd
}
