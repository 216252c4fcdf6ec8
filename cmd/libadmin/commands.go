package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-admin/internal/apiserver/auth"
	"library-admin/internal/apiserver/user"
	"library-admin/internal/config"
	"library-admin/internal/shared/model"
	"library-admin/internal/shared/storage"
	"library-admin/internal/shared/storage/dbutil"
	"library-admin/internal/shared/storage/factory"
)

// openStoreFunc 测试中替换为内存库
var openStoreFunc = openStore

func openStore() (storage.PersistentStore, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	store, err := factory.NewPersistentStore(dbutil.DriverType(cfg.DatabaseDriver), cfg.DatabaseURL, cfg.DatabaseDBName)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.DatabaseDriver, err)
	}
	return store, cfg, nil
}

// readPasswordFunc 测试中替换
var readPasswordFunc = readPassword

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func newRootCmd() *cobra.Command {
	var configDir string
	root := &cobra.Command{
		Use:           "libadmin",
		Short:         "Library admin operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configDir != "" {
				config.SetConfigDir(configDir)
			}
		},
	}
	root.PersistentFlags().StringVar(&configDir, "config", "", "directory containing {env}.yaml")
	root.AddCommand(newMigrateCmd(), newCreateAdminCmd(), newUsersCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			// 打开存储时自动建表
			store, cfg, err := openStoreFunc()
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.DatabaseDriver)
			return nil
		},
	}
}

func newCreateAdminCmd() *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the admin account if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := openStoreFunc()
			if err != nil {
				return err
			}
			defer store.Close()

			if username == "" {
				username = cfg.Auth.AdminUsername
			}
			if email == "" {
				email = cfg.Auth.AdminEmail
			}
			if password == "" {
				password = cfg.Auth.AdminPassword
			}
			if password == "" {
				if password, err = readPasswordFunc("Admin password: "); err != nil {
					return err
				}
			}
			if len(password) < auth.MinPasswordLen {
				return fmt.Errorf("password must be at least %d characters", auth.MinPasswordLen)
			}

			u, err := auth.EnsureAdminUser(cmd.Context(), store, username, email, password)
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("admin username is required")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s (%s) role=%s\n", u.Username, u.ID, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username (default ADMIN_USERNAME)")
	cmd.Flags().StringVar(&email, "email", "", "admin email (default ADMIN_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "admin password (default ADMIN_PASSWORD, prompt when empty)")
	return cmd
}

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage login accounts",
	}
	cmd.AddCommand(newUsersListCmd(), newUsersAddCmd())
	return cmd
}

func newUsersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStoreFunc()
			if err != nil {
				return err
			}
			defer store.Close()

			users, err := store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			return printUsers(cmd.OutOrStdout(), users)
		},
	}
}

func newUsersAddCmd() *cobra.Command {
	var in user.NewUser
	var role string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStoreFunc()
			if err != nil {
				return err
			}
			defer store.Close()

			in.Role = model.UserRole(strings.ToLower(role))
			if in.Password == "" {
				if in.Password, err = readPasswordFunc("Password: "); err != nil {
					return err
				}
			}
			u, err := user.Create(cmd.Context(), store, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) role=%s\n", u.Username, u.ID, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "login name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (prompt when empty)")
	cmd.Flags().StringVar(&role, "role", string(model.UserRoleStudent), "admin, librarian or student")
	cmd.MarkFlagRequired("username")
	return cmd
}

func printUsers(w io.Writer, users []*model.User) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tROLE\tEMAIL\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Role, u.Email, u.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}
