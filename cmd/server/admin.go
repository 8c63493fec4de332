package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"serverPortal/internal/auth"
	"serverPortal/internal/config"
	"serverPortal/internal/db"
	"serverPortal/internal/seed"
	"serverPortal/models"
	"serverPortal/repository"
)

const commandTimeout = 2 * time.Minute

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			// Open applies pending migrations itself.
			bdb, err := e.openDB()
			if err != nil {
				return err
			}
			defer e.close(bdb)
			versions, err := db.AppliedVersions(cmd.Context(), bdb)
			if err != nil {
				return err
			}
			e.logger.Info("schema up to date", zap.Ints("versions", versions))
			return nil
		},
	}, &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			bdb, err := e.openDB()
			if err != nil {
				return err
			}
			defer e.close(bdb)
			if err := db.RollbackLast(cmd.Context(), bdb); err != nil {
				return fmt.Errorf("rollback: %w", err)
			}
			versions, err := db.AppliedVersions(cmd.Context(), bdb)
			if err != nil {
				return err
			}
			e.logger.Info("rolled back one migration", zap.Ints("remaining", versions))
			return nil
		},
	})
	return cmd
}

func newSeedCmd() *cobra.Command {
	var dir string
	var exclude []string
	cmd := &cobra.Command{
		Use:   "seed-content",
		Short: "Import static HTML pages into the content store",
		Long: `Reads every *.html file in --dir and stores it as an editable page named
after the file. Existing pages are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = e.cfg.HTTP.StaticDir
			}
			if dir == "" {
				return errors.New("seed-content: --dir or http.static_dir is required")
			}
			bdb, err := e.openDB()
			if err != nil {
				return err
			}
			defer e.close(bdb)

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			s := &seed.Seeder{
				Pages:   repository.NewContentRepository(bdb),
				Logger:  e.logger,
				Exclude: exclude,
			}
			res, err := s.Run(ctx, dir)
			if err != nil {
				return err
			}
			e.logger.Info("content seeding finished",
				zap.Int("created", res.Created),
				zap.Int("skipped", res.Skipped),
				zap.Int("failed", res.Failed))
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, skipped %d, failed %d\n", res.Created, res.Skipped, res.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Directory with HTML pages (defaults to http.static_dir)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", seed.DefaultExclude, "File names to leave out")
	return cmd
}

func newCreateAdminCmd() *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account, or promote an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			bdb, err := e.openDB()
			if err != nil {
				return err
			}
			defer e.close(bdb)

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			u, created, err := ensureAdmin(ctx, repository.NewUserRepository(bdb), username, email, password)
			if err != nil {
				return err
			}
			verb := "promoted"
			if created {
				verb = "created"
			}
			e.logger.Info("admin account ready", zap.String("action", verb), zap.Int64("user_id", u.ID))
			fmt.Fprintf(cmd.OutOrStdout(), "%s admin %s (id %d)\n", verb, u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Account username (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email for a new account")
	cmd.Flags().StringVar(&password, "password", "", "Password for a new account")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// ensureAdmin promotes username when it exists, otherwise creates it as admin.
func ensureAdmin(ctx context.Context, users repository.UserRepositoryI, username, email, password string) (*models.User, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, false, errors.New("username is required")
	}
	u, err := users.GetByUsername(ctx, username)
	if err != nil {
		return nil, false, err
	}
	if u != nil {
		if u.Role != models.RoleAdmin {
			if err := users.UpdateRole(ctx, u.ID, models.RoleAdmin); err != nil {
				return nil, false, err
			}
			u.Role = models.RoleAdmin
		}
		return u, false, nil
	}

	email = strings.TrimSpace(email)
	if email == "" || len(password) < 6 || len(password) > auth.MaxPasswordBytes {
		return nil, false, fmt.Errorf("a new admin needs --email and a --password of 6 to %d bytes", auth.MaxPasswordBytes)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, false, err
	}
	u, err = users.Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	})
	if errors.Is(err, db.ErrDuplicate) {
		return nil, false, fmt.Errorf("email %s is already taken", email)
	}
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	})
	var path string
	write := &cobra.Command{
		Use:   "write",
		Short: "Write the effective configuration as YAML (without the JWT secret)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.WriteFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	write.Flags().StringVar(&path, "path", config.DefaultFile, "Destination file")
	cmd.AddCommand(write)
	return cmd
}
