package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newSeedCommand() *cobra.Command {
	req := rbacdomain.CreateUserRequest{}
	var roles []string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install default roles and create an admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Roles = roles

			var user *rbacdomain.AdminUser
			app := fx.New(
				coreModules(),
				fx.NopLogger,
				fx.Invoke(func(svc rbacdomain.Service, log *zap.Logger) error {
					ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()

					created, err := svc.CreateUser(ctx, req)
					if errors.Is(err, rbacdomain.ErrUserExists) {
						log.Info("admin user already exists", zap.String("email", req.Email))
						return nil
					}
					if err != nil {
						return err
					}
					user = created
					return nil
				}),
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = app.Stop(ctx) }()

			if user != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "created admin user %s (%s)\n", user.ID, user.Email)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Email, "email", "admin@example.com", "Admin user email")
	flags.StringVar(&req.Firstname, "firstname", "Admin", "Admin user first name")
	flags.StringVar(&req.Lastname, "lastname", "", "Admin user last name")
	flags.StringSliceVar(&roles, "role", []string{rbacdomain.RoleSuperAdmin}, "Roles to assign")
	return cmd
}
