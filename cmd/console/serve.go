package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/console/internal/appinfo"
	"github.com/smallbiznis/console/internal/auth"
	"github.com/smallbiznis/console/internal/cache"
	"github.com/smallbiznis/console/internal/config"
	"github.com/smallbiznis/console/internal/edition"
	"github.com/smallbiznis/console/internal/observability"
	"github.com/smallbiznis/console/internal/permission"
	"github.com/smallbiznis/console/internal/ratelimit"
	"github.com/smallbiznis/console/internal/rbac"
	"github.com/smallbiznis/console/internal/server"
	"github.com/smallbiznis/console/internal/settingsmenu"
	"github.com/smallbiznis/console/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(serverModules())
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		rbac.Module,
	)
}

func serverModules() fx.Option {
	return fx.Options(
		coreModules(),
		edition.Module,
		auth.Module,
		cache.Module,
		ratelimit.Module,
		permission.Module,
		appinfo.Module,
		settingsmenu.Module,
		server.Module,
	)
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
