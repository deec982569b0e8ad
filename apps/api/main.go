package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditledger/internal/audit"
	"github.com/smallbiznis/creditledger/internal/billingcycle"
	"github.com/smallbiznis/creditledger/internal/clock"
	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/smallbiznis/creditledger/internal/credit"
	"github.com/smallbiznis/creditledger/internal/creditledger"
	"github.com/smallbiznis/creditledger/internal/creditpackage"
	"github.com/smallbiznis/creditledger/internal/creditrate"
	"github.com/smallbiznis/creditledger/internal/observability"
	"github.com/smallbiznis/creditledger/internal/ratelimit"
	"github.com/smallbiznis/creditledger/internal/server"
	"github.com/smallbiznis/creditledger/internal/tier"
	"github.com/smallbiznis/creditledger/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Per-user usage throttling
		ratelimit.Module,

		audit.Module,
		tier.Module,
		creditrate.Module,
		creditledger.Module,
		billingcycle.Module,
		credit.Module,
		creditpackage.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
