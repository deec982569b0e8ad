package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditledger/internal/billingcycle"
	"github.com/smallbiznis/creditledger/internal/clock"
	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/smallbiznis/creditledger/internal/credit"
	"github.com/smallbiznis/creditledger/internal/creditledger"
	"github.com/smallbiznis/creditledger/internal/creditrate"
	"github.com/smallbiznis/creditledger/internal/observability"
	"github.com/smallbiznis/creditledger/internal/ratelimit"
	"github.com/smallbiznis/creditledger/internal/scheduler"
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

		// Leader lock across replicas
		ratelimit.Module,

		// Domain services required by scheduler
		tier.Module,
		creditrate.Module,
		creditledger.Module,
		billingcycle.Module,
		credit.Module,

		// No server module!
		scheduler.Module,
		fx.Invoke(scheduler.Run),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
