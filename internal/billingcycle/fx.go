package billingcycle

import (
	"github.com/smallbiznis/creditledger/internal/billingcycle/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingcycle.manager",
	fx.Provide(service.NewManager),
)
