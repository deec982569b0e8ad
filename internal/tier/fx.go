package tier

import (
	"github.com/smallbiznis/creditledger/internal/tier/repository"
	"github.com/smallbiznis/creditledger/internal/tier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tier.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
