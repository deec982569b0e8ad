package creditrate

import (
	"github.com/smallbiznis/creditledger/internal/creditrate/repository"
	"github.com/smallbiznis/creditledger/internal/creditrate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("creditrate.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
