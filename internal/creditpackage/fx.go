package creditpackage

import (
	"github.com/smallbiznis/creditledger/internal/creditpackage/repository"
	"github.com/smallbiznis/creditledger/internal/creditpackage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("creditpackage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
