package creditledger

import (
	"github.com/smallbiznis/creditledger/internal/creditledger/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("creditledger.repository",
	fx.Provide(repository.Provide),
)
