package sellertier

import (
	"github.com/smallbiznis/settlekit/internal/sellertier/repository"
	"github.com/smallbiznis/settlekit/internal/sellertier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sellertier.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
