package invoice

import (
	"github.com/smallbiznis/settlekit/internal/invoice/render"
	"github.com/smallbiznis/settlekit/internal/invoice/repository"
	"github.com/smallbiznis/settlekit/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(render.NewRenderer),
	fx.Provide(service.NewEmailNotifier),
	fx.Provide(service.NewService),
)
