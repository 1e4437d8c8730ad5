package rateconfig

import (
	"github.com/smallbiznis/settlekit/internal/rateconfig/domain"
	"github.com/smallbiznis/settlekit/internal/rateconfig/repository"
	"github.com/smallbiznis/settlekit/internal/rateconfig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rateconfig.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewStore),
	fx.Provide(func(s *service.Store) domain.Store { return s }),
)
