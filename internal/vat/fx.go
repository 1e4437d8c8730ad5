package vat

import (
	"github.com/smallbiznis/settlekit/internal/vat/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vat.service",
	fx.Provide(service.NewCalculator),
)
