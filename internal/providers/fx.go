package providers

import (
	"github.com/smallbiznis/settlekit/internal/providers/email"
	"github.com/smallbiznis/settlekit/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
