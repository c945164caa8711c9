package audit

import (
	"github.com/smallbiznis/feeledger/internal/audit/repository"
	"github.com/smallbiznis/feeledger/internal/audit/service"
	"go.uber.org/fx"
)

// Module records fee writes and serves the audit log listing.
var Module = fx.Module("audit",
	fx.Provide(
		repository.NewRepository,
		service.NewService,
	),
)
