package fee

import (
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/fee/repository"
	"github.com/smallbiznis/feeledger/internal/fee/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fee.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.New),
	fx.Provide(
		func(s *service.Service) feedomain.Service { return s },
		func(s *service.Service) feedomain.PaymentService { return s },
		func(s *service.Service) feedomain.DiscountService { return s },
		func(s *service.Service) feedomain.StructureService { return s },
		func(s *service.Service) feedomain.DocumentService { return s },
	),
)
