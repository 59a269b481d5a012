package maintenancerule

import (
	"github.com/smallbiznis/societybill/internal/maintenancerule/repository"
	"github.com/smallbiznis/societybill/internal/maintenancerule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("maintenancerule.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
