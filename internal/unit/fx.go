package unit

import (
	"github.com/smallbiznis/societybill/internal/unit/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("unit.directory",
	fx.Provide(repository.Provide),
)
