package clock

import (
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)

// Clock abstracts the current time so billing decisions can be replayed in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
