package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts wall time so cycle boundaries can be tested.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystemClock returns a Clock backed by time.Now in UTC.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
