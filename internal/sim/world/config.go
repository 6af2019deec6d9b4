package world

import (
	"time"

	"go.uber.org/zap"

	"survival.io/internal/sim/tuning"
)

type WorldConfig struct {
	ID   string
	Seed int64

	// Tuning holds every gameplay constant. A zero value means tuning.Defaults().
	Tuning tuning.Tuning

	Logger *zap.Logger

	// Now is the wall clock used for tick dt and message timestamps.
	Now func() time.Time
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "main"
	}
	if c.Tuning.TickRateHz <= 0 {
		c.Tuning = tuning.Defaults()
	}
	if c.Tuning.MaxDtSeconds <= 0 {
		c.Tuning.MaxDtSeconds = 0.25
	}
	if c.Tuning.ClientQueue <= 0 {
		c.Tuning.ClientQueue = 8
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}
