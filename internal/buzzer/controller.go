package buzzer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"coldwatch/internal/config"
)

// Controller derives the buzzer's desired logical state from the alert
// store and mute controller and drives the 1 Hz blink pattern described
// in §4.2. It never holds the store's mutex while performing GPIO I/O,
// avoiding priority inversion (§5).
type Controller struct {
	driver *Driver
	store  IsEmptyFunc
	muted  MutedFunc
	cfg    *config.Manager
	logger *slog.Logger

	blinkOn  bool
	offSent  bool
	sounding atomic.Bool
}

// IsEmptyFunc and MutedFunc decouple the controller from the concrete
// alerts/mute package types so it only depends on the two booleans it
// actually needs, avoiding a store<->buzzer import cycle (§9).
type IsEmptyFunc func() bool
type MutedFunc func() bool

// NewController wires the controller to its collaborators. isEmpty and
// muted are typically store.IsEmpty and a closure over the mute
// controller's Status().Muted.
func NewController(driver *Driver, isEmpty IsEmptyFunc, muted MutedFunc, cfg *config.Manager, logger *slog.Logger) *Controller {
	return &Controller{driver: driver, store: isEmpty, muted: muted, cfg: cfg, logger: logger}
}

// Run executes the 1 Hz controller loop until ctx is done, at which point
// it forces the line off unconditionally and returns.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.forceOff()
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Controller) tick(ctx context.Context) {
	empty := c.store()
	muted := c.muted()
	disabled := c.driver.Disabled()
	enabled := true
	if c.cfg != nil {
		enabled = c.cfg.Get().BuzzerEnabled
	}

	sounding := !empty && !muted && !disabled && enabled
	c.sounding.Store(sounding)

	if !sounding {
		c.blinkOn = false
		if !c.offSent {
			if err := c.driver.Off(ctx); err != nil && c.logger != nil {
				c.logger.Warn("buzzer off failed", "err", err)
			}
			c.offSent = true
		}
		return
	}

	c.offSent = false
	c.blinkOn = !c.blinkOn
	var err error
	if c.blinkOn {
		err = c.driver.On(ctx)
	} else {
		err = c.driver.Off(ctx)
	}
	if err != nil && c.logger != nil {
		c.logger.Warn("buzzer blink step failed", "err", err, "level_requested", c.blinkOn)
	}
}

// Sounding reports the controller's last-computed desired state, for
// metrics export.
func (c *Controller) Sounding() bool {
	return c.sounding.Load()
}

func (c *Controller) forceOff() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := c.driver.Off(ctx); err != nil && c.logger != nil {
		c.logger.Warn("buzzer force-off on shutdown failed", "err", err)
	}
}
