// Package mute implements the timed suppression flag for the buzzer: a
// single Active/Inactive state with auto-expiry, force-cleared whenever
// the alert store gains an alert id it did not already hold.
package mute

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"coldwatch/internal/events"
	"coldwatch/internal/model"
)

// Controller is the M1/M2 state machine from the data model: Inactive, or
// Active with an absolute expiry instant.
type Controller struct {
	mu        sync.Mutex
	active    bool
	expiresAt time.Time

	defaultDuration time.Duration
	bus             *events.Bus
	logger          *slog.Logger
}

// New returns an Inactive controller. defaultDuration is used by Toggle
// when activating and is the config.mute_duration value (default 600s).
func New(defaultDuration time.Duration, bus *events.Bus, logger *slog.Logger) *Controller {
	if defaultDuration <= 0 {
		defaultDuration = 600 * time.Second
	}
	return &Controller{defaultDuration: defaultDuration, bus: bus, logger: logger}
}

// Status returns the current mute state for get_mute_status.
func (c *Controller) Status() model.MuteStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() model.MuteStatus {
	if !c.active {
		return model.MuteStatus{Muted: false}
	}
	exp := c.expiresAt
	return model.MuteStatus{Muted: true, ExpiresAt: &exp}
}

// Toggle flips Inactive<->Active and returns the new status. Activating
// sets expires_at to now+defaultDuration; deactivating clears it.
func (c *Controller) Toggle() model.MuteStatus {
	c.mu.Lock()
	if c.active {
		c.active = false
		c.expiresAt = time.Time{}
	} else {
		c.active = true
		c.expiresAt = time.Now().Add(c.defaultDuration)
	}
	status := c.statusLocked()
	c.mu.Unlock()

	c.emitChanged(status)
	return status
}

// ForceClear is the store's one-way notification hook (I2/M2): called on
// every upsert that introduces an id not already in the store. It is
// idempotent — clearing an already-inactive mute is a no-op, no event.
func (c *Controller) ForceClear() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.expiresAt = time.Time{}
	status := c.statusLocked()
	c.mu.Unlock()

	c.emitChanged(status)
}

// Run ticks at least once a second, transitioning Active->Inactive once
// now >= expires_at (M1: an expired Active is illegal and is corrected
// immediately). It returns when ctx is done.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Controller) tick() {
	c.mu.Lock()
	if !c.active || time.Now().Before(c.expiresAt) {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.expiresAt = time.Time{}
	status := c.statusLocked()
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info("mute auto-expired")
	}
	c.emitChanged(status)
}

func (c *Controller) emitChanged(status model.MuteStatus) {
	if c.bus != nil {
		c.bus.Emit("alerts://mute_changed", status)
	}
}
