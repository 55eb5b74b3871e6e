// Package buzzer implements the GPIO-backed acoustic annunciator: a narrow
// on()/off() driver with a consecutive-failure budget, and a 1 Hz
// controller that derives the desired state from the alert store and mute
// controller.
//
// The driver shells out to the libgpiod command-line tools (gpiofind,
// gpioset) rather than linking a GPIO library — there is no Go GPIO
// library in the dependency set this repo draws from, and shelling out is
// exactly how the original hardware integration this backend replaces
// drives the same line.
package buzzer

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

const (
	gpioLineName = "BUZZER_EN"

	// FailureLimit is the consecutive-failure budget: on the fifth
	// failure in a row the driver latches disabled for the process
	// lifetime.
	FailureLimit = 5
)

// Line identifies an acquired libgpiod chip+line pair.
type Line struct {
	Chip string
	Name string
}

// Driver owns a single GPIO line. It is never shared — only the Controller
// calls on()/off().
type Driver struct {
	mu   sync.Mutex
	line *Line

	failures int
	disabled bool

	logger  *slog.Logger
	runCmd  func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewDriver returns a Driver that has not yet acquired a line; the first
// on()/off() call triggers acquisition via gpiofind.
func NewDriver(logger *slog.Logger) *Driver {
	return &Driver{
		logger: logger,
		runCmd: runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}

// On drives the line high.
func (d *Driver) On(ctx context.Context) error {
	return d.set(ctx, 1)
}

// Off drives the line low.
func (d *Driver) Off(ctx context.Context) error {
	return d.set(ctx, 0)
}

// Disabled reports whether the fault budget has been exhausted.
func (d *Driver) Disabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disabled
}

// FailureCount returns the current consecutive-failure count, for tests
// and diagnostics.
func (d *Driver) FailureCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failures
}

func (d *Driver) set(ctx context.Context, level int) error {
	d.mu.Lock()
	if d.disabled {
		d.mu.Unlock()
		return errDisabled
	}
	line := d.line
	d.mu.Unlock()

	if line == nil {
		acquired, err := d.acquire(ctx)
		if err != nil {
			d.recordFailure(err)
			return err
		}
		line = acquired
	}

	_, err := d.runCmd(ctx, "gpioset", line.Chip, line.Name+"="+itoa(level))
	if err != nil {
		d.invalidateLine()
		d.recordFailure(err)
		return err
	}
	d.recordSuccess()
	return nil
}

// acquire resolves the chip+line pair via gpiofind and caches it. A cache
// miss (nil d.line) attempts acquisition exactly once per call.
func (d *Driver) acquire(ctx context.Context) (*Line, error) {
	out, err := d.runCmd(ctx, "gpiofind", gpioLineName)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(string(out))
	if len(fields) < 2 {
		return nil, errBadGpiofindOutput
	}
	line := &Line{Chip: fields[0], Name: fields[1]}
	d.mu.Lock()
	d.line = line
	d.mu.Unlock()
	return line, nil
}

func (d *Driver) invalidateLine() {
	d.mu.Lock()
	d.line = nil
	d.mu.Unlock()
}

func (d *Driver) recordFailure(err error) {
	d.mu.Lock()
	d.failures++
	disabledNow := false
	if d.failures >= FailureLimit && !d.disabled {
		d.disabled = true
		disabledNow = true
	}
	d.mu.Unlock()

	if d.logger != nil {
		d.logger.Warn("gpio operation failed", "err", err)
		if disabledNow {
			d.logger.Error("gpio fault budget exhausted, buzzer disabled for process lifetime")
		}
	}
}

func (d *Driver) recordSuccess() {
	d.mu.Lock()
	d.failures = 0
	d.mu.Unlock()
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	return "1"
}
