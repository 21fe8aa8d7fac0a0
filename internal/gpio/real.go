//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealWriter drives relays on actual hardware using the Linux GPIO character device.
type RealWriter struct {
	chip  *gpiocdev.Chip
	lines map[Actuator]*gpiocdev.Line
}

// NewRealWriter requests every pin as an output, initially off.
func NewRealWriter(pins Pins) (*RealWriter, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	w := &RealWriter{chip: chip, lines: make(map[Actuator]*gpiocdev.Line, len(Actuators))}
	for _, a := range Actuators {
		pin, _ := pins.pin(a)
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", a, pin, err)
		}
		w.lines[a] = line
	}
	return w, nil
}

// Set drives the actuator's pin high for on, low for off.
func (w *RealWriter) Set(a Actuator, on bool) error {
	line, ok := w.lines[a]
	if !ok {
		return fmt.Errorf("unknown actuator %q", a)
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("set %s: %w", a, err)
	}
	return nil
}

// Close switches every relay off, returns the pins to input with pull-down
// (the Pi boot default), and closes the chip.
func (w *RealWriter) Close() error {
	var errs []error

	for _, a := range Actuators {
		line := w.lines[a]
		if line == nil {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("switch off %s: %w", a, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", a, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", a, err))
		}
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
