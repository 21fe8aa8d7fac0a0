// Package gpio drives the relay outputs of a locally wired plant.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Actuator identifies one relay output.
type Actuator string

const (
	Pump  Actuator = "pump"
	Fan   Actuator = "fan"
	Light Actuator = "light"
)

// Actuators lists every output in a fixed order.
var Actuators = []Actuator{Pump, Fan, Light}

// Writer sets relay outputs.
type Writer interface {
	// Set switches the actuator on or off. Relays are active-high.
	Set(a Actuator, on bool) error

	// Close switches every output off and releases GPIO resources.
	Close() error
}

// Pins maps actuators to BCM pin numbers.
type Pins struct {
	Pump  int
	Fan   int
	Light int
}

// Default pin assignments (BCM numbering)
const (
	DefaultPinPump  = 17
	DefaultPinFan   = 27
	DefaultPinLight = 22
)

// DefaultPins returns the default pin assignments.
func DefaultPins() Pins {
	return Pins{Pump: DefaultPinPump, Fan: DefaultPinFan, Light: DefaultPinLight}
}

func (p Pins) pin(a Actuator) (int, bool) {
	switch a {
	case Pump:
		return p.Pump, true
	case Fan:
		return p.Fan, true
	case Light:
		return p.Light, true
	}
	return 0, false
}
