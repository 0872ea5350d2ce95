package buzzer

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// DefaultPin is the header pin the buzzer is wired to
const DefaultPin = "GPIO17"

// Output is the part of a GPIO pin the server drives
type Output interface {
	Out(l gpio.Level) error
}

// OpenPin initialises the host drivers and resolves the pin by name
func OpenPin(name string) (gpio.PinIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init gpio host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("no gpio pin found for %q", name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("set %s low: %w", name, err)
	}
	return pin, nil
}
