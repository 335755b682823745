package iconhd

import (
	"errors"

	"github.com/william-perry/go-mares/device"
	"github.com/william-perry/go-mares/logger"
)

// Option customizes a session created by Open.
type Option interface {
	apply(*Device) error
}

type optionFunc func(*Device) error

func (f optionFunc) apply(d *Device) error {
	return f(d)
}

// WithLogger sets the logger used by the session. The default is the package
// level logger.
func WithLogger(l logger.Logger) Option {
	return optionFunc(func(d *Device) error {
		if l == nil {
			return errors.New("iconhd: logger must not be nil")
		}
		d.logger = l

		return nil
	})
}

// WithEvents registers a sink for the events emitted during transfers, such as
// progress updates and the device identification. Without a sink, events are
// discarded.
func WithEvents(events device.EventFunc) Option {
	return optionFunc(func(d *Device) error {
		if events == nil {
			return errors.New("iconhd: event sink must not be nil")
		}
		d.events = events

		return nil
	})
}
