//go:build linux

package main

import (
	"fmt"

	"github.com/protoben/pvcons/internal/console"
	"github.com/protoben/pvcons/internal/frame"
	"github.com/protoben/pvcons/internal/port"
)

// attachReal maps the configured frame through the mapping device and wraps
// the inherited eventfds as the notification port.
func attachReal(cfg *config) (*console.Console, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("config: device is required")
	}
	if cfg.EventfdRx <= 0 || cfg.EventfdTx <= 0 {
		return nil, fmt.Errorf("config: eventfd_rx and eventfd_tx are required")
	}

	mapper, err := frame.OpenDevice(cfg.Device)
	if err != nil {
		return nil, err
	}

	notify := port.NewEventfd(cfg.EventfdRx, cfg.EventfdTx)
	return console.Init(cfg.Frame, notify, mapper)
}
