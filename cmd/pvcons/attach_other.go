//go:build !linux

package main

import (
	"fmt"
	"runtime"

	"github.com/protoben/pvcons/internal/console"
)

func attachReal(cfg *config) (*console.Console, error) {
	return nil, fmt.Errorf("real console attachment is not supported on %s; use -loopback", runtime.GOOS)
}
