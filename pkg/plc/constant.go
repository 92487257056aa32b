package plc

import (
	"errors"
	"time"
)

const (
	// DefaultPort is the standard OPC UA binary protocol port.
	DefaultPort = 4840

	probeTimeout           = 1 * time.Second
	defaultPublishInterval = 500 * time.Millisecond
	notifyBuffer           = 16
)

var ErrNotConnected = errors.New("opc ua session is not connected")
