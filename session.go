package controlcan

import (
	"os"
	"sync"

	"github.com/aviax8/controlcan/pkg/btr"
	"github.com/aviax8/controlcan/pkg/canbus"
)

// EnvSerialPort overrides the serial port the transport opens.
const EnvSerialPort = "CONTROLCAN_SLCAN_PORT"

// UART speed of the SLCAN adapter. CANable firmware ignores the host side
// setting, classic Lawicel hardware ships at 57600.
const defaultBaudrate = 57600

// session owns the one underlying bus handle the legacy surface allows.
// Open creates it, Close tears it down. rate is kept so ClearBuffer and
// StartCAN can (re)start the controller without the caller re-supplying
// timing.
type session struct {
	bus     canbus.Bus
	rate    btr.Rate
	started bool

	// serializes Receive, the only call the vendor API allows concurrently
	rxMu sync.Mutex
}

// One device at a time, like the vendor driver. The DeviceType/DeviceIndex
// arguments on the exported calls are accepted and logged but all map to
// this session.
var active *session

// newBus is a hook for tests to stand in a fake transport.
var newBus = func(port string, baudrate int) canbus.Bus {
	return canbus.NewSLCAN(port, baudrate)
}

func serialPort() string {
	if p := os.Getenv(EnvSerialPort); p != "" {
		return p
	}
	return defaultSerialPort
}
