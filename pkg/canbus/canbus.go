// Package canbus is the transport abstraction the compatibility layer
// forwards to. It exposes the narrow surface the legacy driver needs: open,
// start with a named bitrate, stop, read/write with millisecond timeouts, a
// controller status byte and generic property access keyed by numeric ids.
package canbus

import (
	"context"
	"errors"

	"github.com/aviax8/controlcan/pkg/btr"
)

var (
	ErrTxBusy       = errors.New("transmit queue busy")
	ErrRxEmpty      = errors.New("receive queue empty")
	ErrOffline      = errors.New("controller offline")
	ErrNotSupported = errors.New("not supported")
	ErrClosed       = errors.New("bus closed")
)

// Controller status byte bits.
const (
	StatusTxFull     byte = 0x08
	StatusRxOverrun  byte = 0x10
	StatusErrWarning byte = 0x20
	StatusErrPassive byte = 0x40
	StatusBusOff     byte = 0x80
)

// Property ids for Bus.GetProperty / Bus.SetProperty.
const (
	PropDeviceName      uint16 = 0x0001
	PropSerialNumber    uint16 = 0x0002
	PropFirmwareVersion uint16 = 0x0003
	PropTimestamping    uint16 = 0x0004
	PropRxQueueLevel    uint16 = 0x0010
)

// Frame is a classic CAN 2.0 frame, up to 8 data bytes.
type Frame struct {
	ID       uint32
	Extended bool
	Remote   bool
	Data     []byte
}

func (f *Frame) Length() int {
	return len(f.Data)
}

// Bus is one CAN channel. Read timeout semantics: negative blocks until a
// frame arrives or the bus closes, zero polls, positive waits that many
// milliseconds before returning ErrRxEmpty.
type Bus interface {
	Open(ctx context.Context) error
	Start(rate btr.Rate) error
	Stop() error
	Write(f *Frame) error
	Read(timeoutMS int) (*Frame, error)
	Status() (byte, error)
	GetProperty(id uint16, buf []byte) error
	SetProperty(id uint16, data []byte) error
	Close() error
}
