// Package controlcan emulates the ZLG ControlCAN driver surface on top of a
// serial SLCAN adapter. The exported calls, struct layouts and status codes
// follow the vendor header; every call is forwarded to the transport in
// pkg/canbus after converting frames and bit timing to its vocabulary.
//
// The vendor API assumes a single device and mostly single threaded use.
// That contract is kept: one session at a time, and only Receive is safe to
// call concurrently with itself.
package controlcan

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go"

	"github.com/aviax8/controlcan/pkg/btr"
	"github.com/aviax8/controlcan/pkg/canbus"
	"github.com/aviax8/controlcan/pkg/trace"
)

// Bounded retry for the transport busy condition on transmit. The vendor
// driver spun forever; exhausting the attempts instead counts as a failed
// write and ends the batch.
const (
	transmitAttempts = 10
	transmitDelay    = time.Millisecond
)

// OpenDevice acquires the underlying serial bus. Opening an already open
// device succeeds without touching the hardware.
func OpenDevice(deviceType, deviceIndex, reserved uint32) uint32 {
	trace.Printf("OpenDevice: DeviceType=%d DeviceIndex=%d", deviceType, deviceIndex)

	if active != nil {
		trace.Printf("  device already open")
		return StatusOK
	}

	port := serialPort()
	trace.Printf("  serial port = %s", port)

	bus := newBus(port, defaultBaudrate)
	if err := bus.Open(context.Background()); err != nil {
		trace.Printf("  open failed: %v", err)
		return StatusErr
	}

	active = &session{
		bus:  bus,
		rate: btr.Rate250K, // default until InitCAN resolves the requested timing
	}
	return StatusOK
}

// CloseDevice stops the controller if needed, releases the bus and always
// succeeds, even with nothing open.
func CloseDevice(deviceType, deviceIndex uint32) uint32 {
	trace.Printf("CloseDevice: DeviceType=%d DeviceIndex=%d", deviceType, deviceIndex)

	if active != nil {
		if err := active.bus.Stop(); err != nil && !errors.Is(err, canbus.ErrOffline) {
			trace.Printf("  stop failed: %v", err)
		}
		if err := active.bus.Close(); err != nil {
			trace.Printf("  close failed: %v", err)
		}
	}
	active = nil
	return StatusOK
}

// InitCAN resolves the requested Timing0/Timing1 pair to a named bitrate
// and stores it for StartCAN. No hardware is touched here. An unsupported
// register pair fails and leaves the stored rate unchanged.
func InitCAN(deviceType, deviceIndex, canIndex uint32, cfg *InitConfig) uint32 {
	if cfg == nil {
		trace.Printf("InitCAN: cfg == nil")
		return StatusErr
	}

	trace.Printf("InitCAN: DeviceType=%d DeviceIndex=%d CANInd=%d AccCode=0x%08X AccMask=0x%08X Filter=%d Timing0=0x%02X Timing1=0x%02X Mode=%d",
		deviceType, deviceIndex, canIndex, cfg.AccCode, cfg.AccMask, cfg.Filter, cfg.Timing0, cfg.Timing1, cfg.Mode)

	s := active
	if s == nil {
		trace.Printf("  device not open")
		return StatusErr
	}

	rate, err := btr.Resolve(cfg.Timing0, cfg.Timing1)
	if err != nil {
		trace.Printf("  %v", err)
		return StatusErr
	}

	s.rate = rate
	trace.Printf("  timing matched rate %v", rate)
	return StatusOK
}

// StartCAN brings the controller online with the stored bitrate.
func StartCAN(deviceType, deviceIndex, canIndex uint32) uint32 {
	trace.Printf("StartCAN: DeviceType=%d DeviceIndex=%d CANInd=%d", deviceType, deviceIndex, canIndex)

	s := active
	if s == nil {
		trace.Printf("  device not open")
		return StatusErr
	}

	if err := s.bus.Start(s.rate); err != nil {
		trace.Printf("  start failed: %v", err)
		return StatusErr
	}

	s.started = true
	return StatusOK
}

// ResetCAN stops the controller. An already stopped controller is fine.
func ResetCAN(deviceType, deviceIndex, canIndex uint32) uint32 {
	trace.Printf("ResetCAN: DeviceType=%d DeviceIndex=%d CANInd=%d", deviceType, deviceIndex, canIndex)

	s := active
	if s == nil {
		return StatusErr
	}

	if err := s.bus.Stop(); err != nil && !errors.Is(err, canbus.ErrOffline) {
		trace.Printf("  stop failed: %v", err)
		return StatusErr
	}

	s.started = false
	return StatusOK
}

// Transmit writes the frames in order and returns the number written. A
// busy transport is retried with backoff; any other failure (or running out
// of retries) ends the batch. A short count is a normal outcome, not an
// error.
func Transmit(deviceType, deviceIndex, canIndex uint32, frames []CANObj) uint32 {
	trace.Printf("Transmit: DeviceType=%d DeviceIndex=%d CANInd=%d sending %d frame(s)", deviceType, deviceIndex, canIndex, len(frames))

	s := active
	if s == nil || len(frames) == 0 {
		return 0
	}

	var sent uint32
	for i := range frames {
		obj := &frames[i]
		trace.Frame("  TX:", obj.ID, obj.ExternFlag != 0, obj.RemoteFlag != 0, obj.Data[:min(int(obj.DataLen), 8)])

		f := toBus(obj)
		err := retry.Do(
			func() error { return s.bus.Write(f) },
			retry.RetryIf(func(err error) bool { return errors.Is(err, canbus.ErrTxBusy) }),
			retry.Attempts(transmitAttempts),
			retry.Delay(transmitDelay),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			trace.Printf("  write failed at frame %d: %v", i, err)
			break
		}
		sent++
	}
	return sent
}

// Receive fills frames with up to len(frames) received messages and returns
// the count. waitTime applies per read: negative blocks, zero polls,
// positive is milliseconds. Receive calls are serialized against each
// other.
func Receive(deviceType, deviceIndex, canIndex uint32, frames []CANObj, waitTime int) uint32 {
	trace.Printf("Receive: DeviceType=%d DeviceIndex=%d CANInd=%d request %d frame(s), waitTime=%d", deviceType, deviceIndex, canIndex, len(frames), waitTime)

	s := active
	if s == nil || len(frames) == 0 {
		return 0
	}

	s.rxMu.Lock()
	defer s.rxMu.Unlock()

	var received uint32
	for i := range frames {
		f, err := s.bus.Read(waitTime)
		if err != nil {
			if !errors.Is(err, canbus.ErrRxEmpty) {
				trace.Printf("  read error: %v", err)
			}
			break
		}
		fromBus(f, &frames[i])
		trace.Frame("  RX:", f.ID, f.Extended, f.Remote, f.Data)
		received++
	}
	return received
}

// ClearBuffer resets the controller and, if it was running, restarts it
// with the last stored bitrate so the caller sees an unchanged controller
// state with empty queues.
func ClearBuffer(deviceType, deviceIndex, canIndex uint32) uint32 {
	trace.Printf("ClearBuffer: DeviceType=%d DeviceIndex=%d CANInd=%d", deviceType, deviceIndex, canIndex)

	s := active
	if s == nil {
		return StatusErr
	}

	if err := s.bus.Stop(); err != nil && !errors.Is(err, canbus.ErrOffline) {
		trace.Printf("  stop failed: %v", err)
		return StatusErr
	}

	if s.started {
		if err := s.bus.Start(s.rate); err != nil {
			trace.Printf("  restart failed: %v", err)
			return StatusErr
		}
	}
	return StatusOK
}

// SetReference forwards a property write to the transport. Values are
// assumed to be 4 bytes, like the vendor driver assumes for its refs.
func SetReference(deviceType, deviceIndex, canIndex, refType uint32, data []byte) uint32 {
	trace.Printf("SetReference: DeviceType=%d DeviceIndex=%d CANInd=%d RefType=%d", deviceType, deviceIndex, canIndex, refType)

	s := active
	if s == nil || len(data) < 4 {
		return StatusErr
	}

	if err := s.bus.SetProperty(uint16(refType), data[:4]); err != nil {
		trace.Printf("  set property failed: %v", err)
		return StatusErr
	}
	return StatusOK
}

// GetReference forwards a property read to the transport, 4 byte values.
func GetReference(deviceType, deviceIndex, canIndex, refType uint32, data []byte) uint32 {
	trace.Printf("GetReference: DeviceType=%d DeviceIndex=%d CANInd=%d RefType=%d", deviceType, deviceIndex, canIndex, refType)

	s := active
	if s == nil || len(data) < 4 {
		return StatusErr
	}

	if err := s.bus.GetProperty(uint16(refType), data[:4]); err != nil {
		trace.Printf("  get property failed: %v", err)
		return StatusErr
	}
	return StatusOK
}

// ReadErrInfo maps the transport status byte onto the vendor error bitmask.
// Bits without a mapping are dropped.
func ReadErrInfo(deviceType, deviceIndex, canIndex uint32, out *ErrInfo) uint32 {
	trace.Printf("ReadErrInfo: DeviceType=%d DeviceIndex=%d CANInd=%d", deviceType, deviceIndex, canIndex)

	s := active
	if s == nil || out == nil {
		return StatusErr
	}

	*out = ErrInfo{}
	status, err := s.bus.Status()
	if err != nil {
		trace.Printf("  status failed: %v", err)
		return StatusErr
	}

	if status&canbus.StatusBusOff != 0 {
		out.ErrCode |= ErrCANBusOff
	}
	if status&canbus.StatusErrPassive != 0 {
		out.ErrCode |= ErrCANPassive
	}
	return StatusOK
}

// ReadBoardInfo fills a best effort static description. The device name
// comes from the transport when it can supply one.
func ReadBoardInfo(deviceType, deviceIndex uint32, info *BoardInfo) uint32 {
	trace.Printf("ReadBoardInfo: DeviceType=%d DeviceIndex=%d", deviceType, deviceIndex)

	s := active
	if s == nil || info == nil {
		return StatusErr
	}

	*info = BoardInfo{}

	name := make([]byte, len(info.HWType))
	if err := s.bus.GetProperty(canbus.PropDeviceName, name); err == nil {
		copy(info.HWType[:len(info.HWType)-1], name)
	} else {
		copy(info.HWType[:], "SerialCAN")
	}

	serial := make([]byte, len(info.SerialNum))
	if err := s.bus.GetProperty(canbus.PropSerialNumber, serial); err == nil && serial[0] != 0 {
		copy(info.SerialNum[:len(info.SerialNum)-1], serial)
	} else {
		copy(info.SerialNum[:], "N/A")
	}

	info.CANNum = 1
	return StatusOK
}

// ReadCANStatus reports the raw controller status byte.
func ReadCANStatus(deviceType, deviceIndex, canIndex uint32, out *CANStatus) uint32 {
	trace.Printf("ReadCANStatus: DeviceType=%d DeviceIndex=%d CANInd=%d", deviceType, deviceIndex, canIndex)

	s := active
	if s == nil || out == nil {
		return StatusErr
	}

	*out = CANStatus{}
	status, err := s.bus.Status()
	if err != nil {
		trace.Printf("  status failed: %v", err)
		return StatusErr
	}

	out.RegStatus = status
	return StatusOK
}

// GetReceiveNum reports the receive queue level. The transport has no such
// query, so it is always zero.
func GetReceiveNum(deviceType, deviceIndex, canIndex uint32) uint32 {
	trace.Printf("GetReceiveNum: DeviceType=%d DeviceIndex=%d CANInd=%d", deviceType, deviceIndex, canIndex)
	return 0
}
