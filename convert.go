package controlcan

import "github.com/aviax8/controlcan/pkg/canbus"

// toBus converts a legacy frame record to a transport frame. The data
// length is clamped to 8; timestamp and send type have no transport
// equivalent and are dropped.
func toBus(obj *CANObj) *canbus.Frame {
	dlc := int(obj.DataLen)
	if dlc > 8 {
		dlc = 8
	}
	data := make([]byte, dlc)
	copy(data, obj.Data[:dlc])
	return &canbus.Frame{
		ID:       obj.ID,
		Extended: obj.ExternFlag != 0,
		Remote:   obj.RemoteFlag != 0,
		Data:     data,
	}
}

// fromBus converts a transport frame back to the legacy record. Fields the
// transport does not supply (TimeStamp, TimeFlag, SendType, Reserved) are
// zeroed.
func fromBus(f *canbus.Frame, obj *CANObj) {
	*obj = CANObj{
		ID:         f.ID,
		RemoteFlag: boolByte(f.Remote),
		ExternFlag: boolByte(f.Extended),
	}
	dlc := f.Length()
	if dlc > 8 {
		dlc = 8
	}
	obj.DataLen = byte(dlc)
	copy(obj.Data[:], f.Data[:dlc])
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
