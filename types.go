package controlcan

// Function return status. Every call reports success or failure, nothing
// in between.
const (
	StatusOK  uint32 = 1
	StatusErr uint32 = 0
)

// Interface card types. The serial transport behind this layer does not
// care which one the caller claims to have, the values are carried for
// source compatibility with the vendor header.
const (
	DevPCI5121    = 1
	DevPCI9810    = 2
	DevUSBCAN1    = 3
	DevUSBCAN2    = 4
	DevUSBCAN2A   = 4
	DevPCI9820    = 5
	DevCAN232     = 6
	DevPCI5110    = 7
	DevCANLite    = 8
	DevISA9620    = 9
	DevISA5420    = 10
	DevPC104CAN   = 11
	DevCANETUDP   = 12
	DevCANETE     = 12
	DevDNP9810    = 13
	DevPCI9840    = 14
	DevPC104CAN2  = 15
	DevPCI9820I   = 16
	DevCANETTCP   = 17
	DevPCIE9220   = 18
	DevPCI5010U   = 19
	DevUSBCANEU   = 20
	DevUSBCAN2EU  = 21
	DevPCI5020U   = 22
	DevEG20TCAN   = 23
	DevPCIE9221   = 24
	DevWIFICANTCP = 25
	DevWIFICANUDP = 26
	DevPCIe9120   = 27
	DevPCIe9110   = 28
	DevPCIe9140   = 29
	DevUSBCAN4EU  = 31
	DevCANDTU     = 32
)

// CAN error code bits reported through ReadErrInfo.
const (
	ErrCANOverflow       = 0x0001 // controller fifo overflow
	ErrCANErrAlarm       = 0x0002 // error warning
	ErrCANPassive        = 0x0004 // error passive
	ErrCANLose           = 0x0008 // arbitration lost
	ErrCANBusErr         = 0x0010 // bus error
	ErrCANBusOff         = 0x0020 // bus-off
	ErrCANBufferOverflow = 0x0040 // internal buffer overflow
)

// General error codes.
const (
	ErrDeviceOpened   = 0x0100
	ErrDeviceOpen     = 0x0200
	ErrDeviceNotOpen  = 0x0400
	ErrBufferOverflow = 0x0800
	ErrDeviceNotExist = 0x1000
	ErrLoadKernelDLL  = 0x2000
	ErrCmdFailed      = 0x4000
	ErrBufferCreate   = 0x8000
)

// CANObj is the legacy CAN frame record. Field layout follows the vendor
// header, fixed 8 byte payload with an explicit length.
type CANObj struct {
	ID         uint32
	TimeStamp  uint32
	TimeFlag   byte
	SendType   byte
	RemoteFlag byte
	ExternFlag byte
	DataLen    byte
	Data       [8]byte
	Reserved   [3]byte
}

// InitConfig carries the legacy controller configuration. Only Timing0 and
// Timing1 are interpreted here; acceptance filtering is not applied by the
// serial transport.
type InitConfig struct {
	AccCode  uint32
	AccMask  uint32
	Reserved uint32
	Filter   byte
	Timing0  byte
	Timing1  byte
	Mode     byte
}

// BoardInfo is the static device description.
type BoardInfo struct {
	HWVersion uint16
	FWVersion uint16
	DRVersion uint16
	INVersion uint16
	IRQNum    uint16
	CANNum    byte
	SerialNum [20]byte
	HWType    [40]byte
	Reserved  [4]uint16
}

// CANStatus mirrors the SJA1000 style controller registers. Only RegStatus
// is populated from the transport layer.
type CANStatus struct {
	ErrInterrupt byte
	RegMode      byte
	RegStatus    byte
	RegALCapture byte
	RegECCapture byte
	RegEWLimit   byte
	RegRECounter byte
	RegTECounter byte
	Reserved     uint32
}

// ErrInfo is the error report filled by ReadErrInfo.
type ErrInfo struct {
	ErrCode        uint32
	PassiveErrData [3]byte
	ArLostErrData  byte
}
