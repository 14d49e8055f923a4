// Package btr translates SJA1000 style bus timing registers into the named
// standard bitrates understood by the transport layer.
//
// The legacy driver configures bit timing with two 8-bit registers (BTR0 and
// BTR1, a.k.a. Timing0/Timing1) assuming a 16 MHz controller clock. The
// transport layer only knows the CiA recommended rates, so the register pair
// is decoded into its timing fields and matched against the rate table. The
// match must be exact, there is no nearest-rate fallback.
package btr

import (
	"errors"
	"fmt"
)

// SJA1000 crystal frequency. The bit timing logic runs at fosc/2.
const ClockHz = 16_000_000

var ErrUnsupportedTiming = errors.New("unsupported bit timing")

// Rate is a named standard bitrate.
type Rate int

const (
	Rate10K Rate = iota
	Rate20K
	Rate50K
	Rate100K
	Rate125K
	Rate250K
	Rate500K
	Rate800K
	Rate1M
)

var rateBps = map[Rate]uint32{
	Rate10K:  10_000,
	Rate20K:  20_000,
	Rate50K:  50_000,
	Rate100K: 100_000,
	Rate125K: 125_000,
	Rate250K: 250_000,
	Rate500K: 500_000,
	Rate800K: 800_000,
	Rate1M:   1_000_000,
}

// Bps returns the nominal bits per second for the rate, 0 for unknown rates.
func (r Rate) Bps() uint32 {
	return rateBps[r]
}

func (r Rate) String() string {
	switch r {
	case Rate10K:
		return "10K"
	case Rate20K:
		return "20K"
	case Rate50K:
		return "50K"
	case Rate100K:
		return "100K"
	case Rate125K:
		return "125K"
	case Rate250K:
		return "250K"
	case Rate500K:
		return "500K"
	case Rate800K:
		return "800K"
	case Rate1M:
		return "1M"
	default:
		return "UNKNOWN"
	}
}

// BitTiming holds the decoded SJA1000 timing fields. All values are the
// effective ones, register encoding offsets already applied.
type BitTiming struct {
	BRP   uint16 // baud rate prescaler, 1..64
	SJW   uint8  // synchronization jump width, 1..4
	TSEG1 uint8  // time segment 1 in quanta, 1..16
	TSEG2 uint8  // time segment 2 in quanta, 1..8
	SAM   bool   // triple sampling
}

// Bitrate returns the nominal bitrate for the timing in bits per second.
func (bt BitTiming) Bitrate() uint32 {
	quanta := uint32(1) + uint32(bt.TSEG1) + uint32(bt.TSEG2)
	return (ClockHz / 2) / (uint32(bt.BRP) * quanta)
}

// SamplePoint returns the sample point position as a fraction of the bit time.
func (bt BitTiming) SamplePoint() float64 {
	quanta := 1 + int(bt.TSEG1) + int(bt.TSEG2)
	return float64(1+int(bt.TSEG1)) / float64(quanta)
}

// Decode splits a combined BTR0<<8|BTR1 register value into its timing
// fields. Field extraction itself cannot fail but the resulting timing must
// describe a usable bit: the sample point has to sit at or past the midpoint
// and the jump width cannot exceed TSEG2.
func Decode(reg uint16) (BitTiming, error) {
	btr0 := uint8(reg >> 8)
	btr1 := uint8(reg)

	bt := BitTiming{
		BRP:   uint16(btr0&0x3F) + 1,
		SJW:   (btr0>>6)&0x03 + 1,
		TSEG1: btr1&0x0F + 1,
		TSEG2: (btr1>>4)&0x07 + 1,
		SAM:   btr1&0x80 != 0,
	}

	if bt.TSEG1 < bt.TSEG2 {
		return BitTiming{}, fmt.Errorf("%w: sample point before midpoint (tseg1=%d tseg2=%d)", ErrUnsupportedTiming, bt.TSEG1, bt.TSEG2)
	}
	if bt.SJW > bt.TSEG2 {
		return BitTiming{}, fmt.Errorf("%w: sjw %d exceeds tseg2 %d", ErrUnsupportedTiming, bt.SJW, bt.TSEG2)
	}
	return bt, nil
}

// Match finds the named rate whose nominal bitrate equals the decoded timing
// exactly.
func Match(bt BitTiming) (Rate, error) {
	bps := bt.Bitrate()
	for r, b := range rateBps {
		if b == bps {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %d bit/s has no named rate", ErrUnsupportedTiming, bps)
}

// Resolve maps a Timing0/Timing1 register pair to a named rate. Decode and
// match failures both report ErrUnsupportedTiming.
func Resolve(timing0, timing1 byte) (Rate, error) {
	reg := uint16(timing0)<<8 | uint16(timing1)
	bt, err := Decode(reg)
	if err != nil {
		return 0, err
	}
	return Match(bt)
}
