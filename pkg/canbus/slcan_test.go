package canbus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aviax8/controlcan/pkg/btr"
)

func TestEncodeFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
		want  string
	}{
		{
			name:  "standard data frame",
			frame: &Frame{ID: 0x123, Data: []byte{0xA1, 0xB2, 0xC3}},
			want:  "t1233A1B2C3\r",
		},
		{
			name:  "extended data frame",
			frame: &Frame{ID: 0x18DAF110, Extended: true, Data: []byte{0x01, 0x02}},
			want:  "T18DAF11020102\r",
		},
		{
			name:  "standard remote frame",
			frame: &Frame{ID: 0x7FF, Remote: true, Data: make([]byte, 4)},
			want:  "r7FF4\r",
		},
		{
			name:  "extended remote frame",
			frame: &Frame{ID: 0x1FFFFFFF, Extended: true, Remote: true},
			want:  "R1FFFFFFF0\r",
		},
		{
			name:  "standard id masked to 11 bits",
			frame: &Frame{ID: 0xFFFF_F7FF, Data: nil},
			want:  "t7FF0\r",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encodeFrame(tt.frame, nil)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecodeFrame(t *testing.T) {
	f, err := decodeFrame([]byte("t1233A1B2C3"))
	assert.NoError(t, err)
	assert.Equal(t, uint32(0x123), f.ID)
	assert.False(t, f.Extended)
	assert.False(t, f.Remote)
	assert.Equal(t, []byte{0xA1, 0xB2, 0xC3}, f.Data)

	f, err = decodeFrame([]byte("T18DAF11020102"))
	assert.NoError(t, err)
	assert.True(t, f.Extended)
	assert.Equal(t, uint32(0x18DAF110), f.ID)
	assert.Equal(t, []byte{0x01, 0x02}, f.Data)

	f, err = decodeFrame([]byte("r7FF4"))
	assert.NoError(t, err)
	assert.True(t, f.Remote)
	assert.Equal(t, uint32(0x7FF), f.ID)
	assert.Empty(t, f.Data)
}

func TestDecodeFrameErrors(t *testing.T) {
	for _, raw := range []string{"t", "t12", "t12G3", "tFFF9AA", "t1232AA"} {
		if _, err := decodeFrame([]byte(raw)); err == nil {
			t.Errorf("decodeFrame(%q) expected error", raw)
		}
	}
}

func TestFrameRoundTrip(t *testing.T) {
	in := &Frame{ID: 0x1CCAFE42, Extended: true, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	wire := encodeFrame(in, nil)
	out, err := decodeFrame(wire[:len(wire)-1])
	assert.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseRouting(t *testing.T) {
	sl := NewSLCAN("test", 57600)

	rest := sl.parse(nil, []byte("t0802AABB\rF04\r\a"))
	assert.Empty(t, rest)

	f := <-sl.recvChan
	assert.Equal(t, uint32(0x080), f.ID)
	assert.Equal(t, []byte{0xAA, 0xBB}, f.Data)

	reply := <-sl.cmdChan
	assert.Equal(t, []byte("F04"), reply)

	reply = <-sl.cmdChan
	assert.Equal(t, []byte{bell}, reply)
}

func TestParsePartialLine(t *testing.T) {
	sl := NewSLCAN("test", 57600)
	rest := sl.parse(nil, []byte("t123"))
	assert.Equal(t, "t123", string(rest))
	rest = sl.parse(rest, []byte("0\r"))
	assert.Empty(t, rest)
	f := <-sl.recvChan
	assert.Equal(t, uint32(0x123), f.ID)
}

func TestTranslateStatus(t *testing.T) {
	tests := []struct {
		flags byte
		want  byte
	}{
		{0x00, 0},
		{0x80, StatusBusOff},
		{0x20, StatusErrPassive},
		{0x04, StatusErrWarning},
		{0x08, StatusRxOverrun},
		{0x02, StatusTxFull},
		{0xA4, StatusBusOff | StatusErrPassive | StatusErrWarning},
		{0x41, 0}, // arbitration lost and rx-full have no mapping
	}
	for _, tt := range tests {
		if got := translateStatus(tt.flags); got != tt.want {
			t.Errorf("translateStatus(0x%02X) = 0x%02X, want 0x%02X", tt.flags, got, tt.want)
		}
	}
}

func TestSpeedCode(t *testing.T) {
	tests := []struct {
		rate btr.Rate
		want byte
	}{
		{btr.Rate10K, '0'},
		{btr.Rate20K, '1'},
		{btr.Rate50K, '2'},
		{btr.Rate100K, '3'},
		{btr.Rate125K, '4'},
		{btr.Rate250K, '5'},
		{btr.Rate500K, '6'},
		{btr.Rate800K, '7'},
		{btr.Rate1M, '8'},
	}
	for _, tt := range tests {
		got, err := speedCode(tt.rate)
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := speedCode(btr.Rate(99))
	assert.Error(t, err)
}
