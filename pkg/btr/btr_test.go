package btr

import (
	"errors"
	"testing"
)

// Standard ZLG timing pairs for a 16 MHz SJA1000.
func TestResolveStandardPairs(t *testing.T) {
	tests := []struct {
		name    string
		timing0 byte
		timing1 byte
		want    Rate
	}{
		{"1M", 0x00, 0x14, Rate1M},
		{"800K", 0x00, 0x16, Rate800K},
		{"500K", 0x00, 0x1C, Rate500K},
		{"250K", 0x01, 0x1C, Rate250K},
		{"125K", 0x03, 0x1C, Rate125K},
		{"100K", 0x04, 0x1C, Rate100K},
		{"50K", 0x09, 0x1C, Rate50K},
		{"20K", 0x18, 0x1C, Rate20K},
		{"10K", 0x31, 0x1C, Rate10K},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.timing0, tt.timing1)
			if err != nil {
				t.Fatalf("Resolve(0x%02X, 0x%02X) error: %v", tt.timing0, tt.timing1, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(0x%02X, 0x%02X) = %v, want %v", tt.timing0, tt.timing1, got, tt.want)
			}
		})
	}
}

func TestResolveRejectsInvalidTiming(t *testing.T) {
	tests := []struct {
		name    string
		timing0 byte
		timing1 byte
	}{
		{"sample point before midpoint", 0x00, 0x71},
		{"sjw exceeds tseg2", 0xC0, 0x14},
		{"no named rate", 0x02, 0x1C},
		{"odd rate", 0x05, 0x1C},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.timing0, tt.timing1)
			if err == nil {
				t.Fatalf("Resolve(0x%02X, 0x%02X) expected error", tt.timing0, tt.timing1)
			}
			if !errors.Is(err, ErrUnsupportedTiming) {
				t.Errorf("error %v is not ErrUnsupportedTiming", err)
			}
		})
	}
}

// Resolution must be a pure function.
func TestResolveDeterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		got, err := Resolve(0x01, 0x1C)
		if err != nil || got != Rate250K {
			t.Fatalf("iteration %d: got %v, %v", i, got, err)
		}
		if _, err := Resolve(0x02, 0x1C); err == nil {
			t.Fatalf("iteration %d: expected failure", i)
		}
	}
}

func TestDecodeFields(t *testing.T) {
	bt, err := Decode(0x031C)
	if err != nil {
		t.Fatal(err)
	}
	if bt.BRP != 4 || bt.SJW != 1 || bt.TSEG1 != 13 || bt.TSEG2 != 2 || bt.SAM {
		t.Errorf("unexpected fields: %+v", bt)
	}
	if bt.Bitrate() != 125_000 {
		t.Errorf("Bitrate() = %d, want 125000", bt.Bitrate())
	}
	if sp := bt.SamplePoint(); sp < 0.85 || sp > 0.90 {
		t.Errorf("SamplePoint() = %f, want 0.875", sp)
	}
}
