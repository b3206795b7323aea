package microphone

import (
	"bytes"
	"testing"
)

func TestEncodePCM(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		want    []byte
	}{
		{"empty", nil, []byte{}},
		{"zero", []int16{0}, []byte{0x00, 0x00}},
		{"positive", []int16{1, 256}, []byte{0x01, 0x00, 0x00, 0x01}},
		{"negative", []int16{-1, -32768}, []byte{0xff, 0xff, 0x00, 0x80}},
		{"max", []int16{32767}, []byte{0xff, 0x7f}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encodePCM(tt.samples)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("encodePCM(%v) = %v, want %v", tt.samples, got, tt.want)
			}
		})
	}
}
