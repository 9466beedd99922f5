package rftrx_test

import (
	"bytes"
	"testing"

	"github.com/sparques/rftrx"
)

func TestDisplaySignal(t *testing.T) {
	tests := []struct {
		name     string
		multiply uint16
		rssi     float32
		reason   rftrx.EndReason
		set      []uint16
		want     string
	}{
		{
			name:     "with rssi",
			multiply: 1,
			rssi:     -72,
			reason:   rftrx.EndSignalEndTimeout,
			set:      []uint16{400, 800, 400, 5200},
			want:     "Pulses=4;Pulses(uSec)=400,800,400,5200;RSSI=-72;EndReason=SignalEndTimeout;\n",
		},
		{
			name:     "scaled",
			multiply: 8,
			reason:   rftrx.EndTooLong,
			set:      []uint16{50, 100},
			want:     "Pulses=2;Pulses(uSec)=400,800;EndReason=TooLong;\n",
		},
		{
			name: "empty",
			want: "Pulses=0;Pulses(uSec)=;EndReason=Unknown;\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := &rftrx.RawSignal{Multiply: tt.multiply, RSSI: tt.rssi, EndReason: tt.reason, Number: len(tt.set)}
			copy(sig.Pulses[1:], tt.set)
			var buf bytes.Buffer
			if err := rftrx.DisplaySignal(&buf, sig); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Errorf("DisplaySignal() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestSlicerNames(t *testing.T) {
	for _, name := range []string{"Legacy", "legacy", "RSSI_Advanced", "rssi-advanced", "default", ""} {
		v, err := rftrx.ParseSlicer(name)
		if err != nil {
			t.Errorf("ParseSlicer(%q) error = %v", name, err)
			continue
		}
		if name != "" && name != "default" && v == rftrx.SlicerDefault {
			t.Errorf("ParseSlicer(%q) = Default", name)
		}
	}
	if _, err := rftrx.ParseSlicer("fancy"); err == nil {
		t.Error("ParseSlicer(fancy) accepted")
	}
}

func TestParamsValidate(t *testing.T) {
	if err := rftrx.DefaultParams().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	bad := rftrx.DefaultParams()
	bad.MinRawPulses = rftrx.RawBufferSize + 1
	if bad.Validate() == nil {
		t.Error("min raw pulses above the buffer size accepted")
	}
	bad = rftrx.DefaultParams()
	bad.SignalEndTimeout = bad.MinPulseLen
	if bad.Validate() == nil {
		t.Error("end timeout not above min pulse length accepted")
	}
}
