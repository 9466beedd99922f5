//go:build !avr

package rftrx

// RawBufferSize is the maximum number of pulses received in one go.
const RawBufferSize = 1200
