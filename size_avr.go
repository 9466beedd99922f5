//go:build avr

package rftrx

// RawBufferSize is the maximum number of pulses received in one go. AVR
// parts only have a couple of kilobytes of RAM.
const RawBufferSize = 292
