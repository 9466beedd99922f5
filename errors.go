package rftrx

import "errors"

var (
	// ErrRadioUnset is returned when an operation needs a powered radio but
	// the radio state machine was never initialised.
	ErrRadioUnset = errors.New("radio mode was never set")

	// ErrDeferred is returned when a reconfiguration arrives while a capture
	// is in flight. The change is applied by the next ScanEvent.
	ErrDeferred = errors.New("capture in progress, change deferred")

	ErrEmptySignal     = errors.New("signal holds no pulses")
	ErrSignalTooLong   = errors.New("signal exceeds raw buffer size")
	ErrInvalidParams   = errors.New("invalid signal parameters")
	ErrInvalidSlicer   = errors.New("unknown slicer")
	ErrRSSIUnsupported = errors.New("front end cannot sample RSSI")
)
