// Package temporal expands time specifications into series and reconciles
// the resolutions of the capabilities taking part in a render.
package temporal

import "errors"

var (
	ErrPrematureQuantization  = errors.New("quantization requested before resolution tags were pooled")
	ErrEmptyTimeSeries        = errors.New("time series is empty")
	ErrNonTerminatingInterval = errors.New("interval must be positive")
	ErrSeriesTooLong          = errors.New("time series exceeds the step limit")
	ErrIndexOutOfRange        = errors.New("series index out of range")
	ErrUnknownTag             = errors.New("unknown resolution tag")
	ErrUnknownPolicy          = errors.New("unknown reconciliation policy")
	ErrInvalidTransition      = errors.New("invalid render pass transition")
)
