package protocol

import "errors"

// Validation errors shared by the channel commands and the one-shot calls.
var (
	ErrMissingSymbol    = errors.New("symbol is required")
	ErrMissingTimeframe = errors.New("timeframe is required")
)
