package domain

import "errors"

// ErrUnknownStep — тег шага вне диапазона 1..5.
var ErrUnknownStep = errors.New("unknown step")
