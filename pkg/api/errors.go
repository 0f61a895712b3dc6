package api

import "errors"

var (
	errInvalidSize    = errors.New("cols and rows must be positive")
	errResizeDisabled = errors.New("resize is disabled for this host")
)
