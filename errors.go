package doctable

import "errors"

// Every error returned by this module wraps one of these, so callers can
// test with errors.Is.
var (
	ErrExhaustedCursor           = errors.New("result set cursor is not on a row")
	ErrUnknownColumn             = errors.New("unknown column")
	ErrColumnIndexOutOfRange     = errors.New("column index out of range")
	ErrClosedBuffer              = errors.New("result set was previously closed")
	ErrArityMismatch             = errors.New("column count mismatch")
	ErrMalformedValue            = errors.New("malformed value")
	ErrUnsupportedQueryConstruct = errors.New("unsupported query construct")
	ErrParameterBinding          = errors.New("parameter binding failed")
	ErrUnrecognizedScanStrategy  = errors.New("unrecognized scan strategy")
	ErrNotSupported              = errors.New("operation not supported")
)
