package errorkinds

import "errors"

// The different general error types.
var (
	ErrSessionNotExist = errors.New("session does not exist")
	ErrRegistryClosed  = errors.New("session registry is closed")
	ErrNotConnected    = errors.New("session is not connected")
	ErrMethodCall      = errors.New("cannot call method")
	ErrMethodCanceled  = errors.New("method call was cancelled")
	ErrMethodTimeout   = errors.New("timeout on method response")

	ErrInvalidAddress = errors.New("invalid Bluetooth address")
	ErrDeviceNotFound = errors.New("device not found")

	ErrNodeNotFound     = errors.New("browse node not found")
	ErrNodeNotPlayable  = errors.New("browse node is not playable")
	ErrNodeNotPlayer    = errors.New("browse node is not a media player")
	ErrNodeNotBrowsable = errors.New("browse node cannot be listed")
	ErrInvalidKey       = errors.New("invalid pass-through key")

	ErrMediaPlayerNotConnected = errors.New("media player is not connected")
	ErrItemNotFound            = errors.New("media item not found")

	ErrPropertyDataParse = errors.New("error parsing property data")
	ErrEventDataParse    = errors.New("error parsing event data")

	ErrNotSupported = errors.New("this functionality is not supported")
)

// GenericError represents a standard error message.
type GenericError struct {
	// Errors stores all associated errors.
	Errors error `json:"errors,omitempty" doc:"A set of generic errors."`
}

// Error returns the formatted error as string.
func (e GenericError) Error() string {
	return e.Errors.Error()
}

// Unwrap unwraps all errors associated with this error.
func (e GenericError) Unwrap() error {
	return e.Errors
}
