package soap

import (
	"errors"
	"fmt"
)

// ErrFieldMissing is returned when a response parses but none of the lookup
// strategies finds the requested field.
var ErrFieldMissing = errors.New("sonos response field missing")

// SonosRejectedError represents a UPnP/SOAP fault returned by a device.
type SonosRejectedError struct {
	Action      string
	Code        string
	Description string
}

func (e *SonosRejectedError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("sonos action %s rejected: code %s", e.Action, e.Code)
	}
	return fmt.Sprintf("sonos action %s rejected: code %s (%s)", e.Action, e.Code, e.Description)
}

// SonosTimeoutError indicates a request timed out.
type SonosTimeoutError struct {
	Action string
}

func (e *SonosTimeoutError) Error() string {
	return fmt.Sprintf("sonos action %s timed out", e.Action)
}

// SonosUnreachableError indicates the device could not be reached.
type SonosUnreachableError struct {
	Action string
	Err    error
}

func (e *SonosUnreachableError) Error() string {
	return fmt.Sprintf("sonos action %s unreachable: %v", e.Action, e.Err)
}

func (e *SonosUnreachableError) Unwrap() error {
	return e.Err
}

// HTTPStatusError is a non-200 response without a recognizable fault body.
type HTTPStatusError struct {
	Action     string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("sonos action %s failed: http %d", e.Action, e.StatusCode)
}

// ParseError wraps malformed XML in a response.
type ParseError struct {
	Action string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sonos action %s: malformed response: %v", e.Action, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
