package mixer

import (
	"errors"
	"fmt"
)

var (
	// ErrInputNotFound is returned when an operator addresses an input that is
	// not in the current snapshot.
	ErrInputNotFound = errors.New("input not found")

	// ErrInvalidOverlay is returned for overlay indices outside 1..MaxOverlay.
	ErrInvalidOverlay = errors.New("invalid overlay index")
)

// HTTPError is a non-2xx response from the mixer.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("vMix responded with status %d", e.Status)
}

// NetworkError is a transport failure or timeout talking to the mixer.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "unable to reach vMix: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError is a status document that is not valid markup.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "unable to parse vMix response"
	}
	return "unable to parse vMix response: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }
