package discovery

import (
	"errors"
	"fmt"
)

var (
	// ErrDiscoveryFailed indicates metadata could not be obtained for a host
	// and authority validation is required.
	ErrDiscoveryFailed = errors.New("discovery: instance discovery failed")

	// ErrInvalidHost indicates an empty or malformed authority host.
	ErrInvalidHost = errors.New("discovery: invalid authority host")
)

// ResponseError is an error payload returned by the discovery endpoint.
type ResponseError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *ResponseError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("discovery endpoint returned %d %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("discovery endpoint returned %d %s", e.StatusCode, e.Code)
}
