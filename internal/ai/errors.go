// Package ai holds the outbound clients for the text, image and speech
// providers. Each client makes exactly one request per call.
package ai

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials is returned when a provider key is not configured.
var ErrMissingCredentials = errors.New("ai: provider credentials not configured")

// ProviderError is a non-2xx answer from a provider.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s responded %d: %s", e.Provider, e.Status, e.Body)
}
