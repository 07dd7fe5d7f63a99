package ai

import (
	"context"
	"errors"
)

// Provider is the external model. It knows nothing about sessions or caching.
// Invoke is called exactly once per request and never retries internally.
type Provider interface {
	Invoke(
		ctx context.Context,
		systemPrompt string,
		developerContext string,
		userText string,
	) (any, error)
	Name() string
}

var (
	// ErrProviderUnavailable covers missing credentials, transport failures and timeouts.
	ErrProviderUnavailable = errors.New("PROVIDER_UNAVAILABLE")
	// ErrNoStructuredCall means the model answered without the required structured payload.
	ErrNoStructuredCall = errors.New("NO_STRUCTURED_CALL")
	// ErrMalformedPayload means the payload was present but is not a JSON object.
	ErrMalformedPayload = errors.New("MALFORMED_PAYLOAD")
)
