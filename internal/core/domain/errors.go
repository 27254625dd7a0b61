package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrSectionNotFound      = errors.New("section not found")
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	ErrIndexUnavailable     = errors.New("vector index unavailable")
	ErrMetadataLookup       = errors.New("metadata lookup failed")
	ErrGenerationFailed     = errors.New("generation failed")
	ErrTemporary            = errors.New("temporary failure")
)

// GenerationKind distinguishes generation-provider failures. The request
// fails either way; the kind drives logging and the HTTP status mapping.
type GenerationKind string

const (
	GenerationKindConnectivity   GenerationKind = "connectivity"
	GenerationKindRateLimited    GenerationKind = "rate_limited"
	GenerationKindProviderStatus GenerationKind = "provider_status"
)

// GenerationError wraps ErrGenerationFailed with the provider failure kind.
type GenerationError struct {
	Kind GenerationKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%v (%s): %v", ErrGenerationFailed, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return ErrGenerationFailed }

// NewGenerationError classifies a provider failure under ErrGenerationFailed.
func NewGenerationError(kind GenerationKind, err error) error {
	if err == nil {
		return nil
	}
	return &GenerationError{Kind: kind, Err: err}
}

// GenerationKindOf reports the failure kind carried by err, if any.
func GenerationKindOf(err error) (GenerationKind, bool) {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind, true
	}
	return "", false
}

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
