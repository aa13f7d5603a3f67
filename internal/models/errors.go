package models

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrNotFound = errors.New("not found")
	ErrProvider = errors.New("provider failure")
	ErrConfig   = errors.New("invalid configuration")
)

// NotFoundError reports an unknown content hash, document id, or similar key.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ProviderError wraps a failure of an external collaborator (retrieval, generation, network).
type ProviderError struct {
	Op  string
	Err error
}

// NewProviderError wraps err as a failure of op.
func NewProviderError(op string, err error) *ProviderError {
	return &ProviderError{Op: op, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return e.Op + ": provider failure"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// ConfigError reports a missing or invalid configuration, such as an empty rule set.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Msg, e.Err)
	}
	return "config: " + e.Msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}
