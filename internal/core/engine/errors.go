package engine

import "errors"

var (
	ErrInvalidInput             = errors.New("invalid input")
	ErrKnowledgeBaseUnavailable = errors.New("knowledge base unavailable")
)

// InputError carries a message that is safe to show to the user.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return "invalid input: " + e.Message }

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalid(msg string) error { return &InputError{Message: msg} }
