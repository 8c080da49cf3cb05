package stylist

import "fmt"

// ParseError is returned when an analysis response is empty or carries no
// recognizable structure. The item is still recorded with unknown attributes.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "could not parse analysis response: " + e.Reason
}

// EmptyWardrobeError is returned when a recommendation is requested for a
// wardrobe with no items
type EmptyWardrobeError struct {
	SessionID string
}

func (e *EmptyWardrobeError) Error() string {
	return "wardrobe is empty: add items before asking for a recommendation"
}

// ValidationError is returned for caller input that fails validation
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
