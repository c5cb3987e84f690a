package common

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id '%s' not found", e.Resource, e.ID)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError indicates invalid input data.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// UnauthorizedError indicates missing or invalid authentication.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return e.Message
}

// NewUnauthorizedError creates a new UnauthorizedError.
func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}

// GatewayError indicates an external delivery gateway failure.
type GatewayError struct {
	Gateway string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s gateway error: %s", e.Gateway, e.Message)
}

// NewGatewayError creates a new GatewayError.
func NewGatewayError(gateway, message string) *GatewayError {
	return &GatewayError{Gateway: gateway, Message: message}
}

// NotConfiguredError indicates a subsystem is missing required credentials
// and refuses to operate rather than running half-initialized.
type NotConfiguredError struct {
	Subsystem string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("%s is not configured", e.Subsystem)
}

// NewNotConfiguredError creates a new NotConfiguredError.
func NewNotConfiguredError(subsystem string) *NotConfiguredError {
	return &NotConfiguredError{Subsystem: subsystem}
}
